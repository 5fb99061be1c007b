package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/keybot/core/logger"
	"github.com/m3rciful/keybot/core/netutil"
)

const (
	authScheme       = "Token "
	defaultUserAgent = "KeyBot Telegram Bot"
	maxResponseBytes = 1 << 20
	maxErrorMessage  = 512
)

// Endpoints are the service paths relative to Config.BaseURL.
type Endpoints struct {
	User          string
	OutlineKey    string
	OutlineConfig string
	Servers       string
	Reasons       string
	Issues        string
}

// Config describes how to reach the account service.
type Config struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	Region    []string
	Endpoints Endpoints
}

// Client is the HTTP implementation of the account service. Calls are never retried;
// the configured timeout bounds each one.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a Client. A nil httpClient selects a pooled client bounded by cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if httpClient == nil {
		httpClient = netutil.NewClient(netutil.Options{Timeout: cfg.Timeout})
	}
	return &Client{cfg: cfg, http: httpClient}
}

// GetAccount returns the account of uid, or nil when the service does not know it.
func (c *Client) GetAccount(ctx context.Context, uid string) (*Account, error) {
	url := c.url(c.cfg.Endpoints.User, uid)
	status, body, err := c.do(ctx, "account.get", http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		var acc Account
		if err := json.Unmarshal(body, &acc); err != nil {
			return nil, fmt.Errorf("accounts: decode account: %w", err)
		}
		return &acc, nil
	case http.StatusNotFound:
		return nil, nil
	}
	return nil, httpError(url, status, body)
}

// CreateAccount registers uid. An account that already exists is not an error.
func (c *Client) CreateAccount(ctx context.Context, uid string, chatID int64, channel string) error {
	url := c.url(c.cfg.Endpoints.User)
	payload := map[string]any{
		"username": uid,
		"channel":  channel,
		"region":   c.cfg.Region,
		"userchat": strconv.FormatInt(chatID, 10),
	}
	status, body, err := c.do(ctx, "account.create", http.MethodPut, url, payload)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusBadRequest, http.StatusConflict:
		logger.Warn(ctx, logger.CompAccounts, "account.create.rejected",
			slog.Int("http_code", status),
			slog.String("cause", logger.SanitizeLimit(string(body), 128)),
		)
		return nil
	}
	return httpError(url, status, body)
}

// DeleteAccount removes the account of uid, recording why. It reports false when the
// account did not exist.
func (c *Client) DeleteAccount(ctx context.Context, uid string, reasonID int64) (bool, error) {
	url := c.url(c.cfg.Endpoints.User)
	payload := map[string]string{
		"username":  uid,
		"reason_id": strconv.FormatInt(reasonID, 10),
	}
	status, body, err := c.do(ctx, "account.delete", http.MethodDelete, url, payload)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusNoContent, http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, httpError(url, status, body)
}

type newKeyResponse struct {
	CreatedKeys []struct {
		OutlineKey string `json:"outline_key"`
	} `json:"created_keys"`
	SSLink string `json:"ss_link"`
}

// RequestNewKey provisions a key for uid. issueID optionally tells the service which
// connectivity problem prompted the request. A grant without keys means no capacity.
func (c *Client) RequestNewKey(ctx context.Context, uid string, issueID *int64) (KeyGrant, error) {
	url := c.url(c.cfg.Endpoints.OutlineKey)
	payload := map[string]any{"user": uid}
	if issueID != nil {
		payload["user_issue"] = *issueID
	}
	status, body, err := c.do(ctx, "key.create", http.MethodPut, url, payload)
	if err != nil {
		return KeyGrant{}, err
	}
	switch status {
	case http.StatusOK, http.StatusCreated:
		var resp newKeyResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return KeyGrant{}, fmt.Errorf("accounts: decode new key: %w", err)
		}
		grant := KeyGrant{ConfigLink: resp.SSLink}
		for _, k := range resp.CreatedKeys {
			grant.Keys = append(grant.Keys, k.OutlineKey)
		}
		return grant, nil
	case http.StatusNotAcceptable:
		logger.Warn(ctx, logger.CompAccounts, "key.create.exhausted",
			slog.String("cause", logger.SanitizeLimit(string(body), 128)),
		)
		return KeyGrant{}, nil
	}
	return KeyGrant{}, httpError(url, status, body)
}

// GetOnlineConfig returns the dynamic access link of uid.
func (c *Client) GetOnlineConfig(ctx context.Context, uid string) (string, error) {
	url := c.url(c.cfg.Endpoints.OutlineConfig, uid)
	status, body, err := c.do(ctx, "config.get", http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	switch status {
	case http.StatusOK:
		var resp struct {
			SSLink string `json:"ss_link"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("accounts: decode online config: %w", err)
		}
		if resp.SSLink == "" {
			return "", fmt.Errorf("accounts: online config without link: %w", ErrNotFound)
		}
		return resp.SSLink, nil
	case http.StatusNotFound:
		return "", fmt.Errorf("accounts: online config: %w", ErrNotFound)
	}
	return "", httpError(url, status, body)
}

// GetServerInfo returns the health of serverID, or nil when the service rejects the id.
func (c *Client) GetServerInfo(ctx context.Context, serverID int64) (*ServerInfo, error) {
	url := c.url(c.cfg.Endpoints.Servers, strconv.FormatInt(serverID, 10))
	status, body, err := c.do(ctx, "server.get", http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		var info ServerInfo
		if err := json.Unmarshal(body, &info); err != nil {
			return nil, fmt.Errorf("accounts: decode server info: %w", err)
		}
		return &info, nil
	case http.StatusBadRequest, http.StatusNotFound:
		return nil, nil
	}
	return nil, httpError(url, status, body)
}

// ListDeleteReasons returns the account deletion reasons labelled in lang.
func (c *Client) ListDeleteReasons(ctx context.Context, lang string) ([]Option, error) {
	return c.listOptions(ctx, "reasons.list", c.cfg.Endpoints.Reasons, lang)
}

// ListIssues returns the connectivity issues labelled in lang.
func (c *Client) ListIssues(ctx context.Context, lang string) ([]Option, error) {
	return c.listOptions(ctx, "issues.list", c.cfg.Endpoints.Issues, lang)
}

// BanUser bans the account username. It reports false when no such account exists.
func (c *Client) BanUser(ctx context.Context, username string) (bool, error) {
	return c.setBanned(ctx, username, true)
}

// UnbanUser lifts the ban of username. It reports false when no such account exists.
func (c *Client) UnbanUser(ctx context.Context, username string) (bool, error) {
	return c.setBanned(ctx, username, false)
}

func (c *Client) setBanned(ctx context.Context, username string, banned bool) (bool, error) {
	url := c.url(c.cfg.Endpoints.User)
	payload := map[string]any{"username": username, "banned": banned}
	status, body, err := c.do(ctx, "account.ban", http.MethodPatch, url, payload)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, httpError(url, status, body)
}

func (c *Client) listOptions(ctx context.Context, event, endpoint, lang string) ([]Option, error) {
	url := c.url(endpoint)
	status, body, err := c.do(ctx, event, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		var resp struct {
			Results []map[string]any `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("accounts: decode %s: %w", event, err)
		}
		out := make([]Option, 0, len(resp.Results))
		for _, item := range resp.Results {
			id, ok := optionID(item["id"])
			if !ok {
				continue
			}
			out = append(out, Option{ID: id, Label: optionLabel(item, lang)})
		}
		return out, nil
	case http.StatusNotFound:
		return nil, nil
	}
	return nil, httpError(url, status, body)
}

// optionLabel picks description_<lang>, then any other field ending in _<lang>, then
// description_en.
func optionLabel(item map[string]any, lang string) string {
	suffix := "_" + lang
	if s, ok := item["description"+suffix].(string); ok && s != "" {
		return s
	}
	keys := make([]string, 0, len(item))
	for k := range item {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !strings.HasSuffix(k, suffix) {
			continue
		}
		if s, ok := item[k].(string); ok && s != "" {
			return s
		}
	}
	s, _ := item["description_en"].(string)
	return s
}

func optionID(v any) (int64, bool) {
	switch x := v.(type) {
	case float64:
		return int64(x), true
	case string:
		id, err := strconv.ParseInt(x, 10, 64)
		return id, err == nil
	}
	return 0, false
}

func (c *Client) url(endpoint string, parts ...string) string {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.Trim(endpoint, "/")
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

func (c *Client) do(ctx context.Context, event, method, url string, payload any) (int, []byte, error) {
	start := time.Now()
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("accounts: encode %s: %w", event, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("accounts: build %s: %w", event, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Authorization", authScheme+c.cfg.APIKey)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn(ctx, logger.CompAccounts, event,
			slog.String("status", "fail"),
			slog.String("method", method),
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			logger.Err(err),
		)
		return 0, nil, fmt.Errorf("accounts: %s: %w", event, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("accounts: read %s: %w", event, err)
	}
	logger.Debug(ctx, logger.CompAccounts, event,
		slog.String("status", "ok"),
		slog.String("method", method),
		slog.Int("http_code", resp.StatusCode),
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
	)
	return resp.StatusCode, body, nil
}

func httpError(url string, status int, body []byte) error {
	return &HTTPError{URL: url, Status: status, Message: logger.SanitizeLimit(string(body), maxErrorMessage)}
}

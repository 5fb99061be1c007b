// Package config loads the keybot configuration: the reusable core settings plus the
// database, store, account service, conversation and identity sections.
package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/keybot/core/config"
	"github.com/m3rciful/keybot/core/database"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Message types the dispatcher may hand to the state machine.
const (
	MessageTypeMessage  = "MESSAGE"
	MessageTypeInline   = "INLINE"
	MessageTypeCallback = "CALLBACK"
)

// StoreConfig selects the state store backend.
type StoreConfig struct {
	Driver string `yaml:"driver" envconfig:"STORE_DRIVER"`
}

// EndpointsConfig holds the account API paths, relative to BaseURL.
type EndpointsConfig struct {
	User          string `yaml:"user"`
	OutlineKey    string `yaml:"outline_key"`
	OutlineConfig string `yaml:"outline_config"`
	Servers       string `yaml:"servers"`
	Reasons       string `yaml:"reasons"`
	Issues        string `yaml:"issues"`
}

// AccountsConfig describes the account and key provisioning service.
type AccountsConfig struct {
	BaseURL         string          `yaml:"base_url" envconfig:"ACCOUNTS_BASE_URL"`
	APIKey          string          `yaml:"api_key" envconfig:"ACCOUNTS_API_KEY"`
	UserAgent       string          `yaml:"user_agent"`
	TimeoutSeconds  int             `yaml:"timeout_seconds"`
	Region          []string        `yaml:"region"`
	Channel         string          `yaml:"channel"`
	CacheTTLSeconds int             `yaml:"cache_ttl_seconds"`
	Endpoints       EndpointsConfig `yaml:"endpoints"`
}

// Timeout returns the per-request timeout.
func (a AccountsConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long option lists stay cached; zero disables the cache.
func (a AccountsConfig) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLSeconds) * time.Second
}

// BotConfig carries the conversation content.
type BotConfig struct {
	DefaultLanguage       string            `yaml:"default_language"`
	Languages             []string          `yaml:"languages"`
	SupportedMessageTypes []string          `yaml:"supported_message_types"`
	Admins                []string          `yaml:"admins" envconfig:"BOT_ADMINS"`
	SupportBot            string            `yaml:"support_bot"`
	LinkTag               string            `yaml:"link_tag"`
	InvitationURL         string            `yaml:"invitation_url"`
	TermsURL              map[string]string `yaml:"terms_url"`
	PrivacyURL            map[string]string `yaml:"privacy_url"`
	MediaDir              string            `yaml:"media_dir"`
	InstructionPhoto      string            `yaml:"instruction_photo"`
	InstructionVideo      string            `yaml:"instruction_video"`
}

// ChallengeConfig bounds the registration question.
type ChallengeConfig struct {
	MaxOperand int `yaml:"max_operand"`
	Choices    int `yaml:"choices"`
}

// IdentityConfig holds the key user ids are hashed with.
type IdentityConfig struct {
	Secret string `yaml:"secret" envconfig:"IDENTITY_SECRET"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database  database.Config `yaml:"database"`
	Store     StoreConfig     `yaml:"store"`
	Accounts  AccountsConfig  `yaml:"accounts"`
	Bot       BotConfig       `yaml:"bot"`
	Challenge ChallengeConfig `yaml:"challenge"`
	Identity  IdentityConfig  `yaml:"identity"`
}

// CoreConfig exposes the embedded runtime settings.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads path, applies environment overrides and normalizes the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}

	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	switch cfg.Store.Driver {
	case "":
		cfg.Store.Driver = StoreDriverPostgres
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("invalid store.driver %q; allowed: postgres, memory", cfg.Store.Driver)
	}
	if cfg.Store.Driver == StoreDriverPostgres && strings.TrimSpace(cfg.Database.Host) == "" {
		return fmt.Errorf("database.host is required with the postgres store")
	}

	if err := normalizeAccounts(&cfg.Accounts); err != nil {
		return err
	}
	if err := normalizeBot(&cfg.Bot); err != nil {
		return err
	}

	if cfg.Challenge.MaxOperand == 0 {
		cfg.Challenge.MaxOperand = 9
	}
	if cfg.Challenge.Choices == 0 {
		cfg.Challenge.Choices = 4
	}

	if cfg.Identity.Secret == "" {
		return fmt.Errorf("identity.secret is required")
	}
	return nil
}

func normalizeAccounts(a *AccountsConfig) error {
	if strings.TrimSpace(a.BaseURL) == "" {
		return fmt.Errorf("accounts.base_url is required")
	}
	if _, err := url.ParseRequestURI(a.BaseURL); err != nil {
		return fmt.Errorf("accounts.base_url: %w", err)
	}
	if a.APIKey == "" {
		return fmt.Errorf("accounts.api_key is required")
	}
	if a.TimeoutSeconds < 0 || a.CacheTTLSeconds < 0 {
		return fmt.Errorf("accounts timeouts must be >= 0")
	}
	if a.TimeoutSeconds == 0 {
		a.TimeoutSeconds = 10
	}
	if a.UserAgent == "" {
		a.UserAgent = "keybot"
	}
	if a.Channel == "" {
		a.Channel = "TG"
	}
	e := &a.Endpoints
	for _, p := range []struct {
		val *string
		def string
	}{
		{&e.User, "api/user"},
		{&e.OutlineKey, "api/outline_key"},
		{&e.OutlineConfig, "api/outline_config"},
		{&e.Servers, "api/servers"},
		{&e.Reasons, "api/delete_reasons"},
		{&e.Issues, "api/issues"},
	} {
		if strings.TrimSpace(*p.val) == "" {
			*p.val = p.def
		}
	}
	return nil
}

func normalizeBot(b *BotConfig) error {
	if len(b.Languages) == 0 {
		b.Languages = []string{"en", "fa", "ar"}
	}
	for i, lang := range b.Languages {
		b.Languages[i] = strings.ToLower(strings.TrimSpace(lang))
	}
	b.DefaultLanguage = strings.ToLower(strings.TrimSpace(b.DefaultLanguage))
	if b.DefaultLanguage == "" {
		b.DefaultLanguage = b.Languages[0]
	}
	if !slices.Contains(b.Languages, b.DefaultLanguage) {
		return fmt.Errorf("bot.default_language %q is not in bot.languages", b.DefaultLanguage)
	}

	if len(b.SupportedMessageTypes) == 0 {
		b.SupportedMessageTypes = []string{MessageTypeMessage, MessageTypeInline, MessageTypeCallback}
	}
	allowed := []string{MessageTypeMessage, MessageTypeInline, MessageTypeCallback}
	for i, typ := range b.SupportedMessageTypes {
		typ = strings.ToUpper(strings.TrimSpace(typ))
		if !slices.Contains(allowed, typ) {
			return fmt.Errorf("invalid bot.supported_message_types value %q; allowed: MESSAGE, INLINE, CALLBACK", b.SupportedMessageTypes[i])
		}
		b.SupportedMessageTypes[i] = typ
	}
	return nil
}

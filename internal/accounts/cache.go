package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/m3rciful/keybot/core/logger"
)

const (
	cacheShards    = 16
	cacheMaxSizeMB = 8
)

// Cached serves the option lists from memory for a while. Every other call goes straight
// to the embedded Client.
type Cached struct {
	*Client
	cache *bigcache.BigCache
}

// NewCached wraps client with a list cache whose entries live for ttl.
func NewCached(ctx context.Context, client *Client, ttl time.Duration) (*Cached, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = cacheShards
	cfg.HardMaxCacheSize = cacheMaxSizeMB
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = 1024
	cfg.Verbose = false
	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("accounts: init cache: %w", err)
	}
	return &Cached{Client: client, cache: cache}, nil
}

// ListDeleteReasons returns the cached deletion reasons of lang.
func (c *Cached) ListDeleteReasons(ctx context.Context, lang string) ([]Option, error) {
	return c.cached(ctx, "reasons:"+lang, func() ([]Option, error) {
		return c.Client.ListDeleteReasons(ctx, lang)
	})
}

// ListIssues returns the cached connectivity issues of lang.
func (c *Cached) ListIssues(ctx context.Context, lang string) ([]Option, error) {
	return c.cached(ctx, "issues:"+lang, func() ([]Option, error) {
		return c.Client.ListIssues(ctx, lang)
	})
}

// Close releases the cache.
func (c *Cached) Close() error {
	return c.cache.Close()
}

func (c *Cached) cached(ctx context.Context, key string, load func() ([]Option, error)) ([]Option, error) {
	raw, err := c.cache.Get(key)
	switch {
	case err == nil:
		var opts []Option
		if err := json.Unmarshal(raw, &opts); err == nil {
			logger.Debug(ctx, logger.CompAccounts, "options.cache", slog.String("cache", "hit"), slog.String("key", key))
			return opts, nil
		}
	case !errors.Is(err, bigcache.ErrEntryNotFound):
		logger.Warn(ctx, logger.CompAccounts, "options.cache", slog.String("key", key), logger.Err(err))
	}

	opts, err := load()
	if err != nil {
		return nil, err
	}
	// empty lists are never cached
	if len(opts) == 0 {
		return opts, nil
	}
	if data, err := json.Marshal(opts); err == nil {
		if err := c.cache.Set(key, data); err != nil {
			logger.Warn(ctx, logger.CompAccounts, "options.cache.set", slog.String("key", key), logger.Err(err))
		}
	}
	logger.Debug(ctx, logger.CompAccounts, "options.cache", slog.String("cache", "miss"), slog.String("key", key))
	return opts, nil
}

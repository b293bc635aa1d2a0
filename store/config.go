package store

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// Config specifies the store backend
type Config struct {
	// Type is memory|redis, memory is the default
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	// URL is the redis URL, for example redis://localhost:6379/0
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// Prefix for redis keys
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// TTL of the shopping session, as Go duration, 24h by default
	TTL string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// GetTTL returns the parsed TTL, or DefaultTTL
func (c *Config) GetTTL() (time.Duration, error) {
	if c.TTL == "" {
		return DefaultTTL, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid store TTL %q", c.TTL)
	}
	if d <= 0 {
		return 0, errors.Newf("invalid store TTL %q: must be positive", c.TTL)
	}
	return d, nil
}

// Stores is the pair of stores used by the agent
type Stores struct {
	Messages MessageStore
	Sessions SessionStore

	client *redis.Client
}

// Close releases the backend connection
func (s *Stores) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Open creates the stores for the config
func Open(ctx context.Context, cfg *Config) (*Stores, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	ttl, err := cfg.GetTTL()
	if err != nil {
		return nil, err
	}

	typ := strings.ToLower(values.StringsCoalesce(cfg.Type, "memory"))
	switch typ {
	case "memory":
		return &Stores{
			Messages: NewMemoryStore(),
			Sessions: NewMemorySessionStore(ttl),
		}, nil
	case "redis":
		if cfg.URL == "" {
			return nil, errors.New("redis store requires URL")
		}
		options, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, errors.Wrap(err, "invalid redis URL")
		}
		client := redis.NewClient(options)
		if err = client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, errors.Wrap(err, "failed to connect to Redis")
		}
		prefix := values.StringsCoalesce(cfg.Prefix, "shopagent")
		logger.KV(xlog.INFO, "status", "redis_store", "addr", options.Addr, "prefix", prefix, "ttl", ttl)
		return &Stores{
			Messages: NewRedisStore(client, prefix),
			Sessions: NewRedisSessionStore(client, prefix, ttl),
			client:   client,
		}, nil
	default:
		return nil, errors.Newf("unsupported store type: %s", cfg.Type)
	}
}

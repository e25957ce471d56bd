// Package rediscache provides a read-through Redis cache in front of a
// storage.CredentialStore. Successful lookups are cached with a TTL; misses
// are never cached, so a newly registered client is visible immediately.
// Any Redis failure falls back to the backing store.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ShivangMishra/veda-auth-central/pkg/debug"
	"github.com/ShivangMishra/veda-auth-central/pkg/observability"
	"github.com/ShivangMishra/veda-auth-central/pkg/storage"
)

// Default values for Options.
const (
	DefaultTTL          = 5 * time.Minute
	DefaultKeyPrefix    = "veda:"
	DefaultDialTimeout  = 2 * time.Second
	DefaultReadTimeout  = 500 * time.Millisecond
	DefaultWriteTimeout = 500 * time.Millisecond
)

// Options configures the Redis connection and cache behavior.
type Options struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Cache is a caching storage.CredentialStore.
type Cache struct {
	client    redis.UniversalClient
	next      storage.CredentialStore
	keyPrefix string
	ttl       time.Duration
}

var (
	_ storage.CredentialStore = (*Cache)(nil)
	_ storage.ClientWriter    = (*Cache)(nil)
)

// New connects to Redis and wraps next. The connection is verified with a
// ping; an unreachable Redis is a startup error.
func New(ctx context.Context, opts Options, next storage.CredentialStore) (*Cache, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewWithClient(client, next, opts.KeyPrefix, opts.TTL), nil
}

// NewWithClient wraps next using a pre-configured client.
// This is useful for testing with miniredis.
func NewWithClient(client redis.UniversalClient, next storage.CredentialStore, keyPrefix string, ttl time.Duration) *Cache {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, next: next, keyPrefix: keyPrefix, ttl: ttl}
}

func (c *Cache) key(clientID string) string {
	return c.keyPrefix + "client:" + clientID
}

// LookupClient serves clientID from Redis when present, otherwise from the
// backing store, caching the result.
func (c *Cache) LookupClient(ctx context.Context, clientID string) (*storage.ClientRecord, error) {
	key := c.key(clientID)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rec storage.ClientRecord
		if jsonErr := json.Unmarshal(data, &rec); jsonErr == nil {
			observability.CredentialCacheTotal.WithLabelValues("hit").Inc()
			return &rec, nil
		}
		// A corrupt entry is treated as a miss and overwritten below.
		observability.CredentialCacheTotal.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		observability.CredentialCacheTotal.WithLabelValues("miss").Inc()
	default:
		observability.CredentialCacheTotal.WithLabelValues("error").Inc()
		slog.Warn("credential cache read failed, using backing store", "error", err)
	}

	rec, err := c.next.LookupClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rec); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Warn("credential cache write failed", "error", err)
		} else {
			debug.Log("storage", "cached client", "client_id", clientID, "ttl", c.ttl)
		}
	}
	return rec, nil
}

// PutClient writes rec to the backing store and drops its cached entry, so
// a rotated secret takes effect on the next lookup.
func (c *Cache) PutClient(ctx context.Context, rec storage.ClientRecord) error {
	w, ok := c.next.(storage.ClientWriter)
	if !ok {
		return errors.New("backing store does not accept client records")
	}
	if err := w.PutClient(ctx, rec); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, rec.ClientID); err != nil {
		return fmt.Errorf("invalidating cached client %s: %w", rec.ClientID, err)
	}
	return nil
}

// Invalidate drops the cached entry for clientID.
func (c *Cache) Invalidate(ctx context.Context, clientID string) error {
	return c.client.Del(ctx, c.key(clientID)).Err()
}

// HealthCheck reports the backing store's health. A Redis outage degrades
// to uncached lookups, so it does not fail the check.
func (c *Cache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		slog.Warn("credential cache unreachable", "error", err)
	}
	return c.next.HealthCheck(ctx)
}

// Close closes the Redis client and the backing store.
func (c *Cache) Close() error {
	return errors.Join(c.client.Close(), c.next.Close())
}

package auth

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// DefaultTier is used for clients without a tier.
const DefaultTier = "default"

// RateLimiter checks whether a call from a platform client should be allowed.
type RateLimiter interface {
	Allow(ctx context.Context, clientID, tier string) error
}

// TierConfig holds rate limit settings for a client tier.
type TierConfig struct {
	RequestsPerMinute int
	// Burst is the bucket size; it defaults to RequestsPerMinute.
	Burst int
}

// TokenBucketLimiter keeps one token bucket per client and tier in memory.
type TokenBucketLimiter struct {
	tiers       map[string]TierConfig
	defaultTier TierConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewTokenBucketLimiter creates a limiter with per-tier configuration.
// Tiers not listed use defaultTier. A tier with RequestsPerMinute <= 0 is
// unlimited.
func NewTokenBucketLimiter(tiers map[string]TierConfig, defaultTier TierConfig) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		tiers:       tiers,
		defaultTier: defaultTier,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Allow takes one token from the client's bucket.
func (l *TokenBucketLimiter) Allow(_ context.Context, clientID, tier string) error {
	if tier == "" {
		tier = DefaultTier
	}
	cfg, ok := l.tiers[tier]
	if !ok {
		cfg = l.defaultTier
	}
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}

	if !l.limiter(clientID+":"+tier, cfg).Allow() {
		return ErrTooManyRequests
	}
	return nil
}

func (l *TokenBucketLimiter) limiter(key string, cfg TierConfig) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.RequestsPerMinute
		}
		lim = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), burst)
		l.limiters[key] = lim
	}
	return lim
}

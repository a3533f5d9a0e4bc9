package domain

import (
	"context"
	"time"
)

// Cache is the explicit, injectable cache for derived analysis inputs.
// The engine keys entity history entries by (entityID, windowDays) and
// invalidates them on new-transaction ingestion; there is no implicit
// process-wide memoization.
type Cache interface {
	// Get retrieves a value from cache. Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetHistory retrieves a cached entity transaction history.
	GetHistory(ctx context.Context, entityID string, windowDays int) ([]*Transaction, bool, error)

	// SetHistory caches an entity transaction history.
	SetHistory(ctx context.Context, entityID string, windowDays int, history []*Transaction, ttl time.Duration) error

	// InvalidateHistory drops the cached history for an entity across the
	// given windows. Called on ingestion before the new transaction is
	// visible to readers.
	InvalidateHistory(ctx context.Context, entityID string, windows []int) error

	// IncrementCounter atomically increments a counter and returns the new
	// value. Used for velocity windows.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// HistoryWindows are the window sizes the engine caches history under and
// therefore the set invalidated on ingestion. Window 0 is the full
// newest-first history.
var HistoryWindows = []int{0, 30}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}

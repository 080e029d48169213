package domain

import (
	"context"
	"time"
)

// Cache defines the interface for the counter/cache store. The fraud
// pipeline uses it for per-user transaction counters and per-transaction
// result caching; the chat service uses it for sessions.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetCounter reads a counter. found is false when the key has no
	// counter, which callers must distinguish from a store error.
	GetCounter(ctx context.Context, key string) (value int64, found bool, err error)

	// IncrementCounter atomically increments a counter, setting its TTL
	// on first increment, and returns the new value.
	IncrementCounter(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}

// Cache key patterns used by the service.
const (
	// KeyUserTransactions holds the per-user transaction counter.
	KeyUserTransactions = "user_transactions:"

	// KeyFraudAnalysis holds a cached FraudAssessment, keyed by
	// transaction ID.
	KeyFraudAnalysis = "fraud_analysis:"

	// KeyChatSession holds chat session state.
	KeyChatSession = "chat_session:"

	// KeyRiskProfile holds a cached user risk profile.
	KeyRiskProfile = "user_risk_profile:"
)

// Cache lifetimes.
const (
	// AnalysisTTL is the lifetime of a cached fraud analysis.
	AnalysisTTL = 24 * time.Hour

	// SessionTTL is the lifetime of a chat session.
	SessionTTL = 24 * time.Hour

	// RiskProfileTTL is the lifetime of a cached risk profile.
	RiskProfileTTL = time.Hour
)

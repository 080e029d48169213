package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence. Assessments are
// written once per analysis as an audit log; the result cache is the fast
// path and the repository the fallback for reads.
type Repository interface {
	// Assessment operations
	SaveAssessment(ctx context.Context, a *FraudAssessment) error
	GetAssessment(ctx context.Context, id string) (*FraudAssessment, error)
	GetAssessmentByTransaction(ctx context.Context, txID string) (*FraudAssessment, error)
	ListAssessmentsByUser(ctx context.Context, userID string, limit int) ([]*FraudAssessment, error)
	CountAssessmentsByUser(ctx context.Context, userID string, since time.Time) (int64, error)

	// Alert operations
	SaveAlert(ctx context.Context, alert *Alert) error
	ListAlerts(ctx context.Context, limit int) ([]*Alert, error)

	// Escalation policy operations
	SavePolicy(ctx context.Context, policy *Policy) error
	ListPolicies(ctx context.Context) ([]*Policy, error)
	DeletePolicy(ctx context.Context, policyID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

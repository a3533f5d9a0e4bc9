package domain

import (
	"context"
	"time"
)

// Store is the persistence boundary consumed by the engine. Detectors only
// read; the Store serializes writes internally (single-writer discipline)
// while permitting lock-free concurrent reads.
type Store interface {
	// Entity operations
	SaveEntity(ctx context.Context, entity *Entity) error
	GetEntity(ctx context.Context, entityID string) (*Entity, error)
	UpdateEntityRisk(ctx context.Context, entityID string, riskScore float64) error
	EntityFlags(ctx context.Context, entityID string) (EntityFlags, error)

	// Case operations
	SaveCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, caseID string) (*Case, error)
	ListCases(ctx context.Context, status CaseStatus, limit int) ([]*Case, error)
	UpdateCaseStatus(ctx context.Context, caseID string, status CaseStatus) error
	AppendPatternIndicators(ctx context.Context, caseID string, indicators []string) error
	CaseSummary(ctx context.Context, caseID string) (*CaseSummary, error)

	// Transaction operations
	SaveTransaction(ctx context.Context, tx *Transaction) error
	CaseTransactions(ctx context.Context, caseID string) ([]*Transaction, error)

	// TransactionHistory returns transactions touching the entity. With
	// windowDays > 0 it returns the window ordered oldest-first; with
	// windowDays <= 0 it returns the full history ordered newest-first.
	TransactionHistory(ctx context.Context, entityID string, windowDays int) ([]*Transaction, error)
	LifetimeTransactionCount(ctx context.Context, entityID string) (int64, error)

	// AggregatedEdges returns the directed, aggregated graph edges touching
	// any entity in the set.
	AggregatedEdges(ctx context.Context, entityIDs []string) ([]Edge, error)

	// Anomaly records
	SaveAnomaly(ctx context.Context, score *AnomalyScore) error
	AnomaliesByCase(ctx context.Context, caseID string) ([]AnomalyScore, error)

	// Indicator rule configuration
	SaveIndicatorRule(ctx context.Context, rule *IndicatorRule) error
	ListIndicatorRules(ctx context.Context) ([]*IndicatorRule, error)

	// Aggregate statistics
	Statistics(ctx context.Context) (*Statistics, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// StoreConfig holds configuration for store initialization.
type StoreConfig struct {
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

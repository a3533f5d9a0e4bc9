// Package velocity derives transaction velocity measures for entities.
package velocity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
)

// Velocity factor scale bounds.
const (
	MaxFactor = 10.0

	// DefaultWindow is the trailing window used for the velocity factor.
	DefaultWindow = 24 * time.Hour

	// factorDivisor maps a 24h count onto the 0-10 scale: 5 transactions
	// per hour saturates the factor.
	factorDivisor = 12.0
)

// Service calculates transaction velocity from the store, with an optional
// direct database handle for drivers that expose one.
type Service struct {
	store domain.Store
	db    *sql.DB
}

// NewService creates a velocity service over the store.
func NewService(store domain.Store) *Service {
	return &Service{store: store}
}

// NewServiceWithDB creates a velocity service that counts via a direct
// database handle instead of the store interface.
func NewServiceWithDB(store domain.Store, db *sql.DB) *Service {
	return &Service{store: store, db: db}
}

// TransactionCount returns the number of transactions touching the entity
// within the trailing window. This matches the rule engine's
// VelocityGetter signature.
func (s *Service) TransactionCount(ctx context.Context, entityID string, windowSecs int) (int64, error) {
	if entityID == "" {
		return 0, fmt.Errorf("entityID is required")
	}
	if windowSecs <= 0 {
		windowSecs = int(DefaultWindow / time.Second)
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)

	if s.db != nil {
		return s.countFromDB(ctx, entityID, since)
	}
	if s.store != nil {
		return s.countFromStore(ctx, entityID, since)
	}
	return 0, fmt.Errorf("no data source available")
}

// Factor maps the entity's 24h transaction count onto the 0-10 velocity
// scale used by the holistic assessment.
func (s *Service) Factor(ctx context.Context, entityID string) (float64, error) {
	count, err := s.TransactionCount(ctx, entityID, int(DefaultWindow/time.Second))
	if err != nil {
		return 0, err
	}
	return FactorFromCount(count), nil
}

// FactorFromCount converts a 24h transaction count to the 0-10 velocity
// factor.
func FactorFromCount(count int64) float64 {
	factor := float64(count) / factorDivisor
	if factor > MaxFactor {
		return MaxFactor
	}
	return factor
}

func (s *Service) countFromDB(ctx context.Context, entityID string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*) FROM transactions
		WHERE (source_entity = ? OR dest_entity = ?)
		AND timestamp >= ?
	`

	var count int64
	err := s.db.QueryRowContext(ctx, query, entityID, entityID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (s *Service) countFromStore(ctx context.Context, entityID string, since time.Time) (int64, error) {
	txs, err := s.store.TransactionHistory(ctx, entityID, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to load transactions: %w", err)
	}

	var count int64
	for _, tx := range txs {
		if !tx.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

// Getter returns the VelocityGetter function for the rule engine.
func (s *Service) Getter() func(ctx context.Context, entityID string, windowSecs int) (int64, error) {
	return s.TransactionCount
}

// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLStore implements domain.Store using database/sql.
// Works with both SQLite and PostgreSQL drivers.
//
// Writes are serialized through a single mutex; reads run lock-free on the
// connection pool. Analysis snapshots therefore never observe a half-written
// transaction.
type SQLStore struct {
	db     *sql.DB
	driver string

	writeMu sync.Mutex
}

// New creates a new store based on configuration.
func New(cfg domain.StoreConfig) (*SQLStore, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &SQLStore{
		db:     db,
		driver: cfg.Driver,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// DB exposes the underlying handle for components that need direct queries.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// SaveEntity stores an entity, replacing identity fields on conflict.
func (s *SQLStore) SaveEntity(ctx context.Context, entity *domain.Entity) error {
	if entity == nil || entity.ID == "" {
		return fmt.Errorf("%w: entity ID is required", ErrInvalidInput)
	}

	metadata, _ := json.Marshal(entity.Metadata)

	query := `
		INSERT INTO entities (
			id, name, type, pep_flag, sanctions_flag, risk_score, created_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			pep_flag = excluded.pep_flag,
			sanctions_flag = excluded.sanctions_flag,
			metadata = excluded.metadata
	`

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		entity.ID, entity.Name, string(entity.Type),
		boolToInt(entity.PEPFlag), boolToInt(entity.SanctionsFlag),
		entity.RiskScore, entity.CreatedAt, string(metadata),
	)
	return err
}

// GetEntity retrieves an entity by ID.
func (s *SQLStore) GetEntity(ctx context.Context, entityID string) (*domain.Entity, error) {
	if entityID == "" {
		return nil, fmt.Errorf("%w: entityID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, type, pep_flag, sanctions_flag, risk_score, created_at, metadata
		FROM entities
		WHERE id = ?
	`

	var e domain.Entity
	var entityType, metadata string
	var pep, sanctions int

	err := s.db.QueryRowContext(ctx, s.rebind(query), entityID).Scan(
		&e.ID, &e.Name, &entityType, &pep, &sanctions,
		&e.RiskScore, &e.CreatedAt, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	e.Type = domain.EntityType(entityType)
	e.PEPFlag = pep == 1
	e.SanctionsFlag = sanctions == 1
	if metadata != "" {
		json.Unmarshal([]byte(metadata), &e.Metadata)
	}

	return &e, nil
}

// UpdateEntityRisk sets the entity's risk score. This is the only mutation
// path for entity state after creation.
func (s *SQLStore) UpdateEntityRisk(ctx context.Context, entityID string, riskScore float64) error {
	if entityID == "" {
		return fmt.Errorf("%w: entityID is required", ErrInvalidInput)
	}

	query := `UPDATE entities SET risk_score = ? WHERE id = ?`

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx, s.rebind(query), riskScore, entityID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// EntityFlags returns the PEP and sanctions flags for an entity. Unknown
// entities return zero flags rather than an error so scoring can proceed.
func (s *SQLStore) EntityFlags(ctx context.Context, entityID string) (domain.EntityFlags, error) {
	query := `SELECT pep_flag, sanctions_flag FROM entities WHERE id = ?`

	var pep, sanctions int
	err := s.db.QueryRowContext(ctx, s.rebind(query), entityID).Scan(&pep, &sanctions)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EntityFlags{}, nil
	}
	if err != nil {
		return domain.EntityFlags{}, err
	}

	return domain.EntityFlags{PEPFlag: pep == 1, SanctionsFlag: sanctions == 1}, nil
}

// SaveCase stores a case.
func (s *SQLStore) SaveCase(ctx context.Context, c *domain.Case) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: case ID is required", ErrInvalidInput)
	}

	indicators, _ := json.Marshal(c.PatternIndicators)

	query := `
		INSERT INTO aml_cases (
			id, title, description, category, status, risk_level,
			amount_involved, pattern_indicators, risk_score, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			category = excluded.category,
			status = excluded.status,
			risk_level = excluded.risk_level,
			amount_involved = excluded.amount_involved,
			pattern_indicators = excluded.pattern_indicators,
			risk_score = excluded.risk_score,
			updated_at = excluded.updated_at
	`

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		c.ID, c.Title, c.Description, c.Category,
		string(c.Status), string(c.RiskLevel),
		c.AmountInvolved, string(indicators), c.RiskScore,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetCase retrieves a case by ID.
func (s *SQLStore) GetCase(ctx context.Context, caseID string) (*domain.Case, error) {
	if caseID == "" {
		return nil, fmt.Errorf("%w: caseID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, title, description, category, status, risk_level,
			   amount_involved, pattern_indicators, risk_score, created_at, updated_at
		FROM aml_cases
		WHERE id = ?
	`

	row := s.db.QueryRowContext(ctx, s.rebind(query), caseID)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// ListCases returns cases, optionally filtered by status, newest first.
func (s *SQLStore) ListCases(ctx context.Context, status domain.CaseStatus, limit int) ([]*domain.Case, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, title, description, category, status, risk_level,
			   amount_involved, pattern_indicators, risk_score, created_at, updated_at
		FROM aml_cases
	`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// UpdateCaseStatus transitions a case to the given status.
func (s *SQLStore) UpdateCaseStatus(ctx context.Context, caseID string, status domain.CaseStatus) error {
	if caseID == "" {
		return fmt.Errorf("%w: caseID is required", ErrInvalidInput)
	}

	query := `UPDATE aml_cases SET status = ?, updated_at = ? WHERE id = ?`

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	result, err := s.db.ExecContext(ctx, s.rebind(query), string(status), time.Now().UTC(), caseID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendPatternIndicators merges new indicators into the case, keeping the
// stored set unique.
func (s *SQLStore) AppendPatternIndicators(ctx context.Context, caseID string, indicators []string) error {
	if caseID == "" {
		return fmt.Errorf("%w: caseID is required", ErrInvalidInput)
	}
	if len(indicators) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var stored string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT pattern_indicators FROM aml_cases WHERE id = ?`), caseID,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var existing []string
	if stored != "" {
		json.Unmarshal([]byte(stored), &existing)
	}

	seen := make(map[string]struct{}, len(existing))
	for _, ind := range existing {
		seen[ind] = struct{}{}
	}
	for _, ind := range indicators {
		if _, ok := seen[ind]; !ok {
			seen[ind] = struct{}{}
			existing = append(existing, ind)
		}
	}

	merged, _ := json.Marshal(existing)
	_, err = s.db.ExecContext(ctx,
		s.rebind(`UPDATE aml_cases SET pattern_indicators = ?, updated_at = ? WHERE id = ?`),
		string(merged), time.Now().UTC(), caseID,
	)
	return err
}

// CaseSummary returns the scoring view of a case.
func (s *SQLStore) CaseSummary(ctx context.Context, caseID string) (*domain.CaseSummary, error) {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return &domain.CaseSummary{
		RiskLevel:            c.RiskLevel,
		AmountInvolved:       c.AmountInvolved,
		HasPatternIndicators: len(c.PatternIndicators) > 0,
	}, nil
}

// SaveTransaction stores a transaction.
func (s *SQLStore) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction ID is required", ErrInvalidInput)
	}

	channels, _ := json.Marshal(tx.Channels)
	flags, _ := json.Marshal(tx.Flags)
	patterns, _ := json.Marshal(tx.DetectedPatterns)

	query := `
		INSERT INTO transactions (
			id, case_id, source_entity, dest_entity, amount, currency,
			timestamp, type, channels, flags, description,
			risk_score, detected_patterns, anomaly_score, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		tx.ID, tx.CaseID, tx.SourceEntity, tx.DestEntity,
		tx.Amount, tx.Currency, tx.Timestamp, tx.Type,
		string(channels), string(flags), tx.Description,
		tx.RiskScore, string(patterns), tx.AnomalyScore, tx.CreatedAt,
	)
	return err
}

// CaseTransactions returns all transactions of a case ordered oldest first.
func (s *SQLStore) CaseTransactions(ctx context.Context, caseID string) ([]*domain.Transaction, error) {
	if caseID == "" {
		return nil, fmt.Errorf("%w: caseID is required", ErrInvalidInput)
	}

	query := txSelect + ` WHERE case_id = ? ORDER BY timestamp ASC, id ASC`
	return s.queryTransactions(ctx, query, caseID)
}

// TransactionHistory returns transactions touching the entity. With
// windowDays > 0 the trailing window is returned oldest-first; otherwise
// the full history is returned newest-first.
func (s *SQLStore) TransactionHistory(ctx context.Context, entityID string, windowDays int) ([]*domain.Transaction, error) {
	if entityID == "" {
		return nil, fmt.Errorf("%w: entityID is required", ErrInvalidInput)
	}

	if windowDays > 0 {
		since := time.Now().UTC().AddDate(0, 0, -windowDays)
		query := txSelect + `
			WHERE (source_entity = ? OR dest_entity = ?) AND timestamp >= ?
			ORDER BY timestamp ASC, id ASC`
		return s.queryTransactions(ctx, query, entityID, entityID, since)
	}

	query := txSelect + `
		WHERE source_entity = ? OR dest_entity = ?
		ORDER BY timestamp DESC, id DESC`
	return s.queryTransactions(ctx, query, entityID, entityID)
}

// LifetimeTransactionCount returns the total number of transactions that
// touch the entity.
func (s *SQLStore) LifetimeTransactionCount(ctx context.Context, entityID string) (int64, error) {
	if entityID == "" {
		return 0, fmt.Errorf("%w: entityID is required", ErrInvalidInput)
	}

	query := `SELECT COUNT(*) FROM transactions WHERE source_entity = ? OR dest_entity = ?`

	var count int64
	err := s.db.QueryRowContext(ctx, s.rebind(query), entityID, entityID).Scan(&count)
	return count, err
}

// AggregatedEdges collapses all transactions touching the entity set into
// directed (source, destination) edges with summed amounts.
func (s *SQLStore) AggregatedEdges(ctx context.Context, entityIDs []string) ([]domain.Edge, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(entityIDs)), ", ")
	query := fmt.Sprintf(`
		SELECT source_entity, dest_entity, SUM(amount), COUNT(*)
		FROM transactions
		WHERE source_entity IN (%s) OR dest_entity IN (%s)
		GROUP BY source_entity, dest_entity
		ORDER BY source_entity, dest_entity
	`, placeholders, placeholders)

	args := make([]any, 0, 2*len(entityIDs))
	for _, id := range entityIDs {
		args = append(args, id)
	}
	for _, id := range entityIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []domain.Edge
	for rows.Next() {
		var e domain.Edge
		if err := rows.Scan(&e.Source, &e.Destination, &e.TotalAmount, &e.TransactionCount); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// SaveAnomaly stores an anomaly record for a transaction. The owning case
// is resolved from the transaction row.
func (s *SQLStore) SaveAnomaly(ctx context.Context, score *domain.AnomalyScore) error {
	if score == nil || score.TransactionID == "" {
		return fmt.Errorf("%w: transaction ID is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(score.Reasons)

	query := `
		INSERT INTO anomaly_scores (transaction_id, case_id, score, reasons, detected_at)
		VALUES (?, COALESCE((SELECT case_id FROM transactions WHERE id = ?), ''), ?, ?, ?)
		ON CONFLICT(transaction_id) DO UPDATE SET
			score = excluded.score,
			reasons = excluded.reasons,
			detected_at = excluded.detected_at
	`

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		score.TransactionID, score.TransactionID,
		score.Score, string(reasons), score.DetectedAt,
	)
	return err
}

// AnomaliesByCase returns all anomaly records for a case's transactions.
func (s *SQLStore) AnomaliesByCase(ctx context.Context, caseID string) ([]domain.AnomalyScore, error) {
	if caseID == "" {
		return nil, fmt.Errorf("%w: caseID is required", ErrInvalidInput)
	}

	query := `
		SELECT transaction_id, score, reasons, detected_at
		FROM anomaly_scores
		WHERE case_id = ?
		ORDER BY detected_at ASC, transaction_id ASC
	`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []domain.AnomalyScore
	for rows.Next() {
		var a domain.AnomalyScore
		var reasons string
		if err := rows.Scan(&a.TransactionID, &a.Score, &reasons, &a.DetectedAt); err != nil {
			return nil, err
		}
		if reasons != "" {
			json.Unmarshal([]byte(reasons), &a.Reasons)
		}
		scores = append(scores, a)
	}
	return scores, rows.Err()
}

// SaveIndicatorRule stores an indicator rule, updating on conflict.
func (s *SQLStore) SaveIndicatorRule(ctx context.Context, rule *domain.IndicatorRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule ID is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	created := rule.CreatedAt
	if created.IsZero() {
		created = now
	}

	query := `
		INSERT INTO indicator_rules (
			id, name, description, expression, indicator, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			indicator = excluded.indicator,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression,
		rule.Indicator, rule.Weight, boolToInt(rule.Enabled),
		created, now,
	)
	return err
}

// ListIndicatorRules returns all stored rules ordered by name, including
// disabled ones so the engine can decide what to load.
func (s *SQLStore) ListIndicatorRules(ctx context.Context) ([]*domain.IndicatorRule, error) {
	query := `
		SELECT id, name, description, expression, indicator, weight, enabled, created_at, updated_at
		FROM indicator_rules
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.IndicatorRule
	for rows.Next() {
		var r domain.IndicatorRule
		var enabled int
		if err := rows.Scan(
			&r.ID, &r.Name, &r.Description, &r.Expression,
			&r.Indicator, &r.Weight, &enabled, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		r.Enabled = enabled == 1
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}

// Statistics returns the aggregate case and transaction counts.
func (s *SQLStore) Statistics(ctx context.Context) (*domain.Statistics, error) {
	stats := &domain.Statistics{
		CasesByStatus:    make(map[string]int64),
		CasesByRiskLevel: make(map[string]int64),
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM aml_cases`).Scan(&stats.TotalCases); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&stats.TotalTransactions); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&stats.TotalEntities); err != nil {
		return nil, err
	}

	if err := s.countBy(ctx, `SELECT status, COUNT(*) FROM aml_cases GROUP BY status`, stats.CasesByStatus); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, `SELECT risk_level, COUNT(*) FROM aml_cases GROUP BY risk_level`, stats.CasesByRiskLevel); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *SQLStore) countBy(ctx context.Context, query string, into map[string]int64) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

const txSelect = `
	SELECT id, case_id, source_entity, dest_entity, amount, currency,
		   timestamp, type, channels, flags, description,
		   risk_score, detected_patterns, anomaly_score, created_at
	FROM transactions`

func (s *SQLStore) queryTransactions(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var channels, flags, patterns string

		if err := rows.Scan(
			&tx.ID, &tx.CaseID, &tx.SourceEntity, &tx.DestEntity,
			&tx.Amount, &tx.Currency, &tx.Timestamp, &tx.Type,
			&channels, &flags, &tx.Description,
			&tx.RiskScore, &patterns, &tx.AnomalyScore, &tx.CreatedAt,
		); err != nil {
			return nil, err
		}

		if channels != "" {
			json.Unmarshal([]byte(channels), &tx.Channels)
		}
		if flags != "" {
			json.Unmarshal([]byte(flags), &tx.Flags)
		}
		if patterns != "" {
			json.Unmarshal([]byte(patterns), &tx.DetectedPatterns)
		}
		transactions = append(transactions, &tx)
	}
	return transactions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*domain.Case, error) {
	var c domain.Case
	var status, riskLevel, indicators string

	err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.Category,
		&status, &riskLevel,
		&c.AmountInvolved, &indicators, &c.RiskScore,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = domain.CaseStatus(status)
	c.RiskLevel = domain.RiskLevel(riskLevel)
	if indicators != "" {
		json.Unmarshal([]byte(indicators), &c.PatternIndicators)
	}
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

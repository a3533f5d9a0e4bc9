package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "aml-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	s, err := New(domain.StoreConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetEntity", func(t *testing.T) {
		entity := &domain.Entity{
			ID:        "entity-001",
			Name:      "Acme Trading Ltd",
			Type:      domain.EntityOrganization,
			PEPFlag:   false,
			CreatedAt: time.Now().UTC(),
			Metadata:  map[string]any{"jurisdiction": "KY"},
		}

		if err := s.SaveEntity(ctx, entity); err != nil {
			t.Fatalf("SaveEntity failed: %v", err)
		}

		retrieved, err := s.GetEntity(ctx, "entity-001")
		if err != nil {
			t.Fatalf("GetEntity failed: %v", err)
		}
		if retrieved.Name != entity.Name {
			t.Errorf("expected name %s, got %s", entity.Name, retrieved.Name)
		}
		if retrieved.Type != domain.EntityOrganization {
			t.Errorf("expected type organization, got %s", retrieved.Type)
		}
	})

	t.Run("UpdateEntityRisk", func(t *testing.T) {
		if err := s.UpdateEntityRisk(ctx, "entity-001", 72.5); err != nil {
			t.Fatalf("UpdateEntityRisk failed: %v", err)
		}

		e, err := s.GetEntity(ctx, "entity-001")
		if err != nil {
			t.Fatalf("GetEntity failed: %v", err)
		}
		if e.RiskScore != 72.5 {
			t.Errorf("expected risk score 72.5, got %.2f", e.RiskScore)
		}

		if err := s.UpdateEntityRisk(ctx, "nonexistent", 10); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("EntityFlags", func(t *testing.T) {
		flagged := &domain.Entity{
			ID:        "entity-pep",
			Name:      "Flagged Person",
			Type:      domain.EntityPerson,
			PEPFlag:   true,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.SaveEntity(ctx, flagged); err != nil {
			t.Fatalf("SaveEntity failed: %v", err)
		}

		flags, err := s.EntityFlags(ctx, "entity-pep")
		if err != nil {
			t.Fatalf("EntityFlags failed: %v", err)
		}
		if !flags.PEPFlag || flags.SanctionsFlag {
			t.Errorf("unexpected flags: %+v", flags)
		}

		// Unknown entities score with zero flags rather than failing.
		flags, err = s.EntityFlags(ctx, "nobody")
		if err != nil {
			t.Fatalf("EntityFlags for unknown entity failed: %v", err)
		}
		if flags.PEPFlag || flags.SanctionsFlag {
			t.Errorf("expected zero flags for unknown entity, got %+v", flags)
		}
	})

	t.Run("SaveAndGetCase", func(t *testing.T) {
		c := &domain.Case{
			ID:             "case-001",
			Title:          "Suspicious wire activity",
			Status:         domain.CaseOpen,
			RiskLevel:      domain.RiskMedium,
			AmountInvolved: 250000,
			CreatedAt:      time.Now().UTC(),
			UpdatedAt:      time.Now().UTC(),
		}

		if err := s.SaveCase(ctx, c); err != nil {
			t.Fatalf("SaveCase failed: %v", err)
		}

		retrieved, err := s.GetCase(ctx, "case-001")
		if err != nil {
			t.Fatalf("GetCase failed: %v", err)
		}
		if retrieved.Title != c.Title {
			t.Errorf("expected title %q, got %q", c.Title, retrieved.Title)
		}
		if retrieved.Status != domain.CaseOpen {
			t.Errorf("expected status open, got %s", retrieved.Status)
		}
	})

	t.Run("UpdateCaseStatus", func(t *testing.T) {
		if err := s.UpdateCaseStatus(ctx, "case-001", domain.CaseEscalated); err != nil {
			t.Fatalf("UpdateCaseStatus failed: %v", err)
		}

		c, err := s.GetCase(ctx, "case-001")
		if err != nil {
			t.Fatalf("GetCase failed: %v", err)
		}
		if c.Status != domain.CaseEscalated {
			t.Errorf("expected escalated, got %s", c.Status)
		}

		if err := s.UpdateCaseStatus(ctx, "nonexistent", domain.CaseClosed); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("AppendPatternIndicators", func(t *testing.T) {
		if err := s.AppendPatternIndicators(ctx, "case-001", []string{domain.IndicatorCashIntensive}); err != nil {
			t.Fatalf("AppendPatternIndicators failed: %v", err)
		}
		// Appending the same indicator twice keeps the set unique.
		if err := s.AppendPatternIndicators(ctx, "case-001", []string{domain.IndicatorCashIntensive, domain.IndicatorUnusualVolume}); err != nil {
			t.Fatalf("AppendPatternIndicators failed: %v", err)
		}

		c, err := s.GetCase(ctx, "case-001")
		if err != nil {
			t.Fatalf("GetCase failed: %v", err)
		}
		if len(c.PatternIndicators) != 2 {
			t.Errorf("expected 2 unique indicators, got %v", c.PatternIndicators)
		}

		summary, err := s.CaseSummary(ctx, "case-001")
		if err != nil {
			t.Fatalf("CaseSummary failed: %v", err)
		}
		if !summary.HasPatternIndicators {
			t.Error("expected summary to report indicators")
		}
	})

	t.Run("ListCases", func(t *testing.T) {
		closed := &domain.Case{
			ID:        "case-002",
			Title:     "Closed case",
			Status:    domain.CaseClosed,
			RiskLevel: domain.RiskLow,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := s.SaveCase(ctx, closed); err != nil {
			t.Fatalf("SaveCase failed: %v", err)
		}

		all, err := s.ListCases(ctx, "", 10)
		if err != nil {
			t.Fatalf("ListCases failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 cases, got %d", len(all))
		}

		onlyClosed, err := s.ListCases(ctx, domain.CaseClosed, 10)
		if err != nil {
			t.Fatalf("ListCases failed: %v", err)
		}
		if len(onlyClosed) != 1 || onlyClosed[0].ID != "case-002" {
			t.Errorf("unexpected filtered cases: %+v", onlyClosed)
		}
	})

	t.Run("SaveTransactionAndHistory", func(t *testing.T) {
		now := time.Now().UTC()
		for i := 0; i < 3; i++ {
			tx := &domain.Transaction{
				ID:           fmt.Sprintf("tx-%03d", i),
				CaseID:       "case-001",
				SourceEntity: "entity-001",
				DestEntity:   "entity-002",
				Amount:       float64(1000 * (i + 1)),
				Currency:     "USD",
				Timestamp:    now.Add(-time.Duration(i) * time.Hour),
				Type:         "wire",
				Channels:     []string{"swift"},
				CreatedAt:    now,
			}
			if err := s.SaveTransaction(ctx, tx); err != nil {
				t.Fatalf("SaveTransaction failed: %v", err)
			}
		}

		// Full history is newest first.
		full, err := s.TransactionHistory(ctx, "entity-001", 0)
		if err != nil {
			t.Fatalf("TransactionHistory failed: %v", err)
		}
		if len(full) != 3 {
			t.Fatalf("expected 3 transactions, got %d", len(full))
		}
		if full[0].ID != "tx-000" {
			t.Errorf("expected newest first, got %s", full[0].ID)
		}
		if len(full[0].Channels) != 1 || full[0].Channels[0] != "swift" {
			t.Errorf("channels did not round-trip: %v", full[0].Channels)
		}

		// Windowed history is oldest first.
		windowed, err := s.TransactionHistory(ctx, "entity-001", 7)
		if err != nil {
			t.Fatalf("TransactionHistory failed: %v", err)
		}
		if len(windowed) != 3 {
			t.Fatalf("expected 3 transactions in window, got %d", len(windowed))
		}
		if windowed[0].ID != "tx-002" {
			t.Errorf("expected oldest first in window, got %s", windowed[0].ID)
		}

		count, err := s.LifetimeTransactionCount(ctx, "entity-001")
		if err != nil {
			t.Fatalf("LifetimeTransactionCount failed: %v", err)
		}
		if count != 3 {
			t.Errorf("expected lifetime count 3, got %d", count)
		}
	})

	t.Run("CaseTransactions", func(t *testing.T) {
		txs, err := s.CaseTransactions(ctx, "case-001")
		if err != nil {
			t.Fatalf("CaseTransactions failed: %v", err)
		}
		if len(txs) != 3 {
			t.Errorf("expected 3 case transactions, got %d", len(txs))
		}
	})

	t.Run("AggregatedEdges", func(t *testing.T) {
		edges, err := s.AggregatedEdges(ctx, []string{"entity-001"})
		if err != nil {
			t.Fatalf("AggregatedEdges failed: %v", err)
		}
		if len(edges) != 1 {
			t.Fatalf("expected 1 aggregated edge, got %d", len(edges))
		}
		e := edges[0]
		if e.Source != "entity-001" || e.Destination != "entity-002" {
			t.Errorf("unexpected edge endpoints: %+v", e)
		}
		if e.TotalAmount != 6000 || e.TransactionCount != 3 {
			t.Errorf("unexpected aggregation: %+v", e)
		}
	})

	t.Run("SaveAnomalyAndQuery", func(t *testing.T) {
		score := &domain.AnomalyScore{
			TransactionID: "tx-000",
			Score:         65,
			Reasons:       []string{"unusual transaction amount (z-score: 3.10)"},
			DetectedAt:    time.Now().UTC(),
		}
		if err := s.SaveAnomaly(ctx, score); err != nil {
			t.Fatalf("SaveAnomaly failed: %v", err)
		}

		anomalies, err := s.AnomaliesByCase(ctx, "case-001")
		if err != nil {
			t.Fatalf("AnomaliesByCase failed: %v", err)
		}
		if len(anomalies) != 1 {
			t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
		}
		if anomalies[0].Score != 65 || len(anomalies[0].Reasons) != 1 {
			t.Errorf("anomaly did not round-trip: %+v", anomalies[0])
		}
	})

	t.Run("IndicatorRules", func(t *testing.T) {
		rule := &domain.IndicatorRule{
			ID:         "rule-001",
			Name:       "Large cash",
			Expression: `channel == "cash" && amount >= 10000.0`,
			Indicator:  domain.IndicatorCashIntensive,
			Weight:     1.0,
			Enabled:    true,
		}
		if err := s.SaveIndicatorRule(ctx, rule); err != nil {
			t.Fatalf("SaveIndicatorRule failed: %v", err)
		}

		// Upsert on conflict.
		rule.Enabled = false
		if err := s.SaveIndicatorRule(ctx, rule); err != nil {
			t.Fatalf("SaveIndicatorRule upsert failed: %v", err)
		}

		rules, err := s.ListIndicatorRules(ctx)
		if err != nil {
			t.Fatalf("ListIndicatorRules failed: %v", err)
		}
		if len(rules) != 1 {
			t.Fatalf("expected 1 rule, got %d", len(rules))
		}
		if rules[0].Enabled {
			t.Error("expected upsert to disable the rule")
		}
	})

	t.Run("Statistics", func(t *testing.T) {
		stats, err := s.Statistics(ctx)
		if err != nil {
			t.Fatalf("Statistics failed: %v", err)
		}
		if stats.TotalCases != 2 || stats.TotalTransactions != 3 {
			t.Errorf("unexpected totals: %+v", stats)
		}
		if stats.CasesByStatus[string(domain.CaseEscalated)] != 1 {
			t.Errorf("unexpected status counts: %v", stats.CasesByStatus)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := s.GetCase(ctx, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
		if _, err := s.GetEntity(ctx, "nonexistent"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got: %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.StoreConfig{Driver: "mysql"})
	if err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	s := &SQLStore{driver: "postgres"}

	tests := []struct {
		input    string
		expected string
	}{
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"SELECT * FROM t", "SELECT * FROM t"},
	}

	for _, tt := range tests {
		result := s.rebind(tt.input)
		if result != tt.expected {
			t.Errorf("rebind(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

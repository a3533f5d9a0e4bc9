// Package pattern detects structuring, round-tripping, and fan-in/fan-out
// patterns over an entity's transaction history.
package pattern

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
)

// Default detection parameters.
const (
	DefaultWindowDays      = 30
	DefaultAmountThreshold = 50000.0
	DefaultMinCount        = 5

	roundTripMaxDays     = 3
	roundTripAmountDrift = 0.1
	fanDistinctThreshold = 10
)

// Detector runs pattern detection against the store. All detectors are
// read-only and pure over the transaction snapshot they query; insufficient
// data is "no match", never an error.
type Detector struct {
	store domain.Store
}

// NewDetector creates a new pattern detector.
func NewDetector(store domain.Store) *Detector {
	return &Detector{store: store}
}

// StructuringParams tunes the structuring detector.
type StructuringParams struct {
	WindowDays      int
	AmountThreshold float64
	MinCount        int
}

// DefaultStructuringParams returns the standard reporting-threshold
// parameters.
func DefaultStructuringParams() StructuringParams {
	return StructuringParams{
		WindowDays:      DefaultWindowDays,
		AmountThreshold: DefaultAmountThreshold,
		MinCount:        DefaultMinCount,
	}
}

// DetectStructuring looks for many sub-threshold transactions inside the
// window ending at now. A match requires at least MinCount transactions
// below the threshold; confidence is the below-threshold share capped at
// 0.95.
func (d *Detector) DetectStructuring(ctx context.Context, entityID string, now time.Time, params StructuringParams) (*domain.PatternMatch, error) {
	txs, err := d.windowedHistory(ctx, entityID, now, params.WindowDays)
	if err != nil {
		return nil, err
	}
	if len(txs) < params.MinCount {
		return nil, nil
	}

	var total float64
	below := 0
	for _, tx := range txs {
		total += tx.Amount
		if tx.Amount < params.AmountThreshold {
			below++
		}
	}

	if below < params.MinCount {
		return nil, nil
	}

	return &domain.PatternMatch{
		Type:             domain.PatternStructuring,
		EntitiesInvolved: []string{entityID},
		Confidence:       domain.ClampConfidence(math.Min(0.95, float64(below)/float64(len(txs)))),
		Evidence: domain.PatternEvidence{
			TotalAmount: total,
			Count:       below,
			WindowDays:  params.WindowDays,
		},
	}, nil
}

// DetectRoundTripping looks for funds sent out and quickly returned: an
// earlier transaction and a later outbound transaction to the same
// counterparty, within three days and 10% of the original amount.
func (d *Detector) DetectRoundTripping(ctx context.Context, entityID string, now time.Time, windowDays int) (*domain.PatternMatch, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	txs, err := d.windowedHistory(ctx, entityID, now, windowDays)
	if err != nil {
		return nil, err
	}

	var trips []domain.RoundTrip
	for i, first := range txs {
		cp := counterpartyOf(first, entityID)
		if cp == "" || first.Amount == 0 {
			continue
		}
		for _, second := range txs[i+1:] {
			if second.SourceEntity != entityID || second.DestEntity == entityID {
				continue
			}
			if counterpartyOf(second, entityID) != cp {
				continue
			}
			days := int(second.Timestamp.Sub(first.Timestamp).Hours() / 24)
			if days > roundTripMaxDays {
				continue
			}
			if math.Abs(first.Amount-second.Amount)/first.Amount >= roundTripAmountDrift {
				continue
			}
			trips = append(trips, domain.RoundTrip{
				Counterparty: cp,
				Amount:       first.Amount,
				DaysBetween:  days,
			})
		}
	}

	if len(trips) == 0 {
		return nil, nil
	}

	examples := trips
	if len(examples) > 3 {
		examples = examples[:3]
	}

	denom := math.Max(1, float64(len(txs))/2)
	return &domain.PatternMatch{
		Type:             domain.PatternRoundTripping,
		EntitiesInvolved: []string{entityID},
		Confidence:       domain.ClampConfidence(math.Min(0.9, float64(len(trips))/denom)),
		Evidence: domain.PatternEvidence{
			Count:      len(trips),
			WindowDays: windowDays,
			Examples:   examples,
		},
	}, nil
}

// DetectFanInFanOut counts distinct counterparties over the entity's whole
// history. More than ten distinct senders or receivers marks the entity as
// an aggregation or distribution hub candidate.
func (d *Detector) DetectFanInFanOut(ctx context.Context, entityID string) ([]domain.PatternMatch, error) {
	txs, err := d.store.TransactionHistory(ctx, entityID, 0)
	if err != nil {
		return nil, err
	}

	inSources := make(map[string]struct{})
	outDests := make(map[string]struct{})
	var totalIn, totalOut float64

	for _, tx := range txs {
		if tx.DestEntity == entityID {
			inSources[tx.SourceEntity] = struct{}{}
			totalIn += tx.Amount
		}
		if tx.SourceEntity == entityID {
			outDests[tx.DestEntity] = struct{}{}
			totalOut += tx.Amount
		}
	}

	var matches []domain.PatternMatch
	if len(inSources) > fanDistinctThreshold {
		matches = append(matches, fanMatch(domain.PatternFanIn, entityID, "inbound", len(inSources), totalIn))
	}
	if len(outDests) > fanDistinctThreshold {
		matches = append(matches, fanMatch(domain.PatternFanOut, entityID, "outbound", len(outDests), totalOut))
	}
	return matches, nil
}

func fanMatch(pt domain.PatternType, entityID, direction string, count int, total float64) domain.PatternMatch {
	return domain.PatternMatch{
		Type:             pt,
		EntitiesInvolved: []string{entityID},
		Confidence:       domain.ClampConfidence(float64(count) / 50),
		Evidence: domain.PatternEvidence{
			Direction:   direction,
			Count:       count,
			TotalAmount: total,
			RiskScore:   math.Min(100, float64(count)*2),
		},
	}
}

// windowedHistory returns the entity's transactions inside the window
// ending at now, ordered oldest-first. The store returns its own window
// relative to wall clock, so the cut is re-applied against the explicit
// now for reproducible analyses.
func (d *Detector) windowedHistory(ctx context.Context, entityID string, now time.Time, windowDays int) ([]*domain.Transaction, error) {
	txs, err := d.store.TransactionHistory(ctx, entityID, 0)
	if err != nil {
		return nil, err
	}

	cutoff := now.AddDate(0, 0, -windowDays)
	filtered := make([]*domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Timestamp.Before(cutoff) || tx.Timestamp.After(now) {
			continue
		}
		filtered = append(filtered, tx)
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Timestamp.Equal(filtered[j].Timestamp) {
			return filtered[i].ID < filtered[j].ID
		}
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})
	return filtered, nil
}

func counterpartyOf(tx *domain.Transaction, entityID string) string {
	if tx.SourceEntity == entityID {
		return tx.DestEntity
	}
	return tx.SourceEntity
}

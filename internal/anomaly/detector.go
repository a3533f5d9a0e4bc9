// Package anomaly scores transactions against per-entity behavioral
// baselines using statistical outlier signals.
package anomaly

import (
	"fmt"
	"math"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
)

// Detector computes per-transaction anomaly scores. It is stateless and
// pure: identical (transaction, history) input always yields identical
// output.
type Detector struct{}

// NewDetector creates a new anomaly detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Signal contribution constants.
const (
	zScoreThreshold    = 2.0
	lowFrequencyScore  = 50.0
	offHoursScore      = 30.0
	newCounterpartyRsk = 20.0
)

// Score evaluates a transaction against the entity's chronological history
// and returns a score in [0,100] with human-readable reasons. The history
// may be in any order; the detector uses timestamps, not positions. An
// empty history means no baseline exists and scores 0 with no reasons.
func (d *Detector) Score(tx *domain.Transaction, history []*domain.Transaction) (float64, []string) {
	if len(history) == 0 {
		return 0, nil
	}

	var scores []float64
	var reasons []string

	amounts := make([]float64, 0, len(history))
	for _, h := range history {
		amounts = append(amounts, h.Amount)
	}

	// 1. Amount deviation: z-score against the historical mean.
	mean, std := meanStddev(amounts)
	z := zScore(tx.Amount, mean, std)
	if z > zScoreThreshold {
		scores = append(scores, math.Min(z*10, 100))
		reasons = append(reasons, fmt.Sprintf("unusual transaction amount (z-score: %.2f)", z))
	}

	// 2. Low frequency: entities that rarely transact.
	// Days are measured from the earliest history record to the transaction
	// itself so the signal is reproducible regardless of wall-clock time.
	earliest := history[0].Timestamp
	for _, h := range history[1:] {
		if h.Timestamp.Before(earliest) {
			earliest = h.Timestamp
		}
	}
	days := int(tx.Timestamp.Sub(earliest).Hours()/24) + 1
	if days < 1 {
		days = 1
	}
	avgPerDay := float64(len(history)) / float64(days)
	if avgPerDay < 1 {
		scores = append(scores, lowFrequencyScore)
		reasons = append(reasons, "entity with low transaction frequency")
	}

	// 3. Off-hours: local hour in [22,24) or [0,4).
	hour := tx.Timestamp.Hour()
	if hour >= 22 || hour < 4 {
		scores = append(scores, offHoursScore)
		reasons = append(reasons, "transaction at unusual hour")
	}

	// 4. New counterparty: never seen in the entity's history.
	seen := make(map[string]struct{}, len(history))
	for _, h := range history {
		seen[h.Counterparty()] = struct{}{}
	}
	if _, ok := seen[tx.Counterparty()]; !ok {
		scores = append(scores, newCounterpartyRsk)
		reasons = append(reasons, "new counterparty entity")
	}

	if len(scores) == 0 {
		return 0, nil
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	return domain.ClampScore(sum / float64(len(scores))), reasons
}

// zScore returns |value-mean|/std, or 0 when the history has no variance.
func zScore(value, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return math.Abs((value - mean) / std)
}

// meanStddev returns the mean and population standard deviation.
func meanStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

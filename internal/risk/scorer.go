// Package risk turns detection signals into entity, case, and triage
// scores.
package risk

import (
	"math"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
)

// RiskTier is the triage outcome of a holistic assessment.
type RiskTier string

const (
	TierCritical RiskTier = "critical"
	TierHigh     RiskTier = "high"
	TierStandard RiskTier = "standard_monitoring"
)

// Entity signal weights.
const (
	sanctionsSignal      = 100.0
	pepSignal            = 70.0
	highVolumeSignal     = 30.0
	highCentralitySignal = 40.0
	structuringSignal    = 80.0

	highVolumeLifetimeCount = 100
	centralityThreshold     = 50.0
)

// Scorer computes risk scores. All methods are pure functions of their
// inputs.
type Scorer struct{}

// NewScorer creates a new risk scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// EntitySignals are the inputs to ScoreEntity, gathered by the caller from
// the store and the network analyzer.
type EntitySignals struct {
	Flags           domain.EntityFlags
	LifetimeTxCount int64
	Centrality      float64
	HasStructuring  bool
}

// ScoreEntity averages the entity's triggered signals. A sanctions hit
// subsumes the PEP signal; an entity with no triggered signal scores 0.
func (s *Scorer) ScoreEntity(sig EntitySignals) float64 {
	var scores []float64

	if sig.Flags.SanctionsFlag {
		scores = append(scores, sanctionsSignal)
	} else if sig.Flags.PEPFlag {
		scores = append(scores, pepSignal)
	}
	if sig.LifetimeTxCount > highVolumeLifetimeCount {
		scores = append(scores, highVolumeSignal)
	}
	if sig.Centrality > centralityThreshold {
		scores = append(scores, highCentralitySignal)
	}
	if sig.HasStructuring {
		scores = append(scores, structuringSignal)
	}

	return mean(scores)
}

// Case signal weights.
const (
	caseAmountCritical = 10_000_000.0
	caseAmountHigh     = 1_000_000.0

	caseAmountCriticalSignal = 80.0
	caseAmountHighSignal     = 60.0
	caseIndicatorSignal      = 70.0
	caseUnknownLevelBaseline = 50.0
)

// ScoreCase averages the case's signals: the declared risk level baseline,
// an amount band when the amount is large, and a pattern-indicator signal.
// Unknown declared levels baseline at 50.
func (s *Scorer) ScoreCase(c domain.CaseSummary) float64 {
	baseline := caseUnknownLevelBaseline
	switch c.RiskLevel {
	case domain.RiskLow:
		baseline = 20
	case domain.RiskMedium:
		baseline = 50
	case domain.RiskHigh:
		baseline = 75
	case domain.RiskCritical:
		baseline = 95
	}
	scores := []float64{baseline}

	if c.AmountInvolved > caseAmountCritical {
		scores = append(scores, caseAmountCriticalSignal)
	} else if c.AmountInvolved > caseAmountHigh {
		scores = append(scores, caseAmountHighSignal)
	}
	if c.HasPatternIndicators {
		scores = append(scores, caseIndicatorSignal)
	}

	return mean(scores)
}

// RiskLevelFor maps a case risk score onto the declared severity bands.
func RiskLevelFor(score float64) domain.RiskLevel {
	switch {
	case score > 80:
		return domain.RiskCritical
	case score > 60:
		return domain.RiskHigh
	case score > 40:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// AssessmentInput feeds the holistic triage assessment.
type AssessmentInput struct {
	// Amount is the total amount under assessment.
	Amount float64

	// VelocityFactor is the 0-10 transaction velocity scale.
	VelocityFactor float64

	// CountryRisk is the 0-10 jurisdiction risk scale.
	CountryRisk float64

	// PEPMatch marks a politically exposed person involvement.
	PEPMatch bool

	// DocumentRisk is the 0-10 document signal from the adapter.
	DocumentRisk float64
}

// Assessment is the triage result.
type Assessment struct {
	Score          float64  `json:"score"`
	Tier           RiskTier `json:"tier"`
	Recommendation string   `json:"recommendation"`
}

// Assess combines the triage factors additively, unlike the averaging
/// scorers: amount band (30 over 5M, 20 over 1M) + velocity*10 + country*8 +
// 15 for a PEP match + document*25/10, capped at 100.
func (s *Scorer) Assess(in AssessmentInput) Assessment {
	var score float64

	switch {
	case in.Amount > 5_000_000:
		score += 30
	case in.Amount > 1_000_000:
		score += 20
	}
	score += in.VelocityFactor * 10
	score += in.CountryRisk * 8
	if in.PEPMatch {
		score += 15
	}
	score += in.DocumentRisk / 10 * 25

	score = math.Min(100, score)
	tier := TierFor(score)
	return Assessment{
		Score:          score,
		Tier:           tier,
		Recommendation: Recommendation(tier),
	}
}

// TierFor maps an assessment score to a triage tier. Boundaries are
// inclusive on the lower edge.
func TierFor(score float64) RiskTier {
	switch {
	case score >= 80:
		return TierCritical
	case score >= 60:
		return TierHigh
	default:
		return TierStandard
	}
}

// Recommendation returns the investigator action for a triage tier.
func Recommendation(tier RiskTier) string {
	switch tier {
	case TierCritical:
		return "Immediate escalation: freeze review and law enforcement referral"
	case TierHigh:
		return "Enhanced due diligence and senior investigator review"
	default:
		return "Standard monitoring"
	}
}

func mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, v := range scores {
		sum += v
	}
	return domain.ClampScore(sum / float64(len(scores)))
}

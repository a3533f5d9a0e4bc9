package domain

import "time"

// IndicatorRule is a configurable red-flag rule evaluated against each
// ingested transaction. The expression is a CEL program over transaction
// variables (amount, currency, source_id, dest_id, tx_type, channel)
// returning a bool or a numeric score.
type IndicatorRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Expression is the CEL source compiled by the rules engine.
	Expression string `json:"expression"`

	// Indicator is the pattern indicator recorded on the case when the
	// rule fires (e.g. "cash_intensive", "unusual_volume").
	Indicator string `json:"indicator"`

	// Weight scales the rule's score contribution.
	Weight float64 `json:"weight"`

	// Whether the rule is active
	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Common indicator names recorded on cases.
const (
	IndicatorCashIntensive     = "cash_intensive"
	IndicatorUnusualVolume     = "unusual_volume"
	IndicatorHighRiskCorridor  = "high_risk_jurisdiction"
	IndicatorBehavioralAnomaly = "behavioral_anomaly"
)

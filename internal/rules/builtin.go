package rules

import "github.com/waqasniazi9/aml-case-management/internal/domain"

// BuiltinRules returns the default indicator rule set seeded on first
// startup. All expressions use only the standard transaction variables, so
// they compile against any engine environment.
func BuiltinRules() []*domain.IndicatorRule {
	return []*domain.IndicatorRule{
		{
			ID:          "builtin-large-cash",
			Name:        "Large cash transaction",
			Description: "Cash channel transaction at or above 10,000",
			Expression:  `channel == "cash" && amount >= 10000.0`,
			Indicator:   domain.IndicatorCashIntensive,
			Weight:      1.0,
			Enabled:     true,
		},
		{
			ID:          "builtin-just-under-threshold",
			Name:        "Just under reporting threshold",
			Description: "Amount within 10% below the 10,000 reporting line",
			Expression:  `amount >= 9000.0 && amount < 10000.0`,
			Indicator:   domain.IndicatorBehavioralAnomaly,
			Weight:      1.5,
			Enabled:     true,
		},
		{
			ID:          "builtin-high-velocity",
			Name:        "High transaction velocity",
			Description: "More than 10 transactions for the source entity in 24h",
			Expression:  `velocity_count > 10`,
			Indicator:   domain.IndicatorUnusualVolume,
			Weight:      1.0,
			Enabled:     true,
		},
		{
			ID:          "builtin-crypto-conversion",
			Name:        "Crypto conversion",
			Description: "Transfers through virtual asset channels",
			Expression:  `channel == "crypto"`,
			Indicator:   domain.IndicatorHighRiskCorridor,
			Weight:      1.0,
			Enabled:     true,
		},
	}
}

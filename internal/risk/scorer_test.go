package risk

import (
	"math"
	"testing"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
)

func TestScoreEntity(t *testing.T) {
	s := NewScorer()

	cases := []struct {
		name string
		sig  EntitySignals
		want float64
	}{
		{
			name: "no signals",
			sig:  EntitySignals{},
			want: 0,
		},
		{
			name: "sanctions alone",
			sig:  EntitySignals{Flags: domain.EntityFlags{SanctionsFlag: true}},
			want: 100,
		},
		{
			name: "pep alone",
			sig:  EntitySignals{Flags: domain.EntityFlags{PEPFlag: true}},
			want: 70,
		},
		{
			name: "sanctions subsumes pep",
			sig:  EntitySignals{Flags: domain.EntityFlags{SanctionsFlag: true, PEPFlag: true}},
			want: 100,
		},
		{
			name: "high lifetime volume",
			sig:  EntitySignals{LifetimeTxCount: 101},
			want: 30,
		},
		{
			name: "exactly 100 transactions is not high volume",
			sig:  EntitySignals{LifetimeTxCount: 100},
			want: 0,
		},
		{
			name: "high centrality",
			sig:  EntitySignals{Centrality: 50.5},
			want: 40,
		},
		{
			name: "structuring",
			sig:  EntitySignals{HasStructuring: true},
			want: 80,
		},
		{
			name: "pep plus structuring averages",
			sig:  EntitySignals{Flags: domain.EntityFlags{PEPFlag: true}, HasStructuring: true},
			want: 75,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.ScoreEntity(tc.sig); got != tc.want {
				t.Errorf("got %.2f, want %.2f", got, tc.want)
			}
		})
	}
}

func TestScoreCase(t *testing.T) {
	s := NewScorer()

	cases := []struct {
		name string
		in   domain.CaseSummary
		want float64
	}{
		{
			name: "low level only",
			in:   domain.CaseSummary{RiskLevel: domain.RiskLow},
			want: 20,
		},
		{
			name: "unknown level baselines at 50",
			in:   domain.CaseSummary{RiskLevel: "weird"},
			want: 50,
		},
		{
			name: "critical level with huge amount",
			in:   domain.CaseSummary{RiskLevel: domain.RiskCritical, AmountInvolved: 20_000_000},
			want: 87.5, // mean(95, 80)
		},
		{
			name: "high level with large amount",
			in:   domain.CaseSummary{RiskLevel: domain.RiskHigh, AmountInvolved: 2_000_000},
			want: 67.5, // mean(75, 60)
		},
		{
			name: "medium with indicators",
			in:   domain.CaseSummary{RiskLevel: domain.RiskMedium, HasPatternIndicators: true},
			want: 60, // mean(50, 70)
		},
		{
			name: "all three signals",
			in:   domain.CaseSummary{RiskLevel: domain.RiskHigh, AmountInvolved: 2_000_000, HasPatternIndicators: true},
			want: (75.0 + 60 + 70) / 3,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.ScoreCase(tc.in); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("got %.4f, want %.4f", got, tc.want)
			}
		})
	}
}

func TestRiskLevelFor(t *testing.T) {
	cases := []struct {
		score float64
		want  domain.RiskLevel
	}{
		{95, domain.RiskCritical},
		{81, domain.RiskCritical},
		{80, domain.RiskHigh},
		{61, domain.RiskHigh},
		{60, domain.RiskMedium},
		{41, domain.RiskMedium},
		{40, domain.RiskLow},
		{0, domain.RiskLow},
	}
	for _, tc := range cases {
		if got := RiskLevelFor(tc.score); got != tc.want {
			t.Errorf("score %.0f: got %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestAssess(t *testing.T) {
	s := NewScorer()

	t.Run("additive not averaged", func(t *testing.T) {
		got := s.Assess(AssessmentInput{
			Amount:         6_000_000, // 30
			VelocityFactor: 2,         // 20
			CountryRisk:    1,         // 8
			PEPMatch:       true,      // 15
			DocumentRisk:   4,         // 10
		})
		if math.Abs(got.Score-83) > 1e-9 {
			t.Errorf("expected additive score 83, got %.2f", got.Score)
		}
		if got.Tier != TierCritical {
			t.Errorf("expected critical tier, got %s", got.Tier)
		}
	})

	t.Run("caps at 100", func(t *testing.T) {
		got := s.Assess(AssessmentInput{
			Amount:         50_000_000,
			VelocityFactor: 10,
			CountryRisk:    10,
			PEPMatch:       true,
			DocumentRisk:   10,
		})
		if got.Score != 100 {
			t.Errorf("expected cap at 100, got %.2f", got.Score)
		}
	})

	t.Run("amount bands are exclusive", func(t *testing.T) {
		got := s.Assess(AssessmentInput{Amount: 2_000_000})
		if got.Score != 20 {
			t.Errorf("expected mid band 20, got %.2f", got.Score)
		}
		if got.Tier != TierStandard {
			t.Errorf("expected standard monitoring, got %s", got.Tier)
		}
	})

	t.Run("tier boundaries are inclusive", func(t *testing.T) {
		if tier := TierFor(80); tier != TierCritical {
			t.Errorf("score 80: got %s", tier)
		}
		if tier := TierFor(60); tier != TierHigh {
			t.Errorf("score 60: got %s", tier)
		}
		if tier := TierFor(59.9); tier != TierStandard {
			t.Errorf("score 59.9: got %s", tier)
		}
	})
}

func TestRecommendation(t *testing.T) {
	if r := Recommendation(TierStandard); r != "Standard monitoring" {
		t.Errorf("unexpected standard recommendation: %s", r)
	}
	if Recommendation(TierCritical) == Recommendation(TierHigh) {
		t.Error("critical and high tiers must differ")
	}
}

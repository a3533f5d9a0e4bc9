package docsignal

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
)

func TestRisk(t *testing.T) {
	cases := []struct {
		name string
		sig  domain.DocumentSignals
		want float64
	}{
		{
			name: "zero signals",
			sig:  domain.DocumentSignals{},
			want: 0,
		},
		{
			name: "keyword only",
			sig:  domain.DocumentSignals{KeywordRiskScore: 25},
			want: 5,
		},
		{
			name: "negative sentiment counts by magnitude",
			sig:  domain.DocumentSignals{SentimentPolarity: -0.25},
			want: 5,
		},
		{
			name: "combined",
			sig:  domain.DocumentSignals{KeywordRiskScore: 10, SentimentPolarity: 0.1, ComplexityScore: 20},
			want: 2 + 2 + 2,
		},
		{
			name: "caps at 10",
			sig:  domain.DocumentSignals{KeywordRiskScore: 100, SentimentPolarity: -1, ComplexityScore: 100},
			want: 10,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Risk(tc.sig); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("got %.4f, want %.4f", got, tc.want)
			}
		})
	}
}

type stubSignals struct {
	sig domain.DocumentSignals
	err error
}

func (s *stubSignals) Extract(context.Context, string) (domain.DocumentSignals, error) {
	return s.sig, s.err
}

func TestDocumentRisk(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		a := NewAdapter(&stubSignals{sig: domain.DocumentSignals{KeywordRiskScore: 25}}, nil)
		if got := a.DocumentRisk(context.Background(), "wire transfer memo"); got != 5 {
			t.Errorf("got %.2f, want 5", got)
		}
	})

	t.Run("collaborator failure degrades to zero", func(t *testing.T) {
		a := NewAdapter(&stubSignals{err: errors.New("service unavailable")}, nil)
		if got := a.DocumentRisk(context.Background(), "memo"); got != 0 {
			t.Errorf("expected 0 on collaborator failure, got %.2f", got)
		}
	})

	t.Run("empty text yields zero without a call", func(t *testing.T) {
		a := NewAdapter(&stubSignals{sig: domain.DocumentSignals{KeywordRiskScore: 100}}, nil)
		if got := a.DocumentRisk(context.Background(), ""); got != 0 {
			t.Errorf("expected 0 for empty text, got %.2f", got)
		}
	})

	t.Run("nil collaborator yields zero", func(t *testing.T) {
		a := NewAdapter(nil, nil)
		if got := a.DocumentRisk(context.Background(), "memo"); got != 0 {
			t.Errorf("expected 0 with nil collaborator, got %.2f", got)
		}
	})
}

// Package docsignal folds externally derived document signals into the
// 0-10 document risk factor. No text analysis happens here; the engine only
// consumes numeric signals from a collaborator.
package docsignal

import (
	"context"
	"log/slog"
	"math"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
)

// MaxDocumentRisk bounds the document risk factor.
const MaxDocumentRisk = 10.0

// Risk combines pre-computed document signals into the 0-10 factor:
// keyword/5 + |sentiment|*20 + complexity/10, capped at 10. It is a pure
// function.
func Risk(sig domain.DocumentSignals) float64 {
	risk := sig.KeywordRiskScore/5 +
		math.Abs(sig.SentimentPolarity)*20 +
		sig.ComplexityScore/10
	return math.Min(MaxDocumentRisk, math.Max(0, risk))
}

// Adapter wraps a TextSignals collaborator and degrades its failures to "no
// document signal" rather than failing the assessment.
type Adapter struct {
	signals domain.TextSignals
	logger  *slog.Logger
}

// NewAdapter creates an adapter around the collaborator. A nil collaborator
// is allowed and always yields zero risk.
func NewAdapter(signals domain.TextSignals, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{signals: signals, logger: logger}
}

// DocumentRisk extracts signals for the document text and folds them into
// the risk factor. Empty text and collaborator errors both yield 0.
func (a *Adapter) DocumentRisk(ctx context.Context, documentText string) float64 {
	if a.signals == nil || documentText == "" {
		return 0
	}

	sig, err := a.signals.Extract(ctx, documentText)
	if err != nil {
		a.logger.Warn("document signal extraction failed, treating as no signal",
			"error", err)
		return 0
	}
	return Risk(sig)
}

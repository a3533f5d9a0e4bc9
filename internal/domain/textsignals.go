package domain

import "context"

// DocumentSignals are the already-derived numeric outputs of an external
// text-analysis collaborator. No text processing happens inside the engine.
type DocumentSignals struct {
	KeywordRiskScore  float64  `json:"keywordRiskScore"`  // [0,100]
	SentimentPolarity float64  `json:"sentimentPolarity"` // [-1,1]
	ComplexityScore   float64  `json:"complexityScore"`   // [0,100]
	EntityLabels      []string `json:"entityLabels,omitempty"`
}

// TextSignals is the external text-analysis collaborator. A failure is
// treated as "no document signal" by the consumer, never as an analysis
// error.
type TextSignals interface {
	Extract(ctx context.Context, documentText string) (DocumentSignals, error)
}

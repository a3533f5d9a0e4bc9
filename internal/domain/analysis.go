package domain

import (
	"time"
)

// PatternType identifies a suspicious transaction pattern.
type PatternType string

const (
	PatternStructuring   PatternType = "structuring"
	PatternRoundTripping PatternType = "round_tripping"
	PatternFanIn         PatternType = "fan_in"
	PatternFanOut        PatternType = "fan_out"
	PatternLayering      PatternType = "layering"
)

// PatternMatch is the result of a pattern detector run. Persistence and
// deduplication of matches are the caller's concern.
type PatternMatch struct {
	Type             PatternType     `json:"type"`
	EntitiesInvolved []string        `json:"entitiesInvolved"`
	Confidence       float64         `json:"confidence"`
	Evidence         PatternEvidence `json:"evidence"`
}

// PatternEvidence carries pattern-specific supporting detail. Fields are
// populated per pattern type; unset fields are omitted from JSON.
type PatternEvidence struct {
	TotalAmount float64     `json:"totalAmount,omitempty"`
	Count       int         `json:"count,omitempty"`
	WindowDays  int         `json:"windowDays,omitempty"`
	Direction   string      `json:"direction,omitempty"`
	RiskScore   float64     `json:"riskScore,omitempty"`
	Examples    []RoundTrip `json:"examples,omitempty"`
}

// RoundTrip is one out-and-back instance recorded by the round-tripping
// detector.
type RoundTrip struct {
	Counterparty string  `json:"counterparty"`
	Amount       float64 `json:"amount"`
	DaysBetween  int     `json:"daysBetween"`
}

// AnomalyScore is the statistical outlier result for one transaction.
// Identical (transaction, history) input always yields an identical score.
type AnomalyScore struct {
	TransactionID string    `json:"transactionId"`
	Score         float64   `json:"score"`
	Reasons       []string  `json:"reasons,omitempty"`
	DetectedAt    time.Time `json:"detectedAt"`
}

// NetworkNode is a derived graph node. It is rebuilt on every analysis call
// and carries no identity across calls.
type NetworkNode struct {
	EntityID    string   `json:"entityId"`
	InDegree    int      `json:"inDegree"`
	OutDegree   int      `json:"outDegree"`
	Centrality  float64  `json:"centrality"`
	Connections []string `json:"connections,omitempty"`
}

// Edge is an aggregated directed edge of the transaction graph: all
// transactions from Source to Destination collapsed into one weight.
type Edge struct {
	Source           string  `json:"source"`
	Destination      string  `json:"destination"`
	TotalAmount      float64 `json:"totalAmount"`
	TransactionCount int     `json:"transactionCount"`
}

// NetworkAnalysis summarizes the graph findings for a case.
type NetworkAnalysis struct {
	TotalEntities    int                `json:"totalEntities"`
	HighCentrality   map[string]float64 `json:"highCentralityNodes,omitempty"`
	SuspiciousChains [][]string         `json:"suspiciousChains,omitempty"`
}

// RiskAssessment is the case-level scoring result of an analysis run.
type RiskAssessment struct {
	CaseRiskScore float64   `json:"caseRiskScore"`
	RiskLevel     RiskLevel `json:"riskLevel"`
}

// IndicatorHit records an indicator rule that fired for a transaction.
type IndicatorHit struct {
	RuleID        string  `json:"ruleId"`
	Indicator     string  `json:"indicator"`
	TransactionID string  `json:"transactionId"`
	Score         float64 `json:"score"`
	Reason        string  `json:"reason,omitempty"`
}

// AnalysisMetadata carries processing information for an analysis run.
type AnalysisMetadata struct {
	TraceID       string `json:"traceId,omitempty"`
	PatternsMs    int64  `json:"patternsMs"`
	NetworkMs     int64  `json:"networkMs"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}

// CaseAnalysis is the full result of AnalyzeCase.
type CaseAnalysis struct {
	CaseID      string           `json:"caseId"`
	PivotEntity string           `json:"pivotEntity,omitempty"`
	Patterns    []PatternMatch   `json:"patterns"`
	Network     *NetworkAnalysis `json:"networkAnalysis,omitempty"`
	Risk        RiskAssessment   `json:"riskAssessment"`
	Anomalies   []AnomalyScore   `json:"anomalies"`
	Indicators  []IndicatorHit   `json:"indicators,omitempty"`
	Metadata    AnalysisMetadata `json:"metadata"`
}

// Statistics is the aggregate case/transaction view for dashboards.
type Statistics struct {
	TotalCases        int64            `json:"totalCases"`
	TotalTransactions int64            `json:"totalTransactions"`
	TotalEntities     int64            `json:"totalEntities"`
	CasesByStatus     map[string]int64 `json:"casesByStatus"`
	CasesByRiskLevel  map[string]int64 `json:"casesByRiskLevel"`
}

// ClampScore bounds a score to the canonical [0,100] range.
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// ClampConfidence bounds a confidence to [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

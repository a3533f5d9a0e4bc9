// Package engine orchestrates the analysis pipeline: anomaly scoring,
// pattern detection, network analysis, and risk scoring over cases.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/waqasniazi9/aml-case-management/internal/anomaly"
	"github.com/waqasniazi9/aml-case-management/internal/docsignal"
	"github.com/waqasniazi9/aml-case-management/internal/domain"
	"github.com/waqasniazi9/aml-case-management/internal/network"
	"github.com/waqasniazi9/aml-case-management/internal/pattern"
	"github.com/waqasniazi9/aml-case-management/internal/risk"
	"github.com/waqasniazi9/aml-case-management/internal/rules"
	"github.com/waqasniazi9/aml-case-management/internal/velocity"
)

// EngineVersion is stamped into analysis metadata.
const EngineVersion = "aml-engine-1.0"

const (
	// maxScoringHistory caps the history snapshot used for per-transaction
	// anomaly scoring.
	maxScoringHistory = 20

	// maxChains caps the layering chains attached to a case analysis.
	maxChains = 5

	historyTTL = 5 * time.Minute

	// velocityWindowSecs is the trailing window handed to velocity-aware
	// indicator rules.
	velocityWindowSecs = 86400
)

// Engine wires the detectors, scorer, rule engine, and collaborators into
// the public analysis operations. All methods are safe for concurrent use.
type Engine struct {
	store    domain.Store
	cache    domain.Cache
	bus      domain.EventBus
	anomaly  *anomaly.Detector
	patterns *pattern.Detector
	scorer   *risk.Scorer
	rules    *rules.Engine
	velocity *velocity.Service
	docs     *docsignal.Adapter
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Options configures optional engine collaborators.
type Options struct {
	Cache      domain.Cache
	Bus        domain.EventBus
	Rules      *rules.Engine
	DocSignals domain.TextSignals
	Logger     *slog.Logger
}

// New creates an engine over the store with the given collaborators. Cache,
// bus, rule engine, and document signals are all optional; the engine
// degrades to direct store reads and no events.
func New(store domain.Store, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		store:    store,
		cache:    opts.Cache,
		bus:      opts.Bus,
		anomaly:  anomaly.NewDetector(),
		patterns: pattern.NewDetector(store),
		scorer:   risk.NewScorer(),
		rules:    opts.Rules,
		velocity: velocity.NewService(store),
		docs:     docsignal.NewAdapter(opts.DocSignals, logger),
		logger:   logger,
		tracer:   otel.Tracer("aml-engine"),
	}
}

// Velocity exposes the engine's velocity service for rule wiring.
func (e *Engine) Velocity() *velocity.Service {
	return e.velocity
}

// AnalyzeOptions tunes a single AnalyzeCase call.
type AnalyzeOptions struct {
	// Now fixes the analysis clock; zero means the current time. Two calls
	// with the same Now over unchanged data return identical results.
	Now time.Time

	// PivotEntity overrides the default pivot selection.
	PivotEntity string
}

// AnalyzeCase runs the full detection pipeline over a case snapshot. It is
// read-only: nothing about the case or its transactions is mutated.
func (e *Engine) AnalyzeCase(ctx context.Context, caseID string, opts AnalyzeOptions) (*domain.CaseAnalysis, error) {
	ctx, span := e.tracer.Start(ctx, "engine.AnalyzeCase")
	defer span.End()

	start := time.Now()
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if _, err := e.store.GetCase(ctx, caseID); err != nil {
		return nil, err
	}

	txs, err := e.store.CaseTransactions(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load case transactions: %w", err)
	}

	analysis := &domain.CaseAnalysis{
		CaseID:   caseID,
		Patterns: []domain.PatternMatch{},
	}

	pivot := opts.PivotEntity
	if pivot == "" {
		pivot = pickPivot(txs)
	}
	analysis.PivotEntity = pivot

	patternsStart := time.Now()
	if pivot != "" {
		matches, err := e.detectPatterns(ctx, pivot, now)
		if err != nil {
			return nil, err
		}
		analysis.Patterns = matches
	}
	patternsMs := time.Since(patternsStart).Milliseconds()

	networkStart := time.Now()
	entities := caseEntities(txs)
	if len(entities) > 1 {
		edges, err := e.store.AggregatedEdges(ctx, entities)
		if err != nil {
			return nil, fmt.Errorf("failed to load graph edges: %w", err)
		}
		analysis.Network = network.Build(edges).Analyze(network.DefaultMinChainLength, maxChains)
	}
	networkMs := time.Since(networkStart).Milliseconds()

	summary, err := e.store.CaseSummary(ctx, caseID)
	if err != nil {
		return nil, err
	}
	score := e.scorer.ScoreCase(*summary)
	analysis.Risk = domain.RiskAssessment{
		CaseRiskScore: score,
		RiskLevel:     risk.RiskLevelFor(score),
	}

	anomalies, err := e.store.AnomaliesByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load anomaly records: %w", err)
	}
	if anomalies == nil {
		anomalies = []domain.AnomalyScore{}
	}
	analysis.Anomalies = anomalies

	analysis.Metadata = domain.AnalysisMetadata{
		TraceID:       traceID(span),
		PatternsMs:    patternsMs,
		NetworkMs:     networkMs,
		TotalMs:       time.Since(start).Milliseconds(),
		EngineVersion: EngineVersion,
	}

	return analysis, nil
}

func (e *Engine) detectPatterns(ctx context.Context, pivot string, now time.Time) ([]domain.PatternMatch, error) {
	matches := []domain.PatternMatch{}

	structuring, err := e.patterns.DetectStructuring(ctx, pivot, now, pattern.DefaultStructuringParams())
	if err != nil {
		return nil, fmt.Errorf("structuring detection failed: %w", err)
	}
	if structuring != nil {
		matches = append(matches, *structuring)
	}

	roundTrip, err := e.patterns.DetectRoundTripping(ctx, pivot, now, pattern.DefaultWindowDays)
	if err != nil {
		return nil, fmt.Errorf("round-tripping detection failed: %w", err)
	}
	if roundTrip != nil {
		matches = append(matches, *roundTrip)
	}

	fans, err := e.patterns.DetectFanInFanOut(ctx, pivot)
	if err != nil {
		return nil, fmt.Errorf("fan-in/fan-out detection failed: %w", err)
	}
	matches = append(matches, fans...)

	return matches, nil
}

// ScoreTransaction scores a transaction against a history snapshot. It is a
// pure function over its arguments.
func (e *Engine) ScoreTransaction(tx *domain.Transaction, history []*domain.Transaction) domain.AnomalyScore {
	score, reasons := e.anomaly.Score(tx, history)
	return domain.AnomalyScore{
		TransactionID: tx.ID,
		Score:         score,
		Reasons:       reasons,
		DetectedAt:    time.Now().UTC(),
	}
}

// IngestTransaction validates and persists a transaction into a case:
// anomaly-scores it against the source entity's recent history, evaluates
// indicator rules, invalidates cached histories, and publishes the
// ingestion event. Returns the stored transaction and any indicator hits.
func (e *Engine) IngestTransaction(ctx context.Context, caseID string, req *domain.TransactionRequest) (*domain.Transaction, []domain.IndicatorHit, error) {
	ctx, span := e.tracer.Start(ctx, "engine.IngestTransaction")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	if _, err := e.store.GetCase(ctx, caseID); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	timestamp := now
	if req.Timestamp != nil {
		timestamp = req.Timestamp.UTC()
	}

	tx := &domain.Transaction{
		ID:           uuid.New().String(),
		CaseID:       caseID,
		SourceEntity: req.SourceEntity,
		DestEntity:   req.DestEntity,
		Amount:       req.Amount,
		Currency:     req.Currency,
		Timestamp:    timestamp,
		Type:         req.Type,
		Channels:     req.Channels,
		Description:  req.Description,
		CreatedAt:    now,
	}

	history, err := e.history(ctx, req.SourceEntity, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load entity history: %w", err)
	}
	if len(history) > maxScoringHistory {
		history = history[:maxScoringHistory]
	}

	score, reasons := e.anomaly.Score(tx, history)
	tx.AnomalyScore = score

	hits := e.evaluateRules(ctx, tx)
	for _, hit := range hits {
		tx.Flags = append(tx.Flags, hit.Indicator)
	}

	if err := e.store.SaveTransaction(ctx, tx); err != nil {
		return nil, nil, fmt.Errorf("failed to save transaction: %w", err)
	}
	if err := e.store.SaveAnomaly(ctx, &domain.AnomalyScore{
		TransactionID: tx.ID,
		Score:         score,
		Reasons:       reasons,
		DetectedAt:    now,
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to save anomaly record: %w", err)
	}

	if len(hits) > 0 {
		indicators := make([]string, 0, len(hits))
		for _, hit := range hits {
			indicators = append(indicators, hit.Indicator)
		}
		if err := e.store.AppendPatternIndicators(ctx, caseID, indicators); err != nil {
			e.logger.Warn("failed to record pattern indicators",
				"case_id", caseID, "error", err)
		}
	}

	e.invalidateHistories(ctx, tx.SourceEntity, tx.DestEntity)
	e.publishIngested(ctx, tx)

	return tx, hits, nil
}

func (e *Engine) evaluateRules(ctx context.Context, tx *domain.Transaction) []domain.IndicatorHit {
	if e.rules == nil {
		return nil
	}

	channel := ""
	if len(tx.Channels) > 0 {
		channel = tx.Channels[0]
	}

	hits, err := e.rules.Evaluate(ctx, &rules.EvaluateInput{
		TxID:           tx.ID,
		Type:           tx.Type,
		SourceID:       tx.SourceEntity,
		DestID:         tx.DestEntity,
		Amount:         tx.Amount,
		Currency:       tx.Currency,
		Channel:        channel,
		VelocityWindow: velocityWindowSecs,
	})
	if err != nil {
		e.logger.Warn("indicator rule evaluation failed",
			"transaction_id", tx.ID, "error", err)
		return nil
	}
	return hits
}

// AssessInput feeds a holistic case assessment. Unset factors fall back to
// stored case and entity data.
type AssessInput struct {
	// EntityID selects the entity used for velocity and PEP lookups. Empty
	// disables both lookups.
	EntityID string `json:"entityId,omitempty"`

	// Amount overrides the case amount when positive.
	Amount float64 `json:"amount,omitempty"`

	// VelocityFactor overrides the computed 0-10 velocity factor.
	VelocityFactor *float64 `json:"velocityFactor,omitempty"`

	// CountryRisk is the 0-10 jurisdiction risk supplied by the caller.
	CountryRisk float64 `json:"countryRisk,omitempty"`

	// PEPMatch overrides the stored entity PEP flag.
	PEPMatch *bool `json:"pepMatch,omitempty"`

	// DocumentText is handed to the document-signal collaborator.
	DocumentText string `json:"documentText,omitempty"`
}

// AssessResult is the holistic triage outcome for a case.
type AssessResult struct {
	CaseID         string  `json:"caseId"`
	Score          float64 `json:"score"`
	Tier           string  `json:"tier"`
	Recommendation string  `json:"recommendation"`
	VelocityFactor float64 `json:"velocityFactor"`
	DocumentRisk   float64 `json:"documentRisk"`
}

// Assess combines amount, velocity, jurisdiction, PEP, and document factors
// into a triage decision for the case.
func (e *Engine) Assess(ctx context.Context, caseID string, input AssessInput) (*AssessResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Assess")
	defer span.End()

	c, err := e.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	amount := input.Amount
	if amount <= 0 {
		amount = c.AmountInvolved
	}

	var velocityFactor float64
	if input.VelocityFactor != nil {
		velocityFactor = *input.VelocityFactor
	} else if input.EntityID != "" {
		velocityFactor, err = e.velocity.Factor(ctx, input.EntityID)
		if err != nil {
			e.logger.Warn("velocity factor unavailable, treating as zero",
				"entity_id", input.EntityID, "error", err)
			velocityFactor = 0
		}
	}

	var pepMatch bool
	if input.PEPMatch != nil {
		pepMatch = *input.PEPMatch
	} else if input.EntityID != "" {
		flags, err := e.store.EntityFlags(ctx, input.EntityID)
		if err != nil {
			return nil, fmt.Errorf("failed to load entity flags: %w", err)
		}
		pepMatch = flags.PEPFlag
	}

	docRisk := e.docs.DocumentRisk(ctx, input.DocumentText)

	assessment := e.scorer.Assess(risk.AssessmentInput{
		Amount:         amount,
		VelocityFactor: velocityFactor,
		CountryRisk:    input.CountryRisk,
		PEPMatch:       pepMatch,
		DocumentRisk:   docRisk,
	})

	return &AssessResult{
		CaseID:         caseID,
		Score:          assessment.Score,
		Tier:           string(assessment.Tier),
		Recommendation: assessment.Recommendation,
		VelocityFactor: velocityFactor,
		DocumentRisk:   docRisk,
	}, nil
}

// ScoreEntity recomputes and persists an entity's risk score from its
// flags, lifetime activity, graph centrality, and structuring findings.
// Returns the new score. This is the only path that mutates entity risk.
func (e *Engine) ScoreEntity(ctx context.Context, entityID string) (float64, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ScoreEntity")
	defer span.End()

	flags, err := e.store.EntityFlags(ctx, entityID)
	if err != nil {
		return 0, fmt.Errorf("failed to load entity flags: %w", err)
	}

	count, err := e.store.LifetimeTransactionCount(ctx, entityID)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	edges, err := e.store.AggregatedEdges(ctx, []string{entityID})
	if err != nil {
		return 0, fmt.Errorf("failed to load graph edges: %w", err)
	}
	centrality := network.Build(edges).Centrality(entityID)

	structuring, err := e.patterns.DetectStructuring(ctx, entityID, time.Now().UTC(), pattern.DefaultStructuringParams())
	if err != nil {
		return 0, fmt.Errorf("structuring detection failed: %w", err)
	}

	score := e.scorer.ScoreEntity(risk.EntitySignals{
		Flags:           flags,
		LifetimeTxCount: count,
		Centrality:      centrality,
		HasStructuring:  structuring != nil,
	})

	if err := e.store.UpdateEntityRisk(ctx, entityID, score); err != nil {
		return score, err
	}

	e.publishScored(ctx, entityID, score)
	return score, nil
}

// Statistics returns the store's aggregate view.
func (e *Engine) Statistics(ctx context.Context) (*domain.Statistics, error) {
	return e.store.Statistics(ctx)
}

// history returns the entity's transaction history for the window, served
// from the cache when possible.
func (e *Engine) history(ctx context.Context, entityID string, windowDays int) ([]*domain.Transaction, error) {
	if e.cache != nil {
		if cached, ok, err := e.cache.GetHistory(ctx, entityID, windowDays); err == nil && ok {
			return cached, nil
		}
	}

	history, err := e.store.TransactionHistory(ctx, entityID, windowDays)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.SetHistory(ctx, entityID, windowDays, history, historyTTL); err != nil {
			e.logger.Warn("failed to cache entity history",
				"entity_id", entityID, "error", err)
		}
	}
	return history, nil
}

func (e *Engine) invalidateHistories(ctx context.Context, entityIDs ...string) {
	if e.cache == nil {
		return
	}
	for _, id := range entityIDs {
		if err := e.cache.InvalidateHistory(ctx, id, domain.HistoryWindows); err != nil {
			e.logger.Warn("failed to invalidate history cache",
				"entity_id", id, "error", err)
		}
	}
}

func (e *Engine) publishIngested(ctx context.Context, tx *domain.Transaction) {
	if e.bus == nil {
		return
	}

	payload, err := json.Marshal(domain.TransactionIngested{
		TransactionID: tx.ID,
		CaseID:        tx.CaseID,
		SourceEntity:  tx.SourceEntity,
		DestEntity:    tx.DestEntity,
		Amount:        tx.Amount,
		AnomalyScore:  tx.AnomalyScore,
	})
	if err != nil {
		return
	}

	if err := e.bus.Publish(ctx, domain.TopicTransactionIngested, payload); err != nil {
		e.logger.Warn("failed to publish ingestion event",
			"transaction_id", tx.ID, "error", err)
	}
}

func (e *Engine) publishScored(ctx context.Context, entityID string, score float64) {
	if e.bus == nil {
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"entityId":  entityID,
		"riskScore": score,
	})
	if err := e.bus.Publish(ctx, domain.TopicEntityScored, payload); err != nil {
		e.logger.Warn("failed to publish entity score event",
			"entity_id", entityID, "error", err)
	}
}

// pickPivot selects the analysis pivot: the entity with the highest summed
// transaction amount across the case, ties broken by lexicographic ID.
func pickPivot(txs []*domain.Transaction) string {
	if len(txs) == 0 {
		return ""
	}

	totals := make(map[string]float64)
	for _, tx := range txs {
		if tx.SourceEntity != "" {
			totals[tx.SourceEntity] += tx.Amount
		}
		if tx.DestEntity != "" {
			totals[tx.DestEntity] += tx.Amount
		}
	}

	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pivot := ""
	best := -1.0
	for _, id := range ids {
		if totals[id] > best {
			best = totals[id]
			pivot = id
		}
	}
	return pivot
}

// caseEntities returns the sorted distinct entities of a transaction set.
func caseEntities(txs []*domain.Transaction) []string {
	set := make(map[string]struct{})
	for _, tx := range txs {
		if tx.SourceEntity != "" {
			set[tx.SourceEntity] = struct{}{}
		}
		if tx.DestEntity != "" {
			set[tx.DestEntity] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func traceID(span trace.Span) string {
	sc := span.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

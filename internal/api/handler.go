package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
	"github.com/waqasniazi9/aml-case-management/internal/engine"
	"github.com/waqasniazi9/aml-case-management/internal/rules"
	"github.com/waqasniazi9/aml-case-management/internal/store"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	store   domain.Store
	cache   domain.Cache
	bus     domain.EventBus
	engine  *engine.Engine
	rules   *rules.Engine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(st domain.Store, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, ruleEngine *rules.Engine, version string) *Handler {
	return &Handler{
		store:   st,
		cache:   cache,
		bus:     bus,
		engine:  eng,
		rules:   ruleEngine,
		version: version,
	}
}

// CreateEntityRequest is the request body for POST /entities.
type CreateEntityRequest struct {
	ID            string                 `json:"id,omitempty"`
	Name          string                 `json:"name"`
	Type          string                 `json:"type"`
	PEPFlag       bool                   `json:"pepFlag"`
	SanctionsFlag bool                   `json:"sanctionsFlag"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// CreateEntity handles POST /entities.
func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	entityType := domain.EntityType(req.Type)
	switch entityType {
	case domain.EntityPerson, domain.EntityOrganization, domain.EntityAccount:
	default:
		writeError(w, http.StatusBadRequest, "type must be person, organization, or account")
		return
	}

	entity := &domain.Entity{
		ID:            req.ID,
		Name:          req.Name,
		Type:          entityType,
		PEPFlag:       req.PEPFlag,
		SanctionsFlag: req.SanctionsFlag,
		Metadata:      req.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}

	if err := h.store.SaveEntity(r.Context(), entity); err != nil {
		slog.Error("failed to save entity", "id", entity.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save entity")
		return
	}

	writeJSON(w, http.StatusCreated, entity)
}

// GetEntity handles GET /entities/{id}.
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "id")

	entity, err := h.store.GetEntity(r.Context(), entityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entity not found")
			return
		}
		slog.Error("failed to get entity", "id", entityID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get entity")
		return
	}

	writeJSON(w, http.StatusOK, entity)
}

// CreateCaseRequest is the request body for POST /cases.
type CreateCaseRequest struct {
	ID             string  `json:"id,omitempty"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	Category       string  `json:"category,omitempty"`
	RiskLevel      string  `json:"riskLevel,omitempty"`
	AmountInvolved float64 `json:"amountInvolved,omitempty"`
}

// CreateCase handles POST /cases.
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	var req CreateCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.AmountInvolved < 0 {
		writeError(w, http.StatusBadRequest, "amountInvolved must not be negative")
		return
	}

	riskLevel := domain.RiskLevel(req.RiskLevel)
	if riskLevel == "" {
		riskLevel = domain.RiskMedium
	}

	now := time.Now().UTC()
	c := &domain.Case{
		ID:             req.ID,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Status:         domain.CaseOpen,
		RiskLevel:      riskLevel,
		AmountInvolved: req.AmountInvolved,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	if err := h.store.SaveCase(r.Context(), c); err != nil {
		slog.Error("failed to save case", "id", c.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save case")
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

// GetCase handles GET /cases/{id}.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "id")

	c, err := h.store.GetCase(r.Context(), caseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "case not found")
			return
		}
		slog.Error("failed to get case", "id", caseID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get case")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// ListCases handles GET /cases with optional status and limit query params.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	status := domain.CaseStatus(r.URL.Query().Get("status"))

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	cases, err := h.store.ListCases(r.Context(), status, limit)
	if err != nil {
		slog.Error("failed to list cases", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list cases")
		return
	}
	if cases == nil {
		cases = []*domain.Case{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cases": cases,
		"count": len(cases),
	})
}

// UpdateCaseStatusRequest is the request body for PATCH /cases/{id}/status.
type UpdateCaseStatusRequest struct {
	Status string `json:"status"`
}

// UpdateCaseStatus handles PATCH /cases/{id}/status.
func (h *Handler) UpdateCaseStatus(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "id")

	var req UpdateCaseStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	status := domain.CaseStatus(req.Status)
	switch status {
	case domain.CaseOpen, domain.CaseUnderInvestigation, domain.CaseEscalated,
		domain.CaseClosed, domain.CaseSARGenerated:
	default:
		writeError(w, http.StatusBadRequest, "unknown case status")
		return
	}

	if err := h.store.UpdateCaseStatus(r.Context(), caseID, status); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "case not found")
			return
		}
		slog.Error("failed to update case status", "id", caseID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update case status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"caseId": caseID,
		"status": string(status),
	})
}

// IngestResponse is the response for POST /cases/{id}/transactions.
type IngestResponse struct {
	Transaction *domain.Transaction   `json:"transaction"`
	Indicators  []domain.IndicatorHit `json:"indicators,omitempty"`
}

// IngestTransaction handles POST /cases/{id}/transactions.
func (h *Handler) IngestTransaction(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "id")

	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	tx, hits, err := h.engine.IngestTransaction(r.Context(), caseID, &req)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "case not found")
		default:
			slog.Error("ingestion failed", "case_id", caseID, "error", err)
			writeError(w, http.StatusInternalServerError, "ingestion failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, IngestResponse{
		Transaction: tx,
		Indicators:  hits,
	})
}

// AnalyzeRequest is the optional request body for POST /cases/{id}/analyze.
type AnalyzeRequest struct {
	PivotEntity string     `json:"pivotEntity,omitempty"`
	Now         *time.Time `json:"now,omitempty"`
}

// AnalyzeCase handles POST /cases/{id}/analyze.
func (h *Handler) AnalyzeCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "id")

	var req AnalyzeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON request body")
			return
		}
	}

	opts := engine.AnalyzeOptions{PivotEntity: req.PivotEntity}
	if req.Now != nil {
		opts.Now = req.Now.UTC()
	}

	analysis, err := h.engine.AnalyzeCase(r.Context(), caseID, opts)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "case not found")
			return
		}
		slog.Error("analysis failed", "case_id", caseID, "error", err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	h.publishAnalyzed(r, analysis)

	writeJSON(w, http.StatusOK, analysis)
}

func (h *Handler) publishAnalyzed(r *http.Request, analysis *domain.CaseAnalysis) {
	if h.bus == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"caseId":    analysis.CaseID,
		"riskScore": analysis.Risk.CaseRiskScore,
		"riskLevel": analysis.Risk.RiskLevel,
	})
	if err != nil {
		return
	}
	if err := h.bus.Publish(r.Context(), domain.TopicCaseAnalyzed, payload); err != nil {
		slog.Warn("failed to publish analysis event",
			"case_id", analysis.CaseID, "error", err)
	}
}

// AssessCase handles POST /cases/{id}/assess.
func (h *Handler) AssessCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "id")

	var input engine.AssessInput
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON request body")
			return
		}
	}

	result, err := h.engine.Assess(r.Context(), caseID, input)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "case not found")
			return
		}
		slog.Error("assessment failed", "case_id", caseID, "error", err)
		writeError(w, http.StatusInternalServerError, "assessment failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListRules returns all loaded rules from the rule engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.rules.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loaded,
		"count": len(loaded),
	})
}

// CreateRuleRequest is the request body for creating an indicator rule.
type CreateRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Indicator   string  `json:"indicator"`
	Weight      float64 `json:"weight"`
	Enabled     bool    `json:"enabled"`
}

// CreateRule validates, persists, and loads a new indicator rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeError(w, http.StatusBadRequest, "id, name, and expression are required")
		return
	}
	if req.Indicator == "" {
		writeError(w, http.StatusBadRequest, "indicator is required")
		return
	}

	rule := &domain.IndicatorRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Indicator:   req.Indicator,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	// Compiling doubles as expression validation.
	if err := h.rules.LoadRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid CEL expression: "+err.Error())
		return
	}

	if err := h.store.SaveIndicatorRule(ctx, rule); err != nil {
		slog.Error("failed to save rule", "id", rule.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save rule")
		return
	}

	slog.Info("rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, rule)
}

// ReloadRules reloads all enabled rules from the store into the engine.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stored, err := h.store.ListIndicatorRules(ctx)
	if err != nil {
		slog.Error("failed to list rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load rules")
		return
	}

	if err := h.rules.ReloadRules(stored); err != nil {
		slog.Error("failed to reload rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload rules: "+err.Error())
		return
	}

	count := h.rules.RulesCount()
	slog.Info("rules reloaded", "count", count)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

// Statistics handles GET /statistics.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Statistics(r.Context())
	if err != nil {
		slog.Error("failed to load statistics", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

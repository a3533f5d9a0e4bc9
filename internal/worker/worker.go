// Package worker provides async entity re-scoring driven by the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
)

// DefaultAlertThreshold is the entity risk score at which an alert is
// published.
const DefaultAlertThreshold = 80.0

// EntityScorer recomputes and persists an entity's risk score.
type EntityScorer interface {
	ScoreEntity(ctx context.Context, entityID string) (float64, error)
}

// Worker listens for ingested transactions and re-scores the entities on
// both sides. Scores at or above the alert threshold publish to the alert
// topic.
type Worker struct {
	bus            domain.EventBus
	scorer         EntityScorer
	alertThreshold float64
	logger         *slog.Logger

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// AlertThreshold overrides DefaultAlertThreshold when positive.
	AlertThreshold float64

	Logger *slog.Logger
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, scorer EntityScorer, cfg Config) *Worker {
	threshold := cfg.AlertThreshold
	if threshold <= 0 {
		threshold = DefaultAlertThreshold
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:            bus,
		scorer:         scorer,
		alertThreshold: threshold,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start subscribes to the ingestion topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionIngested, w.handleIngested)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	w.logger.Info("worker started",
		"topic", domain.TopicTransactionIngested,
		"alert_threshold", w.alertThreshold,
	)
	return nil
}

// Alert is the payload published on TopicAlert when an entity crosses the
// alert threshold.
type Alert struct {
	EntityID      string  `json:"entityId"`
	CaseID        string  `json:"caseId"`
	TransactionID string  `json:"transactionId"`
	RiskScore     float64 `json:"riskScore"`
}

// handleIngested re-scores the entities touched by the transaction.
func (w *Worker) handleIngested(ctx context.Context, msg *domain.Message) error {
	var evt domain.TransactionIngested
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		w.logger.Error("failed to parse ingestion event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	for _, entityID := range entityPair(evt.SourceEntity, evt.DestEntity) {
		score, err := w.scorer.ScoreEntity(ctx, entityID)
		if err != nil {
			w.logger.Error("entity re-scoring failed",
				"entity_id", entityID,
				"transaction_id", evt.TransactionID,
				"error", err,
			)
			continue
		}

		w.logger.Debug("entity re-scored",
			"entity_id", entityID,
			"risk_score", score,
		)

		if score >= w.alertThreshold {
			w.publishAlert(ctx, Alert{
				EntityID:      entityID,
				CaseID:        evt.CaseID,
				TransactionID: evt.TransactionID,
				RiskScore:     score,
			})
		}
	}

	return nil
}

func (w *Worker) publishAlert(ctx context.Context, alert Alert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		return
	}

	if err := w.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
		w.logger.Error("failed to publish alert",
			"entity_id", alert.EntityID,
			"error", err,
		)
		return
	}

	w.logger.Info("alert published",
		"entity_id", alert.EntityID,
		"case_id", alert.CaseID,
		"risk_score", alert.RiskScore,
	)
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.logger.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}

// entityPair returns the distinct non-empty entities of a transaction.
func entityPair(source, dest string) []string {
	var out []string
	if source != "" {
		out = append(out, source)
	}
	if dest != "" && dest != source {
		out = append(out, dest)
	}
	return out
}

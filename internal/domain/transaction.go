package domain

import (
	"fmt"
	"time"
)

// Transaction is a single money movement attached to a case. Records are
// append-only: anomaly and pattern annotations are set when the transaction
// is analyzed and never retroactively altered by unrelated transactions.
type Transaction struct {
	ID               string    `json:"id"`
	CaseID           string    `json:"caseId"`
	SourceEntity     string    `json:"sourceEntity"`
	DestEntity       string    `json:"destEntity"`
	Amount           float64   `json:"amount"`
	Currency         string    `json:"currency"`
	Timestamp        time.Time `json:"timestamp"`
	Type             string    `json:"type"`
	Channels         []string  `json:"channels,omitempty"`
	Flags            []string  `json:"flags,omitempty"`
	Description      string    `json:"description,omitempty"`
	RiskScore        float64   `json:"riskScore"`
	DetectedPatterns []string  `json:"detectedPatterns,omitempty"`
	AnomalyScore     float64   `json:"anomalyScore"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Counterparty returns the party on the other side of the transaction,
// preferring the destination when both sides are set.
func (t *Transaction) Counterparty() string {
	if t.DestEntity != "" {
		return t.DestEntity
	}
	return t.SourceEntity
}

// TransactionRequest is the ingestion payload for adding a transaction
// to a case.
type TransactionRequest struct {
	SourceEntity string     `json:"sourceEntity"`
	DestEntity   string     `json:"destEntity"`
	Amount       float64    `json:"amount"`
	Currency     string     `json:"currency"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	Type         string     `json:"type,omitempty"`
	Channels     []string   `json:"channels,omitempty"`
	Description  string     `json:"description,omitempty"`
}

// Validate rejects malformed requests with a typed error scoped to the
// single offending field. Zero amounts are legal; negative amounts are not.
func (r *TransactionRequest) Validate() error {
	if r.SourceEntity == "" {
		return &ValidationError{Field: "sourceEntity", Reason: "source entity is required"}
	}
	if r.DestEntity == "" {
		return &ValidationError{Field: "destEntity", Reason: "destination entity is required"}
	}
	if r.Amount < 0 {
		return &ValidationError{Field: "amount", Reason: "amount must not be negative"}
	}
	return nil
}

// ValidationError marks a single invalid input item. It does not abort a
// whole-case analysis; only the offending item is rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

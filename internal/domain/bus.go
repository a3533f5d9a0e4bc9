package domain

import (
	"context"
)

// EventBus is the event-driven communication boundary. Community tier uses
// Go channels; pro tier uses NATS.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic. Returns a subscription
	// that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (community tier)
	ChannelBufferSize int

	// NATS settings (pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the analysis pipeline.
const (
	TopicTransactionIngested = "aml.transaction.ingested"
	TopicCaseAnalyzed        = "aml.case.analyzed"
	TopicEntityScored        = "aml.entity.scored"
	TopicAlert               = "aml.alert"
)

// TransactionIngested is the payload published on TopicTransactionIngested.
type TransactionIngested struct {
	TransactionID string  `json:"transactionId"`
	CaseID        string  `json:"caseId"`
	SourceEntity  string  `json:"sourceEntity"`
	DestEntity    string  `json:"destEntity"`
	Amount        float64 `json:"amount"`
	AnomalyScore  float64 `json:"anomalyScore"`
}

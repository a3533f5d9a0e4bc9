// Package domain defines the core types and interfaces for the AML
// risk detection and scoring engine.
package domain

import (
	"time"
)

// EntityType classifies a party appearing in transactions.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityAccount      EntityType = "account"
)

// Entity represents a person, organization, or account under investigation.
// Identity fields are immutable once created; RiskScore is mutated only
// through Store.UpdateEntityRisk by the risk scoring path.
type Entity struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Type          EntityType             `json:"type"`
	PEPFlag       bool                   `json:"pepFlag"`
	SanctionsFlag bool                   `json:"sanctionsFlag"`
	RiskScore     float64                `json:"riskScore"`
	CreatedAt     time.Time              `json:"createdAt"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// EntityFlags is the minimal flag view consumed by the risk scorer.
type EntityFlags struct {
	PEPFlag       bool `json:"pepFlag"`
	SanctionsFlag bool `json:"sanctionsFlag"`
}

// CaseStatus is the investigation state of a case.
type CaseStatus string

const (
	CaseOpen               CaseStatus = "open"
	CaseUnderInvestigation CaseStatus = "under_investigation"
	CaseEscalated          CaseStatus = "escalated"
	CaseClosed             CaseStatus = "closed"
	CaseSARGenerated       CaseStatus = "sar_generated"
)

// RiskLevel is the declared severity band of a case.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Case is an investigation grouping a set of transactions.
type Case struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Category          string     `json:"category,omitempty"`
	Status            CaseStatus `json:"status"`
	RiskLevel         RiskLevel  `json:"riskLevel"`
	AmountInvolved    float64    `json:"amountInvolved"`
	PatternIndicators []string   `json:"patternIndicators,omitempty"`
	RiskScore         float64    `json:"riskScore"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// CaseSummary is the case view consumed by the risk scorer.
type CaseSummary struct {
	RiskLevel            RiskLevel `json:"riskLevel"`
	AmountInvolved       float64   `json:"amountInvolved"`
	HasPatternIndicators bool      `json:"hasPatternIndicators"`
}

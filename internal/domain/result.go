package domain

import (
	"time"
)

// Recommended action constants, in precedence order of severity.
const (
	ActionAutoApprove     = "auto_approve"
	ActionReviewRequired  = "review_required"
	ActionFieldInspection = "field_inspection"
	ActionReject          = "reject"
)

// Risk level constants.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// DuplicateMatch is one reference application that scored above the
// duplicate-similarity threshold.
type DuplicateMatch struct {
	ID         string `json:"id"`
	Similarity int    `json:"similarity"`
	Reason     string `json:"reason"`
}

// ProcessingResult is the complete automated verdict for one application.
// Reasons are ordered and human-auditable; the record is intended to be
// logged verbatim for audit.
type ProcessingResult struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	Eligible      bool      `json:"eligible"`
	RiskScore     int       `json:"riskScore"` // 0-100
	RiskLevel     string    `json:"riskLevel"`
	BenefitAmount int64     `json:"benefitAmount"` // soms, whole units
	Action        string    `json:"recommendedAction"`
	Reasons       []string  `json:"reasons"`
	DuplicateRisk bool      `json:"duplicateRisk"`
	Matches       []DuplicateMatch `json:"matches,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ProcessingStats aggregates a set of processing results.
type ProcessingStats struct {
	Total              int   `json:"total"`
	AutoApproved       int   `json:"autoApproved"`
	ReviewRequired     int   `json:"reviewRequired"`
	FieldInspection    int   `json:"fieldInspection"`
	Rejected           int   `json:"rejected"`
	LowRisk            int   `json:"lowRisk"`
	MediumRisk         int   `json:"mediumRisk"`
	HighRisk           int   `json:"highRisk"`
	DuplicatesDetected int   `json:"duplicatesDetected"`
	AverageRiskScore   int   `json:"averageRiskScore"`
	TotalBenefitAmount int64 `json:"totalBenefitAmount"`
}

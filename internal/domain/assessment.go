package domain

import "time"

// RiskLevel is the discrete tier derived from the combined fraud score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// FraudAssessment is the externally visible result of a fraud analysis.
// It is constructed once per analyzed transaction and never mutated.
type FraudAssessment struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transactionId,omitempty"`
	UserID        string    `json:"userId"`

	FraudScore     float64   `json:"fraud_score"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Reasons        []string  `json:"reasons"`
	Recommendation string    `json:"recommendation"`
	Confidence     float64   `json:"confidence"`

	// Component scores kept for audit and policy evaluation.
	AnomalyScore          float64 `json:"anomalyScore"`
	ClassifierProbability float64 `json:"classifierProbability"`

	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`

	// Degraded marks an assessment produced by the failure fallback
	// rather than the scoring pipeline.
	Degraded bool `json:"degraded,omitempty"`
}

// Alert records an assessment escalated by tier or by a policy rule.
type Alert struct {
	ID           string    `json:"id"`
	AssessmentID string    `json:"assessmentId"`
	UserID       string    `json:"userId"`
	PolicyID     string    `json:"policyId,omitempty"`
	Score        float64   `json:"score"`
	RiskLevel    RiskLevel `json:"riskLevel"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RiskProfile summarizes a user's standing risk posture.
type RiskProfile struct {
	UserID           string    `json:"userId"`
	OverallRisk      RiskLevel `json:"overall_risk"`
	TransactionCount int64     `json:"transaction_count"`
	AvgAmount        float64   `json:"avg_amount"`
	RiskFactors      []string  `json:"risk_factors"`
	LastUpdated      time.Time `json:"last_updated"`
}

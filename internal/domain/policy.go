package domain

import "time"

// Policy is an operator-defined escalation rule evaluated against every
// completed assessment. A triggered policy raises an alert regardless of
// the assessment's tier.
type Policy struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Expression is a CEL expression over the assessment variables
	// (fraud_score, risk_level, anomaly_score, classifier_probability,
	// confidence, amount, currency, user_id) returning bool.
	Expression string `json:"expression"`

	// Reason is attached to alerts raised by this policy.
	Reason string `json:"reason"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    transaction_id TEXT,
    user_id TEXT NOT NULL,
    fraud_score REAL NOT NULL,
    risk_level TEXT NOT NULL,
    reasons TEXT NOT NULL,
    recommendation TEXT NOT NULL,
    confidence REAL NOT NULL,
    anomaly_score REAL NOT NULL,
    classifier_probability REAL NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    degraded INTEGER NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_tx ON assessments(transaction_id);
CREATE INDEX IF NOT EXISTS idx_assessments_user ON assessments(user_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_assessments_risk ON assessments(risk_level);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    assessment_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    policy_id TEXT,
    score REAL NOT NULL,
    risk_level TEXT NOT NULL,
    reason TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
`

const schemaPolicies = `
CREATE TABLE IF NOT EXISTS policies (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    reason TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policies_enabled ON policies(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAssessments,
		schemaAlerts,
		schemaPolicies,
	}
}

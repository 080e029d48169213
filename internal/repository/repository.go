// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveAssessment stores an assessment in the audit log.
func (r *SQLRepository) SaveAssessment(ctx context.Context, a *domain.FraudAssessment) error {
	if a.ID == "" {
		return fmt.Errorf("%w: assessment id is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(a.Reasons)

	degraded := 0
	if a.Degraded {
		degraded = 1
	}

	query := `
		INSERT INTO assessments (
			id, transaction_id, user_id, fraud_score, risk_level,
			reasons, recommendation, confidence, anomaly_score,
			classifier_probability, amount, currency, degraded, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, a.TransactionID, a.UserID,
		a.FraudScore, string(a.RiskLevel),
		string(reasons), a.Recommendation, a.Confidence,
		a.AnomalyScore, a.ClassifierProbability,
		a.Amount, a.Currency, degraded, a.Timestamp,
	)
	return err
}

// GetAssessment retrieves an assessment by ID.
func (r *SQLRepository) GetAssessment(ctx context.Context, id string) (*domain.FraudAssessment, error) {
	query := `
		SELECT id, transaction_id, user_id, fraud_score, risk_level,
			   reasons, recommendation, confidence, anomaly_score,
			   classifier_probability, amount, currency, degraded, timestamp
		FROM assessments
		WHERE id = ?
	`
	return r.scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), id))
}

// GetAssessmentByTransaction retrieves the latest assessment for a transaction.
func (r *SQLRepository) GetAssessmentByTransaction(ctx context.Context, txID string) (*domain.FraudAssessment, error) {
	if txID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, transaction_id, user_id, fraud_score, risk_level,
			   reasons, recommendation, confidence, anomaly_score,
			   classifier_probability, amount, currency, degraded, timestamp
		FROM assessments
		WHERE transaction_id = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`
	return r.scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), txID))
}

func (r *SQLRepository) scanAssessment(row *sql.Row) (*domain.FraudAssessment, error) {
	var a domain.FraudAssessment
	var reasons, riskLevel string
	var degraded int

	err := row.Scan(
		&a.ID, &a.TransactionID, &a.UserID,
		&a.FraudScore, &riskLevel,
		&reasons, &a.Recommendation, &a.Confidence,
		&a.AnomalyScore, &a.ClassifierProbability,
		&a.Amount, &a.Currency, &degraded, &a.Timestamp,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.RiskLevel = domain.RiskLevel(riskLevel)
	a.Degraded = degraded == 1
	json.Unmarshal([]byte(reasons), &a.Reasons)

	return &a, nil
}

// ListAssessmentsByUser retrieves a user's most recent assessments.
func (r *SQLRepository) ListAssessmentsByUser(ctx context.Context, userID string, limit int) ([]*domain.FraudAssessment, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, transaction_id, user_id, fraud_score, risk_level,
			   reasons, recommendation, confidence, anomaly_score,
			   classifier_probability, amount, currency, degraded, timestamp
		FROM assessments
		WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assessments []*domain.FraudAssessment
	for rows.Next() {
		var a domain.FraudAssessment
		var reasons, riskLevel string
		var degraded int

		if err := rows.Scan(
			&a.ID, &a.TransactionID, &a.UserID,
			&a.FraudScore, &riskLevel,
			&reasons, &a.Recommendation, &a.Confidence,
			&a.AnomalyScore, &a.ClassifierProbability,
			&a.Amount, &a.Currency, &degraded, &a.Timestamp,
		); err != nil {
			return nil, err
		}

		a.RiskLevel = domain.RiskLevel(riskLevel)
		a.Degraded = degraded == 1
		json.Unmarshal([]byte(reasons), &a.Reasons)
		assessments = append(assessments, &a)
	}

	return assessments, rows.Err()
}

// CountAssessmentsByUser counts assessments for a user since a point in time.
func (r *SQLRepository) CountAssessmentsByUser(ctx context.Context, userID string, since time.Time) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*) FROM assessments
		WHERE user_id = ? AND timestamp >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count assessments: %w", err)
	}
	return count, nil
}

// SaveAlert stores an escalation alert.
func (r *SQLRepository) SaveAlert(ctx context.Context, alert *domain.Alert) error {
	if alert.ID == "" {
		return fmt.Errorf("%w: alert id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO alerts (
			id, assessment_id, user_id, policy_id, score, risk_level, reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, alert.AssessmentID, alert.UserID, alert.PolicyID,
		alert.Score, string(alert.RiskLevel), alert.Reason, alert.CreatedAt,
	)
	return err
}

// ListAlerts retrieves the most recent alerts.
func (r *SQLRepository) ListAlerts(ctx context.Context, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, assessment_id, user_id, policy_id, score, risk_level, reason, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		var riskLevel string

		if err := rows.Scan(
			&a.ID, &a.AssessmentID, &a.UserID, &a.PolicyID,
			&a.Score, &riskLevel, &a.Reason, &a.CreatedAt,
		); err != nil {
			return nil, err
		}

		a.RiskLevel = domain.RiskLevel(riskLevel)
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

// SavePolicy stores an escalation policy (upsert by id).
func (r *SQLRepository) SavePolicy(ctx context.Context, policy *domain.Policy) error {
	if policy.ID == "" {
		return fmt.Errorf("%w: policy id is required", ErrInvalidInput)
	}

	enabled := 0
	if policy.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO policies (
			id, name, description, expression, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		policy.ID, policy.Name, policy.Description,
		policy.Expression, policy.Reason, enabled,
		now, now,
	)
	return err
}

// ListPolicies retrieves all enabled escalation policies.
func (r *SQLRepository) ListPolicies(ctx context.Context) ([]*domain.Policy, error) {
	query := `
		SELECT id, name, description, expression, reason, enabled, created_at, updated_at
		FROM policies
		WHERE enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*domain.Policy
	for rows.Next() {
		var p domain.Policy
		var enabled int

		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description,
			&p.Expression, &p.Reason, &enabled,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}

		p.Enabled = enabled == 1
		policies = append(policies, &p)
	}

	return policies, rows.Err()
}

// DeletePolicy soft-deletes a policy by setting enabled = 0.
func (r *SQLRepository) DeletePolicy(ctx context.Context, policyID string) error {
	query := `
		UPDATE policies
		SET enabled = 0, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), policyID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

// Package worker runs the asynchronous alert dispatcher. It consumes
// completed assessments from the event bus, applies the escalation
// policy engine, and persists and republishes the resulting alerts.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/policy"
)

// Dispatcher turns assessments into alerts. High-tier assessments
// always alert; policies add operator-defined escalations on top.
type Dispatcher struct {
	logger *slog.Logger
	repo   domain.Repository
	bus    domain.EventBus
	engine *policy.Engine

	sub domain.Subscription
}

func NewDispatcher(repo domain.Repository, bus domain.EventBus, engine *policy.Engine, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger: logger.With("component", "alert_dispatcher"),
		repo:   repo,
		bus:    bus,
		engine: engine,
	}
}

// Start subscribes to the assessment topic.
func (d *Dispatcher) Start(ctx context.Context) error {
	sub, err := d.bus.Subscribe(ctx, domain.TopicFraudAssessed, d.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to assessments: %w", err)
	}
	d.sub = sub
	d.logger.Info("alert dispatcher started", "topic", domain.TopicFraudAssessed)
	return nil
}

// Stop unsubscribes from the assessment topic.
func (d *Dispatcher) Stop() error {
	if d.sub == nil {
		return nil
	}
	return d.sub.Unsubscribe()
}

func (d *Dispatcher) handle(ctx context.Context, msg *domain.Message) error {
	var a domain.FraudAssessment
	if err := json.Unmarshal(msg.Payload, &a); err != nil {
		d.logger.Warn("dropping malformed assessment event", "error", err)
		return nil
	}

	var alerts []*domain.Alert

	if a.RiskLevel == domain.RiskHigh {
		alerts = append(alerts, d.newAlert(&a, "", "High risk tier"))
	}

	for _, p := range d.engine.Evaluate(&a) {
		reason := p.Reason
		if reason == "" {
			reason = p.Name
		}
		alerts = append(alerts, d.newAlert(&a, p.ID, reason))
	}

	for _, alert := range alerts {
		if err := d.repo.SaveAlert(ctx, alert); err != nil {
			d.logger.Error("failed to persist alert", "alert_id", alert.ID, "error", err)
			continue
		}

		if data, err := json.Marshal(alert); err == nil {
			if err := d.bus.Publish(ctx, domain.TopicFraudAlert, data); err != nil {
				d.logger.Warn("failed to publish alert", "alert_id", alert.ID, "error", err)
			}
		}

		d.logger.Info("alert raised",
			"alert_id", alert.ID,
			"assessment_id", a.ID,
			"policy_id", alert.PolicyID,
			"risk_level", a.RiskLevel)
	}

	return nil
}

func (d *Dispatcher) newAlert(a *domain.FraudAssessment, policyID, reason string) *domain.Alert {
	return &domain.Alert{
		ID:           uuid.NewString(),
		AssessmentID: a.ID,
		UserID:       a.UserID,
		PolicyID:     policyID,
		Score:        a.FraudScore,
		RiskLevel:    a.RiskLevel,
		Reason:       reason,
		CreatedAt:    time.Now().UTC(),
	}
}

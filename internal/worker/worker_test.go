package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/policy"
	"github.com/opensource-finance/kestrel/internal/repository"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, domain.Repository, domain.EventBus, *policy.Engine) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "t.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	b, err := bus.New(domain.EventBusConfig{Type: "channel"})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	engine, err := policy.NewEngine(logger)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	d := NewDispatcher(repo, b, engine, logger)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("failed to start dispatcher: %v", err)
	}
	t.Cleanup(func() { d.Stop() })

	return d, repo, b, engine
}

func publishAssessment(t *testing.T, b domain.EventBus, a *domain.FraudAssessment) {
	t.Helper()
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("failed to marshal assessment: %v", err)
	}
	if err := b.Publish(context.Background(), domain.TopicFraudAssessed, data); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}
}

func waitForAlerts(t *testing.T, repo domain.Repository, want int) []*domain.Alert {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		alerts, err := repo.ListAlerts(context.Background(), 10)
		if err != nil {
			t.Fatalf("failed to list alerts: %v", err)
		}
		if len(alerts) >= want {
			return alerts
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d alerts", want)
	return nil
}

func TestDispatcherHighTierAlert(t *testing.T) {
	_, repo, b, _ := newTestDispatcher(t)

	publishAssessment(t, b, &domain.FraudAssessment{
		ID:         "asmt-high",
		UserID:     "user-1",
		FraudScore: 0.92,
		RiskLevel:  domain.RiskHigh,
	})

	alerts := waitForAlerts(t, repo, 1)
	if alerts[0].AssessmentID != "asmt-high" {
		t.Errorf("unexpected assessment id: %s", alerts[0].AssessmentID)
	}
	if alerts[0].PolicyID != "" {
		t.Errorf("tier alert should carry no policy id, got %s", alerts[0].PolicyID)
	}
	if alerts[0].Reason != "High risk tier" {
		t.Errorf("unexpected reason: %s", alerts[0].Reason)
	}
}

func TestDispatcherPolicyAlert(t *testing.T) {
	_, repo, b, engine := newTestDispatcher(t)

	engine.Load([]*domain.Policy{
		{ID: "p-usd", Name: "large usd", Expression: `amount > 1000.0 && currency == "USD"`, Reason: "large USD transfer", Enabled: true},
	})

	publishAssessment(t, b, &domain.FraudAssessment{
		ID:         "asmt-med",
		UserID:     "user-2",
		FraudScore: 0.65,
		RiskLevel:  domain.RiskMedium,
		Amount:     5000,
		Currency:   "USD",
	})

	alerts := waitForAlerts(t, repo, 1)
	if alerts[0].PolicyID != "p-usd" {
		t.Errorf("expected policy alert, got policy id %q", alerts[0].PolicyID)
	}
	if alerts[0].Reason != "large USD transfer" {
		t.Errorf("unexpected reason: %s", alerts[0].Reason)
	}
}

func TestDispatcherLowTierNoAlert(t *testing.T) {
	_, repo, b, _ := newTestDispatcher(t)

	publishAssessment(t, b, &domain.FraudAssessment{
		ID:         "asmt-low",
		UserID:     "user-3",
		FraudScore: 0.1,
		RiskLevel:  domain.RiskLow,
	})

	time.Sleep(100 * time.Millisecond)
	alerts, err := repo.ListAlerts(context.Background(), 10)
	if err != nil {
		t.Fatalf("failed to list alerts: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("expected no alerts for low tier, got %d", len(alerts))
	}
}

func TestDispatcherRepublishesAlerts(t *testing.T) {
	_, _, b, _ := newTestDispatcher(t)

	received := make(chan *domain.Message, 1)
	if _, err := b.Subscribe(context.Background(), domain.TopicFraudAlert, func(ctx context.Context, msg *domain.Message) error {
		received <- msg
		return nil
	}); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	publishAssessment(t, b, &domain.FraudAssessment{
		ID:        "asmt-pub",
		UserID:    "user-4",
		RiskLevel: domain.RiskHigh,
	})

	select {
	case msg := <-received:
		var alert domain.Alert
		if err := json.Unmarshal(msg.Payload, &alert); err != nil {
			t.Fatalf("malformed alert payload: %v", err)
		}
		if alert.AssessmentID != "asmt-pub" {
			t.Errorf("unexpected assessment id: %s", alert.AssessmentID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for alert event")
	}
}

func TestDispatcherIgnoresMalformedEvents(t *testing.T) {
	_, repo, b, _ := newTestDispatcher(t)

	if err := b.Publish(context.Background(), domain.TopicFraudAssessed, []byte("not json")); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	alerts, err := repo.ListAlerts(context.Background(), 10)
	if err != nil {
		t.Fatalf("failed to list alerts: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("malformed event must not produce alerts, got %d", len(alerts))
	}
}

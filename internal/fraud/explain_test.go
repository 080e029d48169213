package fraud

import (
	"reflect"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		score float64
		want  domain.RiskLevel
	}{
		{0.0, domain.RiskLow},
		{0.59, domain.RiskLow},
		{0.6, domain.RiskMedium}, // threshold is inclusive
		{0.79, domain.RiskMedium},
		{0.8, domain.RiskHigh}, // threshold is inclusive
		{1.0, domain.RiskHigh},
	}

	for _, tt := range tests {
		if got := TierFor(tt.score); got != tt.want {
			t.Errorf("score %f: expected %s, got %s", tt.score, tt.want, got)
		}
	}
}

func TestFuseScores(t *testing.T) {
	if got := FuseScores(0.5, 0.5); got != 0.5 {
		t.Errorf("expected 0.5, got %f", got)
	}
	// Weighted: 0.4*1.0 + 0.6*0.0
	if got := FuseScores(1.0, 0.0); got != 0.4 {
		t.Errorf("expected 0.4, got %f", got)
	}
	if got := FuseScores(0.0, 1.0); got != 0.6 {
		t.Errorf("expected 0.6, got %f", got)
	}
}

func featuresFor(amount, hour, location, device, frequency float64) []float64 {
	return []float64{amount / 10000, hour / 24, 2.0 / 7, location, device, frequency, 0, 0}
}

func TestReasons(t *testing.T) {
	t.Run("AllRulesInOrder", func(t *testing.T) {
		features := featuresFor(6000, 3, 0.9, 0.8, 0.8)
		got := Reasons(features, 0.75, 0.65)
		want := []string{
			"High transaction amount",
			"Unusual transaction time",
			"High-risk location",
			"Suspicious device characteristics",
			"Unusual transaction frequency",
			"Transaction pattern anomaly detected",
			"High fraud probability based on historical data",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("reason mismatch:\n got %v\nwant %v", got, want)
		}
	})

	t.Run("Fallback", func(t *testing.T) {
		features := featuresFor(100, 12, 0.3, 0.5, 0.4)
		got := Reasons(features, 0.2, 0.1)
		want := []string{"Standard risk assessment"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected fallback reason, got %v", got)
		}
	})

	t.Run("LateHour", func(t *testing.T) {
		features := featuresFor(100, 23, 0.3, 0.5, 0.4)
		got := Reasons(features, 0.2, 0.1)
		if len(got) != 1 || got[0] != "Unusual transaction time" {
			t.Errorf("expected late-hour reason, got %v", got)
		}
	})

	t.Run("BoundariesExclusive", func(t *testing.T) {
		// Every rule threshold is a strict inequality.
		features := featuresFor(5000, 6, 0.8, 0.7, 0.7)
		got := Reasons(features, 0.7, 0.6)
		want := []string{"Standard risk assessment"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("boundary values must not trigger rules, got %v", got)
		}
	})
}

func TestRecommendation(t *testing.T) {
	tests := []struct {
		level domain.RiskLevel
		want  string
	}{
		{domain.RiskHigh, "Block transaction and require manual review"},
		{domain.RiskMedium, "Require additional verification (2FA, SMS)"},
		{domain.RiskLow, "Approve transaction with standard monitoring"},
	}

	for _, tt := range tests {
		if got := Recommendation(tt.level); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.level, tt.want, got)
		}
	}
}

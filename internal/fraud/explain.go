package fraud

import "github.com/opensource-finance/kestrel/internal/domain"

// Score fusion weights and tier thresholds. Fixed constants, not
// learned parameters.
const (
	anomalyWeight    = 0.4
	classifierWeight = 0.6

	highThreshold   = 0.8
	mediumThreshold = 0.6
)

// FuseScores blends the two model outputs into the combined fraud score.
func FuseScores(anomalyScore, classifierProb float64) float64 {
	return anomalyWeight*anomalyScore + classifierWeight*classifierProb
}

// TierFor maps a combined score to its risk tier. Both thresholds are
// inclusive lower bounds.
func TierFor(score float64) domain.RiskLevel {
	switch {
	case score >= highThreshold:
		return domain.RiskHigh
	case score >= mediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// Reasons derives the ordered list of human-readable risk factors from
// the feature vector and the two raw model outputs. Rule order is part
// of the output contract.
func Reasons(features []float64, anomalyScore, classifierProb float64) []string {
	var reasons []string

	if features[featAmount]*10000 > 5000 {
		reasons = append(reasons, "High transaction amount")
	}

	hour := features[featHour] * 24
	if hour < 6 || hour > 22 {
		reasons = append(reasons, "Unusual transaction time")
	}

	if features[featLocation] > 0.8 {
		reasons = append(reasons, "High-risk location")
	}

	if features[featDevice] > 0.7 {
		reasons = append(reasons, "Suspicious device characteristics")
	}

	if features[featFrequency] > 0.7 {
		reasons = append(reasons, "Unusual transaction frequency")
	}

	if anomalyScore > 0.7 {
		reasons = append(reasons, "Transaction pattern anomaly detected")
	}

	if classifierProb > 0.6 {
		reasons = append(reasons, "High fraud probability based on historical data")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "Standard risk assessment")
	}

	return reasons
}

// Recommendation maps a risk tier to its recommended action.
func Recommendation(level domain.RiskLevel) string {
	switch level {
	case domain.RiskHigh:
		return "Block transaction and require manual review"
	case domain.RiskMedium:
		return "Require additional verification (2FA, SMS)"
	default:
		return "Approve transaction with standard monitoring"
	}
}

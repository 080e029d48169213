// Package fraud implements the transaction risk scoring pipeline:
// feature extraction, anomaly and classifier scoring, score fusion,
// tiering, and explanation generation.
package fraud

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// FeatureCount is the fixed length of every feature vector. The last
// two slots are reserved for future signals and are zero-filled so the
// scoring path stays deterministic.
const FeatureCount = 8

// Feature vector slot indexes.
const (
	featAmount = iota
	featHour
	featWeekday
	featLocation
	featDevice
	featFrequency
)

// Frequency risk levels by recent transaction count.
const (
	freqRiskSparse  = 0.8 // fewer than 3 recent transactions
	freqRiskMedium  = 0.4 // 3 to 9
	freqRiskLow     = 0.2 // 10 or more
	freqRiskUnknown = 0.5 // counter store failure
)

// Extractor converts a raw transaction into a fixed-length feature
// vector. Extraction is read-only apart from the counter store lookup
// and never fails: a counter store error degrades the frequency
// feature rather than the whole extraction.
type Extractor struct {
	counters domain.Cache
	logger   *slog.Logger
}

func NewExtractor(counters domain.Cache, logger *slog.Logger) *Extractor {
	return &Extractor{
		counters: counters,
		logger:   logger.With("component", "feature_extractor"),
	}
}

// Extract builds the feature vector for a transaction as observed at
// the given time.
func (e *Extractor) Extract(ctx context.Context, tx *domain.TransactionInput, now time.Time) []float64 {
	features := make([]float64, FeatureCount)

	features[featAmount] = math.Min(tx.Amount/10000, 1.0)

	// Weekday is Monday-based: Monday=0 .. Sunday=6.
	features[featHour] = float64(now.Hour()) / 24
	features[featWeekday] = float64((int(now.Weekday())+6)%7) / 7

	features[featLocation] = locationRisk(tx.Location)
	features[featDevice] = deviceRisk(tx.Device)
	features[featFrequency] = e.frequencyRisk(ctx, tx.UserID)

	return features
}

// locationRisk is a coarse coordinate heuristic. Deliberately not
// clamped: extreme coordinates can exceed 1 and downstream consumers
// must not assume a [0,1] range.
func locationRisk(loc *domain.Location) float64 {
	if loc == nil {
		return 0.5
	}
	return math.Abs(loc.Lat) + math.Abs(loc.Lng)/180
}

func deviceRisk(dev *domain.DeviceInfo) float64 {
	risk := 0.5
	if dev == nil {
		return risk
	}
	if dev.IsMobile {
		risk += 0.1
	}
	if dev.IsTor {
		risk += 0.3
	}
	if dev.IsVPN {
		risk += 0.2
	}
	return math.Min(risk, 1.0)
}

// frequencyRisk maps the user's recent transaction count to a risk
// contribution. A missing counter assumes a neutral history of 5; a
// store failure returns a distinct default marking the estimate as
// unvalidated.
func (e *Extractor) frequencyRisk(ctx context.Context, userID string) float64 {
	count, found, err := e.counters.GetCounter(ctx, domain.KeyUserTransactions+userID)
	if err != nil {
		e.logger.Warn("frequency lookup failed", "user_id", userID, "error", err)
		return freqRiskUnknown
	}
	if !found {
		count = 5
	}

	switch {
	case count < 3:
		return freqRiskSparse
	case count < 10:
		return freqRiskMedium
	default:
		return freqRiskLow
	}
}

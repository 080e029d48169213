package fraud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ml"
)

// ErrTrainingInProgress is returned when a retrain is requested while
// another one is still running.
var ErrTrainingInProgress = errors.New("model training already in progress")

// ModelStatus reports the state of the loaded model generation.
type ModelStatus struct {
	Ready           bool      `json:"ready"`
	Training        bool      `json:"training"`
	TrainedAt       time.Time `json:"trainedAt,omitempty"`
	TrainingSamples int       `json:"trainingSamples"`
	Trees           int       `json:"trees"`
}

// Service runs the fraud scoring pipeline. The model set is loaded (or
// trained) once at startup and shared read-only across requests;
// retraining swaps in a new generation atomically.
type Service struct {
	logger    *slog.Logger
	cache     domain.Cache
	repo      domain.Repository
	bus       domain.EventBus
	artifacts domain.ArtifactStore
	extractor *Extractor
	cfg       domain.ModelConfig

	models    atomic.Pointer[ml.ModelSet]
	trainedAt atomic.Pointer[time.Time]
	training  atomic.Bool
}

// NewService loads the persisted model artifacts, or trains a fresh set
// from synthetic data when no complete artifact generation exists.
func NewService(
	cfg domain.ModelConfig,
	cache domain.Cache,
	repo domain.Repository,
	bus domain.EventBus,
	artifacts domain.ArtifactStore,
	logger *slog.Logger,
) (*Service, error) {
	s := &Service{
		logger:    logger.With("component", "fraud"),
		cache:     cache,
		repo:      repo,
		bus:       bus,
		artifacts: artifacts,
		extractor: NewExtractor(cache, logger),
		cfg:       cfg,
	}

	set, found, err := s.loadModels()
	if err != nil {
		s.logger.Warn("failed to load model artifacts, retraining", "error", err)
	}
	if err == nil && found {
		s.swapModels(set)
		s.logger.Info("model artifacts loaded", "dir", cfg.ArtifactDir)
		return s, nil
	}

	if err := s.train(); err != nil {
		return nil, fmt.Errorf("failed to train models: %w", err)
	}
	return s, nil
}

// loadModels restores a complete model generation from the artifact
// store. Artifacts are all-or-nothing: a partial set triggers retraining.
func (s *Service) loadModels() (*ml.ModelSet, bool, error) {
	anomalyData, foundA, err := s.artifacts.Load(domain.ArtifactAnomalyModel)
	if err != nil {
		return nil, false, err
	}
	classifierData, foundC, err := s.artifacts.Load(domain.ArtifactClassifier)
	if err != nil {
		return nil, false, err
	}
	scalerData, foundS, err := s.artifacts.Load(domain.ArtifactScaler)
	if err != nil {
		return nil, false, err
	}
	if !foundA || !foundC || !foundS {
		return nil, false, nil
	}

	anomaly, err := ml.UnmarshalIsolationForest(anomalyData)
	if err != nil {
		return nil, false, err
	}
	classifier, err := ml.UnmarshalRandomForest(classifierData)
	if err != nil {
		return nil, false, err
	}
	scaler, err := ml.UnmarshalScaler(scalerData)
	if err != nil {
		return nil, false, err
	}

	return &ml.ModelSet{Anomaly: anomaly, Classifier: classifier, Scaler: scaler}, true, nil
}

// train fits a new model generation from synthetic data, persists its
// artifacts, and swaps it in.
func (s *Service) train() error {
	start := time.Now()
	s.logger.Info("training fraud models", "samples", s.cfg.TrainingSamples, "trees", s.cfg.Trees)

	rng := rand.New(rand.NewSource(s.cfg.Seed))
	ds := ml.GenerateSyntheticData(s.cfg.TrainingSamples, rng)

	set, err := ml.Train(ds, s.cfg.Trees, s.cfg.Seed)
	if err != nil {
		return err
	}

	if err := s.persistModels(set); err != nil {
		// A failed save costs a retrain on next startup but the fitted
		// models are still usable now.
		s.logger.Warn("failed to persist model artifacts", "error", err)
	}

	s.swapModels(set)
	s.logger.Info("fraud models trained", "duration", time.Since(start))
	return nil
}

func (s *Service) persistModels(set *ml.ModelSet) error {
	anomalyData, err := set.Anomaly.Marshal()
	if err != nil {
		return err
	}
	classifierData, err := set.Classifier.Marshal()
	if err != nil {
		return err
	}
	scalerData, err := set.Scaler.Marshal()
	if err != nil {
		return err
	}

	if err := s.artifacts.Save(domain.ArtifactAnomalyModel, anomalyData); err != nil {
		return err
	}
	if err := s.artifacts.Save(domain.ArtifactClassifier, classifierData); err != nil {
		return err
	}
	return s.artifacts.Save(domain.ArtifactScaler, scalerData)
}

func (s *Service) swapModels(set *ml.ModelSet) {
	now := time.Now().UTC()
	s.models.Store(set)
	s.trainedAt.Store(&now)
}

// Analyze scores a transaction. It never fails: any internal error is
// recovered and replaced by a conservative medium-risk fallback
// assessment rather than propagated to the caller.
func (s *Service) Analyze(ctx context.Context, tx *domain.TransactionInput) *domain.FraudAssessment {
	assessment, err := s.analyze(ctx, tx)
	if err != nil {
		s.logger.Error("fraud analysis failed",
			"transaction_id", tx.TransactionID,
			"user_id", tx.UserID,
			"error", err)
		assessment = fallbackAssessment(tx)
	}

	s.recordAssessment(ctx, assessment)
	return assessment
}

func (s *Service) analyze(ctx context.Context, tx *domain.TransactionInput) (a *domain.FraudAssessment, err error) {
	defer func() {
		if r := recover(); r != nil {
			a, err = nil, fmt.Errorf("panic during analysis: %v", r)
		}
	}()

	models := s.models.Load()
	if models == nil {
		return nil, errors.New("models not initialized")
	}

	features := s.extractor.Extract(ctx, tx, time.Now())

	scaled, err := models.Scaler.Transform(features)
	if err != nil {
		return nil, err
	}

	raw := models.Anomaly.DecisionFunction(scaled)
	anomalyScore := normalizeAnomaly(raw, models.Anomaly.Offset)
	classifierProb := models.Classifier.PredictProba(scaled)

	combined := FuseScores(anomalyScore, classifierProb)
	level := TierFor(combined)

	return &domain.FraudAssessment{
		ID:                    uuid.NewString(),
		TransactionID:         tx.TransactionID,
		UserID:                tx.UserID,
		FraudScore:            combined,
		RiskLevel:             level,
		Reasons:               Reasons(features, anomalyScore, classifierProb),
		Recommendation:        Recommendation(level),
		Confidence:            math.Max(anomalyScore, classifierProb),
		AnomalyScore:          anomalyScore,
		ClassifierProbability: classifierProb,
		Amount:                tx.Amount,
		Currency:              tx.Currency,
		Timestamp:             time.Now().UTC(),
	}, nil
}

// normalizeAnomaly maps the model's signed decision-function output
// into [0,1] using the fitted offset.
func normalizeAnomaly(raw, offset float64) float64 {
	if offset == 0 {
		return 0
	}
	v := (raw - offset) / math.Abs(offset)
	return math.Max(0, math.Min(1, v))
}

// recordAssessment runs the post-scoring side effects: result cache,
// audit persistence, counter bump, and event publication. All are
// best-effort; a failed side effect never fails the analysis.
func (s *Service) recordAssessment(ctx context.Context, a *domain.FraudAssessment) {
	if a.TransactionID != "" {
		if data, err := json.Marshal(a); err == nil {
			if err := s.cache.Set(ctx, domain.KeyFraudAnalysis+a.TransactionID, data, domain.AnalysisTTL); err != nil {
				s.logger.Warn("failed to cache analysis", "transaction_id", a.TransactionID, "error", err)
			}
		}
	}

	if _, err := s.cache.IncrementCounter(ctx, domain.KeyUserTransactions+a.UserID, 24*time.Hour); err != nil {
		s.logger.Warn("failed to bump transaction counter", "user_id", a.UserID, "error", err)
	}

	// The cached profile is stale once a new assessment lands.
	if err := s.cache.Delete(ctx, domain.KeyRiskProfile+a.UserID); err != nil {
		s.logger.Warn("failed to invalidate risk profile", "user_id", a.UserID, "error", err)
	}

	if err := s.repo.SaveAssessment(ctx, a); err != nil {
		s.logger.Warn("failed to persist assessment", "assessment_id", a.ID, "error", err)
	}

	if data, err := json.Marshal(a); err == nil {
		if err := s.bus.Publish(ctx, domain.TopicFraudAssessed, data); err != nil {
			s.logger.Warn("failed to publish assessment", "assessment_id", a.ID, "error", err)
		}
	}
}

func fallbackAssessment(tx *domain.TransactionInput) *domain.FraudAssessment {
	return &domain.FraudAssessment{
		ID:             uuid.NewString(),
		TransactionID:  tx.TransactionID,
		UserID:         tx.UserID,
		FraudScore:     0.5,
		RiskLevel:      domain.RiskMedium,
		Reasons:        []string{"Unable to analyze transaction"},
		Recommendation: "Manual review recommended",
		Confidence:     0.0,
		Amount:         tx.Amount,
		Currency:       tx.Currency,
		Timestamp:      time.Now().UTC(),
		Degraded:       true,
	}
}

// BatchAnalyze scores a batch of transactions in submission order.
func (s *Service) BatchAnalyze(ctx context.Context, txs []*domain.TransactionInput) []*domain.FraudAssessment {
	results := make([]*domain.FraudAssessment, len(txs))
	for i, tx := range txs {
		results[i] = s.Analyze(ctx, tx)
	}
	return results
}

// GetAnalysis returns a previously computed assessment, from the result
// cache when fresh and otherwise from the audit log.
func (s *Service) GetAnalysis(ctx context.Context, transactionID string) (*domain.FraudAssessment, error) {
	if data, err := s.cache.Get(ctx, domain.KeyFraudAnalysis+transactionID); err == nil && data != nil {
		var a domain.FraudAssessment
		if err := json.Unmarshal(data, &a); err == nil {
			return &a, nil
		}
	}

	return s.repo.GetAssessmentByTransaction(ctx, transactionID)
}

// RiskProfile returns the user's standing risk profile, building and
// caching a fresh one when none is cached.
func (s *Service) RiskProfile(ctx context.Context, userID string) (*domain.RiskProfile, error) {
	key := domain.KeyRiskProfile + userID

	if data, err := s.cache.Get(ctx, key); err == nil && data != nil {
		var p domain.RiskProfile
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
	}

	profile := &domain.RiskProfile{
		UserID:      userID,
		OverallRisk: domain.RiskMedium,
		RiskFactors: []string{},
		LastUpdated: time.Now().UTC(),
	}

	count, err := s.repo.CountAssessmentsByUser(ctx, userID, time.Now().UTC().Add(-30*24*time.Hour))
	if err != nil {
		s.logger.Warn("failed to count assessments", "user_id", userID, "error", err)
	} else {
		profile.TransactionCount = count
	}

	recent, err := s.repo.ListAssessmentsByUser(ctx, userID, 20)
	if err != nil {
		s.logger.Warn("failed to list assessments", "user_id", userID, "error", err)
	} else if len(recent) > 0 {
		profile.OverallRisk = recent[0].RiskLevel
		profile.RiskFactors = recent[0].Reasons

		var total float64
		for _, a := range recent {
			total += a.Amount
		}
		profile.AvgAmount = total / float64(len(recent))
	}

	if data, err := json.Marshal(profile); err == nil {
		if err := s.cache.Set(ctx, key, data, domain.RiskProfileTTL); err != nil {
			s.logger.Warn("failed to cache risk profile", "user_id", userID, "error", err)
		}
	}

	return profile, nil
}

// Retrain fits and swaps in a fresh model generation. Only one retrain
// may run at a time.
func (s *Service) Retrain(ctx context.Context) error {
	if !s.training.CompareAndSwap(false, true) {
		return ErrTrainingInProgress
	}
	defer s.training.Store(false)

	return s.train()
}

// Status reports model readiness for the management endpoints.
func (s *Service) Status() ModelStatus {
	status := ModelStatus{
		Ready:           s.models.Load() != nil,
		Training:        s.training.Load(),
		TrainingSamples: s.cfg.TrainingSamples,
		Trees:           s.cfg.Trees,
	}
	if t := s.trainedAt.Load(); t != nil {
		status.TrainedAt = *t
	}
	return status
}

package ml

import (
	"fmt"
	"math/rand"
)

// ModelSet bundles the three fitted artifacts that make up one trained
// model generation: the anomaly detector, the classifier, and the
// scaler both models' inputs pass through.
type ModelSet struct {
	Anomaly    *IsolationForest
	Classifier *RandomForest
	Scaler     *StandardScaler
}

// Train fits a complete model set from scratch: the scaler is fit on
// the raw samples, both models are trained on the scaled samples, and
// the same scaler is applied at inference. Deterministic for a given
// seed.
func Train(ds *Dataset, nTrees int, seed int64) (*ModelSet, error) {
	rng := rand.New(rand.NewSource(seed))

	scaler := &StandardScaler{}
	if err := scaler.Fit(ds.Samples); err != nil {
		return nil, err
	}

	scaled, err := scaler.TransformAll(ds.Samples)
	if err != nil {
		return nil, fmt.Errorf("ml: failed to scale training data: %w", err)
	}

	anomaly, err := FitIsolationForest(scaled, nTrees, rng)
	if err != nil {
		return nil, err
	}

	classifier, err := FitRandomForest(scaled, ds.Labels, nTrees, rng)
	if err != nil {
		return nil, err
	}

	return &ModelSet{
		Anomaly:    anomaly,
		Classifier: classifier,
		Scaler:     scaler,
	}, nil
}

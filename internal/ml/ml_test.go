package ml

import (
	"math"
	"math/rand"
	"testing"
)

func TestStandardScaler(t *testing.T) {
	t.Run("FitAndTransform", func(t *testing.T) {
		samples := [][]float64{
			{0, 10},
			{2, 20},
			{4, 30},
		}

		scaler := &StandardScaler{}
		if err := scaler.Fit(samples); err != nil {
			t.Fatalf("failed to fit: %v", err)
		}

		if scaler.Mean[0] != 2 || scaler.Mean[1] != 20 {
			t.Errorf("unexpected means: %v", scaler.Mean)
		}

		out, err := scaler.Transform([]float64{2, 20})
		if err != nil {
			t.Fatalf("failed to transform: %v", err)
		}
		if out[0] != 0 || out[1] != 0 {
			t.Errorf("mean input should transform to zero, got %v", out)
		}
	})

	t.Run("ConstantColumn", func(t *testing.T) {
		samples := [][]float64{{5, 1}, {5, 2}, {5, 3}}
		scaler := &StandardScaler{}
		if err := scaler.Fit(samples); err != nil {
			t.Fatalf("failed to fit: %v", err)
		}

		out, err := scaler.Transform([]float64{5, 2})
		if err != nil {
			t.Fatalf("failed to transform: %v", err)
		}
		if math.IsNaN(out[0]) || math.IsInf(out[0], 0) {
			t.Errorf("constant column produced %v", out[0])
		}
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		scaler := &StandardScaler{Mean: []float64{0, 0}, Std: []float64{1, 1}}
		if _, err := scaler.Transform([]float64{1}); err == nil {
			t.Error("expected dimension mismatch error")
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		scaler := &StandardScaler{Mean: []float64{1, 2}, Std: []float64{3, 4}}
		data, err := scaler.Marshal()
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		got, err := UnmarshalScaler(data)
		if err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if got.Mean[1] != 2 || got.Std[1] != 4 {
			t.Errorf("round trip mismatch: %+v", got)
		}
	})
}

// clusteredSamples returns a tight cluster of inliers for outlier
// detection tests.
func clusteredSamples(n int, rng *rand.Rand) [][]float64 {
	samples := make([][]float64, n)
	for i := range samples {
		samples[i] = []float64{rng.NormFloat64() * 0.1, rng.NormFloat64() * 0.1}
	}
	return samples
}

func TestIsolationForest(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	samples := clusteredSamples(500, rng)

	forest, err := FitIsolationForest(samples, 50, rng)
	if err != nil {
		t.Fatalf("failed to fit: %v", err)
	}

	t.Run("OutlierScoresBelowInlier", func(t *testing.T) {
		inlier := forest.DecisionFunction([]float64{0, 0})
		outlier := forest.DecisionFunction([]float64{10, 10})
		if outlier >= inlier {
			t.Errorf("outlier decision %f should be below inlier decision %f", outlier, inlier)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		a := forest.DecisionFunction([]float64{0.3, -0.2})
		b := forest.DecisionFunction([]float64{0.3, -0.2})
		if a != b {
			t.Errorf("repeated scoring differs: %f vs %f", a, b)
		}
	})

	t.Run("OffsetIsNegative", func(t *testing.T) {
		// Scores live in (-1, 0), so the fitted percentile must too.
		if forest.Offset >= 0 {
			t.Errorf("expected negative offset, got %f", forest.Offset)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		data, err := forest.Marshal()
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		restored, err := UnmarshalIsolationForest(data)
		if err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		x := []float64{0.5, 0.5}
		if restored.DecisionFunction(x) != forest.DecisionFunction(x) {
			t.Error("restored forest scores differently")
		}
	})
}

func TestRandomForest(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	// Separable data: label 1 iff first feature > 0.5.
	samples := make([][]float64, 400)
	labels := make([]int, 400)
	for i := range samples {
		x := rng.Float64()
		samples[i] = []float64{x, rng.Float64()}
		if x > 0.5 {
			labels[i] = 1
		}
	}

	forest, err := FitRandomForest(samples, labels, 30, rng)
	if err != nil {
		t.Fatalf("failed to fit: %v", err)
	}

	t.Run("SeparatesClasses", func(t *testing.T) {
		low := forest.PredictProba([]float64{0.1, 0.5})
		high := forest.PredictProba([]float64{0.9, 0.5})
		if low >= 0.5 {
			t.Errorf("expected low probability for negative region, got %f", low)
		}
		if high <= 0.5 {
			t.Errorf("expected high probability for positive region, got %f", high)
		}
	})

	t.Run("ProbabilityBounds", func(t *testing.T) {
		for _, x := range [][]float64{{0, 0}, {1, 1}, {0.5, 0.5}, {-5, 5}} {
			p := forest.PredictProba(x)
			if p < 0 || p > 1 {
				t.Errorf("probability out of range for %v: %f", x, p)
			}
		}
	})

	t.Run("SingleClassRejected", func(t *testing.T) {
		uniform := make([]int, len(samples))
		if _, err := FitRandomForest(samples, uniform, 10, rng); err == nil {
			t.Error("expected error for single-class labels")
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		data, err := forest.Marshal()
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}
		restored, err := UnmarshalRandomForest(data)
		if err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		x := []float64{0.7, 0.3}
		if restored.PredictProba(x) != forest.PredictProba(x) {
			t.Error("restored forest predicts differently")
		}
	})
}

func TestGenerateSyntheticData(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ds := GenerateSyntheticData(5000, rng)

	if len(ds.Samples) != 5000 || len(ds.Labels) != 5000 {
		t.Fatalf("expected 5000 samples, got %d/%d", len(ds.Samples), len(ds.Labels))
	}

	t.Run("VectorShape", func(t *testing.T) {
		for _, s := range ds.Samples {
			if len(s) != 8 {
				t.Fatalf("expected 8 features, got %d", len(s))
			}
		}
	})

	t.Run("BothClassesPresent", func(t *testing.T) {
		var fraud int
		for _, y := range ds.Labels {
			fraud += y
		}
		if fraud == 0 || fraud == len(ds.Labels) {
			t.Fatalf("degenerate label distribution: %d fraud of %d", fraud, len(ds.Labels))
		}
		// Base rate alone guarantees at least a few percent fraud.
		rate := float64(fraud) / float64(len(ds.Labels))
		if rate < 0.03 || rate > 0.5 {
			t.Errorf("implausible fraud rate %f", rate)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		a := GenerateSyntheticData(100, rand.New(rand.NewSource(7)))
		b := GenerateSyntheticData(100, rand.New(rand.NewSource(7)))
		for i := range a.Samples {
			if a.Labels[i] != b.Labels[i] {
				t.Fatalf("labels diverge at %d", i)
			}
			for j := range a.Samples[i] {
				if a.Samples[i][j] != b.Samples[i][j] {
					t.Fatalf("samples diverge at %d/%d", i, j)
				}
			}
		}
	})
}

func TestTrain(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ds := GenerateSyntheticData(2000, rng)

	set, err := Train(ds, 20, 42)
	if err != nil {
		t.Fatalf("failed to train: %v", err)
	}

	if set.Anomaly == nil || set.Classifier == nil || set.Scaler == nil {
		t.Fatal("incomplete model set")
	}

	// Inference path: scale then score, same as the service does.
	scaled, err := set.Scaler.Transform(ds.Samples[0])
	if err != nil {
		t.Fatalf("failed to scale: %v", err)
	}
	p := set.Classifier.PredictProba(scaled)
	if p < 0 || p > 1 {
		t.Errorf("probability out of range: %f", p)
	}
}

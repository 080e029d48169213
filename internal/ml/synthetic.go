package ml

import (
	"math"
	"math/rand"
)

// Dataset is a labeled training set. Labels are 0 (legitimate) or
// 1 (fraud).
type Dataset struct {
	Samples [][]float64
	Labels  []int
}

// GenerateSyntheticData produces n heuristic-labeled samples for the
// bootstrap training path. Each sample is an 8-dimensional vector:
// amount, hour, weekday, location risk, device risk, frequency risk,
// and two uniform filler features. Labels are assigned by cumulative
// probabilistic rules over the raw draws, so the dataset is noisy by
// construction. This is a stand-in for real labeled fraud data and a
// documented limitation, not a modeling target.
func GenerateSyntheticData(n int, rng *rand.Rand) *Dataset {
	ds := &Dataset{
		Samples: make([][]float64, n),
		Labels:  make([]int, n),
	}

	for i := 0; i < n; i++ {
		amount := math.Exp(rng.NormFloat64() + 3)
		hour := float64(rng.Intn(24))
		weekday := float64(rng.Intn(7))
		locationRisk := rng.Float64()
		deviceRisk := rng.Float64()
		frequencyRisk := rng.Float64()

		ds.Samples[i] = []float64{
			amount,
			hour,
			weekday,
			locationRisk,
			deviceRisk,
			frequencyRisk,
			rng.Float64(),
			rng.Float64(),
		}

		fraud := false
		if amount > 10000 {
			fraud = rng.Float64() < 0.3
		}
		if hour < 6 || hour > 22 {
			fraud = fraud || rng.Float64() < 0.2
		}
		if locationRisk > 0.8 {
			fraud = fraud || rng.Float64() < 0.4
		}
		if deviceRisk > 0.8 {
			fraud = fraud || rng.Float64() < 0.3
		}
		if rng.Float64() < 0.05 {
			fraud = true
		}

		if fraud {
			ds.Labels[i] = 1
		}
	}

	return ds
}

// Benchmark tool for evaluating the Kestrel fraud models offline.
//
// Usage:
//   go run cmd/benchmark/main.go -samples 10000 -trees 100 -threshold 0.6
//
// This tool:
//   1. Generates a labeled synthetic transaction dataset
//   2. Trains the anomaly and classifier models on a split of it
//   3. Scores the holdout split with the fused pipeline score
//   4. Calculates precision, recall, F1-score, and a confusion matrix
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/opensource-finance/kestrel/internal/ml"
)

// Metrics tracks evaluation results on the holdout split.
type Metrics struct {
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int

	TotalProcessed int
	TotalFraud     int
	TotalNonFraud  int

	ScoringTime time.Duration
}

func (m *Metrics) precision() float64 {
	if m.TruePositives+m.FalsePositives == 0 {
		return 0
	}
	return float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
}

func (m *Metrics) recall() float64 {
	if m.TruePositives+m.FalseNegatives == 0 {
		return 0
	}
	return float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
}

func (m *Metrics) f1() float64 {
	p, r := m.precision(), m.recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func (m *Metrics) accuracy() float64 {
	if m.TotalProcessed == 0 {
		return 0
	}
	return float64(m.TruePositives+m.TrueNegatives) / float64(m.TotalProcessed)
}

const (
	anomalyWeight    = 0.4
	classifierWeight = 0.6
)

func main() {
	samples := flag.Int("samples", 10000, "Synthetic dataset size")
	trees := flag.Int("trees", 100, "Ensemble size for both models")
	seed := flag.Int64("seed", 42, "Random seed for data generation and training")
	threshold := flag.Float64("threshold", 0.6, "Fused score above which a transaction is flagged")
	holdout := flag.Float64("holdout", 0.2, "Fraction of the dataset held out for evaluation")
	flag.Parse()

	if *holdout <= 0 || *holdout >= 1 {
		fmt.Println("holdout must be between 0 and 1 (exclusive)")
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          KESTREL BENCHMARK - Fraud Model Evaluation           ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nSamples:    %d\n", *samples)
	fmt.Printf("Trees:      %d\n", *trees)
	fmt.Printf("Seed:       %d\n", *seed)
	fmt.Printf("Threshold:  %.2f\n", *threshold)
	fmt.Printf("Holdout:    %.2f\n", *holdout)
	fmt.Println()

	rng := rand.New(rand.NewSource(*seed))
	ds := ml.GenerateSyntheticData(*samples, rng)

	// Split into train and holdout. The generator draws i.i.d. samples,
	// so a tail split is as good as a shuffled one.
	split := int(float64(len(ds.Samples)) * (1 - *holdout))
	train := &ml.Dataset{Samples: ds.Samples[:split], Labels: ds.Labels[:split]}
	eval := &ml.Dataset{Samples: ds.Samples[split:], Labels: ds.Labels[split:]}

	fmt.Printf("Training on %d samples...\n", len(train.Samples))
	start := time.Now()
	set, err := ml.Train(train, *trees, *seed)
	if err != nil {
		fmt.Printf("ERROR: training failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Training completed in %s\n\n", time.Since(start).Round(time.Millisecond))

	metrics := evaluate(set, eval, *threshold)
	printReport(metrics, *threshold)
}

func evaluate(set *ml.ModelSet, ds *ml.Dataset, threshold float64) *Metrics {
	m := &Metrics{}
	start := time.Now()

	for i, sample := range ds.Samples {
		scaled, err := set.Scaler.Transform(sample)
		if err != nil {
			fmt.Printf("ERROR: scaling failed: %v\n", err)
			os.Exit(1)
		}

		anomaly := normalize(set.Anomaly.DecisionFunction(scaled), set.Anomaly.Offset)
		proba := set.Classifier.PredictProba(scaled)
		fused := anomalyWeight*anomaly + classifierWeight*proba

		flagged := fused >= threshold
		isFraud := ds.Labels[i] == 1

		m.TotalProcessed++
		if isFraud {
			m.TotalFraud++
			if flagged {
				m.TruePositives++
			} else {
				m.FalseNegatives++
			}
		} else {
			m.TotalNonFraud++
			if flagged {
				m.FalsePositives++
			} else {
				m.TrueNegatives++
			}
		}
	}

	m.ScoringTime = time.Since(start)
	return m
}

// normalize maps a raw anomaly decision value into [0, 1] relative to
// the model's score offset.
func normalize(decision, offset float64) float64 {
	if offset == 0 {
		return 0
	}
	v := (decision - offset) / abs(offset)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func printReport(m *Metrics, threshold float64) {
	perTx := time.Duration(0)
	if m.TotalProcessed > 0 {
		perTx = m.ScoringTime / time.Duration(m.TotalProcessed)
	}

	fmt.Println("═══════════════════════════════════════════")
	fmt.Println("  RESULTS")
	fmt.Println("═══════════════════════════════════════════")
	fmt.Printf("  Evaluated:       %d (%d fraud, %d legitimate)\n", m.TotalProcessed, m.TotalFraud, m.TotalNonFraud)
	fmt.Printf("  Scoring time:    %s (%s/tx)\n", m.ScoringTime.Round(time.Millisecond), perTx.Round(time.Microsecond))
	fmt.Printf("  Threshold:       %.2f\n", threshold)
	fmt.Println()
	fmt.Println("  Confusion matrix:")
	fmt.Printf("                    flagged   not flagged\n")
	fmt.Printf("    fraud           %7d   %11d\n", m.TruePositives, m.FalseNegatives)
	fmt.Printf("    legitimate      %7d   %11d\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println()
	fmt.Printf("  Precision:       %.4f\n", m.precision())
	fmt.Printf("  Recall:          %.4f\n", m.recall())
	fmt.Printf("  F1-score:        %.4f\n", m.f1())
	fmt.Printf("  Accuracy:        %.4f\n", m.accuracy())
	fmt.Println("═══════════════════════════════════════════")
}

package ml

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	defaultSubsampleSize = 256

	// Fraction of training samples treated as outliers when fitting
	// the decision offset.
	contamination = 0.1
)

// isoNode is a single node in an isolation tree. Internal nodes carry
// a feature index and split value; external nodes carry the number of
// samples that terminated there.
type isoNode struct {
	Feature int
	Split   float64
	Left    *isoNode
	Right   *isoNode
	Size    int
}

// IsolationForest is an unsupervised novelty detector. An observation
// that isolates in few random splits is anomalous; its short average
// path length across trees yields a high anomaly score.
type IsolationForest struct {
	Trees      []*isoNode
	SampleSize int
	Offset     float64
}

// FitIsolationForest trains a forest of nTrees isolation trees on the
// given samples and fits the decision offset at the contamination
// percentile of the training scores.
func FitIsolationForest(samples [][]float64, nTrees int, rng *rand.Rand) (*IsolationForest, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("ml: cannot fit isolation forest on empty dataset")
	}
	if nTrees <= 0 {
		nTrees = 100
	}

	sampleSize := defaultSubsampleSize
	if len(samples) < sampleSize {
		sampleSize = len(samples)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize))))

	f := &IsolationForest{
		Trees:      make([]*isoNode, nTrees),
		SampleSize: sampleSize,
	}

	idx := make([]int, len(samples))
	for i := range idx {
		idx[i] = i
	}

	sub := make([][]float64, sampleSize)
	for t := 0; t < nTrees; t++ {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		for i := 0; i < sampleSize; i++ {
			sub[i] = samples[idx[i]]
		}
		f.Trees[t] = buildIsoTree(sub, 0, maxDepth, rng)
	}

	// Fit the offset so that the contamination fraction of training
	// samples falls below the decision boundary.
	scores := make([]float64, len(samples))
	for i, s := range samples {
		scores[i] = f.scoreSample(s)
	}
	sort.Float64s(scores)
	f.Offset = stat.Quantile(contamination, stat.Empirical, scores, nil)

	return f, nil
}

func buildIsoTree(samples [][]float64, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if depth >= maxDepth || len(samples) <= 1 {
		return &isoNode{Feature: -1, Size: len(samples)}
	}

	dims := len(samples[0])
	feature := rng.Intn(dims)

	lo, hi := samples[0][feature], samples[0][feature]
	for _, s := range samples[1:] {
		if s[feature] < lo {
			lo = s[feature]
		}
		if s[feature] > hi {
			hi = s[feature]
		}
	}
	if lo == hi {
		return &isoNode{Feature: -1, Size: len(samples)}
	}

	split := lo + rng.Float64()*(hi-lo)

	var left, right [][]float64
	for _, s := range samples {
		if s[feature] < split {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	return &isoNode{
		Feature: feature,
		Split:   split,
		Left:    buildIsoTree(left, depth+1, maxDepth, rng),
		Right:   buildIsoTree(right, depth+1, maxDepth, rng),
	}
}

// DecisionFunction returns the signed distance from the fitted
// decision boundary. Negative values indicate outliers.
func (f *IsolationForest) DecisionFunction(features []float64) float64 {
	return f.scoreSample(features) - f.Offset
}

// scoreSample returns the negated anomaly score in (-1, 0): values
// near -1 are strong outliers, values near -0.5 are typical inliers.
func (f *IsolationForest) scoreSample(features []float64) float64 {
	var total float64
	for _, tree := range f.Trees {
		total += pathLength(tree, features, 0)
	}
	avg := total / float64(len(f.Trees))
	return -math.Pow(2, -avg/averagePathLength(f.SampleSize))
}

func pathLength(node *isoNode, features []float64, depth float64) float64 {
	if node.Feature < 0 {
		return depth + averagePathLength(node.Size)
	}
	if features[node.Feature] < node.Split {
		return pathLength(node.Left, features, depth+1)
	}
	return pathLength(node.Right, features, depth+1)
}

// averagePathLength is c(n), the expected path length of an
// unsuccessful BST search over n points.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649015329
	return 2*h - 2*float64(n-1)/float64(n)
}

// Marshal serializes the fitted forest for artifact storage.
func (f *IsolationForest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(f); err != nil {
		return nil, fmt.Errorf("ml: failed to encode isolation forest: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalIsolationForest restores a fitted forest from artifact bytes.
func UnmarshalIsolationForest(data []byte) (*IsolationForest, error) {
	var f IsolationForest
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&f); err != nil {
		return nil, fmt.Errorf("ml: failed to decode isolation forest: %w", err)
	}
	return &f, nil
}

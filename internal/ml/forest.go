package ml

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// treeNode is a single node in a classification tree. Leaf nodes carry
// the weighted fraud probability of the samples that reached them.
type treeNode struct {
	Feature int
	Split   float64
	Left    *treeNode
	Right   *treeNode
	Proba   float64
}

// RandomForest is a bagged ensemble of classification trees trained
// with balanced class weights to counter label imbalance in the
// heuristic training data.
type RandomForest struct {
	Trees []*treeNode
}

const (
	forestMinLeaf  = 2
	forestMaxDepth = 12
)

// FitRandomForest trains nTrees trees, each on a bootstrap sample with
// sqrt(d) feature subsampling per split.
func FitRandomForest(samples [][]float64, labels []int, nTrees int, rng *rand.Rand) (*RandomForest, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("ml: cannot fit random forest on empty dataset")
	}
	if len(samples) != len(labels) {
		return nil, fmt.Errorf("ml: samples and labels differ in length")
	}
	if nTrees <= 0 {
		nTrees = 100
	}

	// Balanced class weights: w_c = n / (2 * n_c).
	n := float64(len(labels))
	var nFraud float64
	for _, y := range labels {
		if y == 1 {
			nFraud++
		}
	}
	if nFraud == 0 || nFraud == n {
		return nil, fmt.Errorf("ml: training data contains a single class")
	}
	weights := [2]float64{n / (2 * (n - nFraud)), n / (2 * nFraud)}

	nFeatures := int(math.Ceil(math.Sqrt(float64(len(samples[0])))))

	rf := &RandomForest{Trees: make([]*treeNode, nTrees)}

	boot := make([]int, len(samples))
	for t := 0; t < nTrees; t++ {
		for i := range boot {
			boot[i] = rng.Intn(len(samples))
		}
		rf.Trees[t] = buildClassTree(samples, labels, boot, weights, nFeatures, 0, rng)
	}

	return rf, nil
}

func buildClassTree(samples [][]float64, labels []int, idx []int, weights [2]float64, nFeatures, depth int, rng *rand.Rand) *treeNode {
	var w0, w1 float64
	for _, i := range idx {
		if labels[i] == 1 {
			w1 += weights[1]
		} else {
			w0 += weights[0]
		}
	}

	proba := w1 / (w0 + w1)

	if depth >= forestMaxDepth || len(idx) < 2*forestMinLeaf || w0 == 0 || w1 == 0 {
		return &treeNode{Feature: -1, Proba: proba}
	}

	dims := len(samples[0])
	bestGini := math.Inf(1)
	bestFeature, bestSplit := -1, 0.0

	// Sample a random feature subset without replacement.
	perm := rng.Perm(dims)
	vals := make([]float64, 0, len(idx))
	for _, feature := range perm[:nFeatures] {
		vals = vals[:0]
		for _, i := range idx {
			vals = append(vals, samples[i][feature])
		}
		sort.Float64s(vals)

		for v := 1; v < len(vals); v++ {
			if vals[v] == vals[v-1] {
				continue
			}
			split := (vals[v] + vals[v-1]) / 2
			gini := weightedSplitGini(samples, labels, idx, weights, feature, split)
			if gini < bestGini {
				bestGini = gini
				bestFeature = feature
				bestSplit = split
			}
		}
	}

	if bestFeature < 0 {
		return &treeNode{Feature: -1, Proba: proba}
	}

	var left, right []int
	for _, i := range idx {
		if samples[i][bestFeature] < bestSplit {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < forestMinLeaf || len(right) < forestMinLeaf {
		return &treeNode{Feature: -1, Proba: proba}
	}

	return &treeNode{
		Feature: bestFeature,
		Split:   bestSplit,
		Left:    buildClassTree(samples, labels, left, weights, nFeatures, depth+1, rng),
		Right:   buildClassTree(samples, labels, right, weights, nFeatures, depth+1, rng),
	}
}

func weightedSplitGini(samples [][]float64, labels []int, idx []int, weights [2]float64, feature int, split float64) float64 {
	var l0, l1, r0, r1 float64
	for _, i := range idx {
		w := weights[labels[i]]
		if samples[i][feature] < split {
			if labels[i] == 1 {
				l1 += w
			} else {
				l0 += w
			}
		} else {
			if labels[i] == 1 {
				r1 += w
			} else {
				r0 += w
			}
		}
	}

	total := l0 + l1 + r0 + r1
	return (l0+l1)/total*gini(l0, l1) + (r0+r1)/total*gini(r0, r1)
}

func gini(w0, w1 float64) float64 {
	total := w0 + w1
	if total == 0 {
		return 0
	}
	p := w1 / total
	return 2 * p * (1 - p)
}

// PredictProba returns the probability that the observation belongs to
// the fraud class, averaged over all trees.
func (rf *RandomForest) PredictProba(features []float64) float64 {
	var total float64
	for _, tree := range rf.Trees {
		total += treeProba(tree, features)
	}
	return total / float64(len(rf.Trees))
}

func treeProba(node *treeNode, features []float64) float64 {
	for node.Feature >= 0 {
		if features[node.Feature] < node.Split {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Proba
}

// Marshal serializes the fitted forest for artifact storage.
func (rf *RandomForest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rf); err != nil {
		return nil, fmt.Errorf("ml: failed to encode random forest: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalRandomForest restores a fitted forest from artifact bytes.
func UnmarshalRandomForest(data []byte) (*RandomForest, error) {
	var rf RandomForest
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rf); err != nil {
		return nil, fmt.Errorf("ml: failed to decode random forest: %w", err)
	}
	return &rf, nil
}

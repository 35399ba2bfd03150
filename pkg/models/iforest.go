package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

const eulerGamma = 0.5772156649015329

// IsolationForest scores samples with an ensemble of fitted isolation trees.
//
// Scoring follows the usual isolation forest definition:
//
//	score_samples(x)     = -2^(-E[h(x)] / c(max_samples))
//	decision_function(x) = score_samples(x) - offset
//
// where h(x) is the depth of the leaf reached by x plus c(n) for the n
// training samples that ended up in that leaf, and c(n) is the average path
// length of an unsuccessful search in a binary search tree of n nodes.
// Samples with a negative decision value are anomalies.
type IsolationForest struct {
	trees      []isolationTree
	nFeatures  int
	maxSamples int
	offset     float64
	norm       float64
}

// isolationTree is one fitted tree in array form. Node 0 is the root; a node
// is a leaf when its left child is -1.
type isolationTree struct {
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	NNodeSamples  []int     `json:"n_node_samples"`

	// Features optionally maps the tree's feature indices to input columns
	// when the tree was fit on a column subset or permutation.
	Features []int `json:"features,omitempty"`
}

// forestFile is the JSON layout of an exported isolation forest.
type forestFile struct {
	NFeatures  int             `json:"n_features"`
	MaxSamples int             `json:"max_samples"`
	Offset     float64         `json:"offset"`
	Trees      []isolationTree `json:"trees"`
}

// LoadIsolationForest reads an exported isolation forest from path.
func LoadIsolationForest(path string) (*IsolationForest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read isolation forest: %w", err)
	}

	var f forestFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode isolation forest %q: %w", path, err)
	}

	forest, err := newIsolationForest(f)
	if err != nil {
		return nil, fmt.Errorf("isolation forest %q: %w", path, err)
	}
	return forest, nil
}

func newIsolationForest(f forestFile) (*IsolationForest, error) {
	if f.NFeatures <= 0 {
		return nil, errors.New("n_features must be > 0")
	}
	if f.MaxSamples <= 0 {
		return nil, errors.New("max_samples must be > 0")
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	if math.IsNaN(f.Offset) || math.IsInf(f.Offset, 0) {
		return nil, errors.New("offset is not finite")
	}

	for i := range f.Trees {
		if err := f.Trees[i].validate(f.NFeatures); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}

	return &IsolationForest{
		trees:      f.Trees,
		nFeatures:  f.NFeatures,
		maxSamples: f.MaxSamples,
		offset:     f.Offset,
		norm:       float64(len(f.Trees)) * averagePathLength(f.MaxSamples),
	}, nil
}

func (t *isolationTree) validate(nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("tree has no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.NNodeSamples) != n {
		return errors.New("node arrays have different lengths")
	}

	width := nFeatures
	if len(t.Features) > 0 {
		width = len(t.Features)
		for _, col := range t.Features {
			if col < 0 || col >= nFeatures {
				return fmt.Errorf("feature mapping %d out of range [0, %d)", col, nFeatures)
			}
		}
	}

	for node := 0; node < n; node++ {
		left, right := t.ChildrenLeft[node], t.ChildrenRight[node]
		if left == -1 {
			if right != -1 {
				return fmt.Errorf("node %d: leaf has a right child", node)
			}
			continue
		}
		// Children always follow their parent, which rules out cycles.
		if left <= node || left >= n || right <= node || right >= n {
			return fmt.Errorf("node %d: child index out of range", node)
		}
		if t.Feature[node] < 0 || t.Feature[node] >= width {
			return fmt.Errorf("node %d: feature %d out of range [0, %d)", node, t.Feature[node], width)
		}
	}
	return nil
}

func (f *IsolationForest) Name() string { return "iforest" }

// Width returns the number of input features.
func (f *IsolationForest) Width() int { return f.nFeatures }

// DecisionFunction implements Scorer.
func (f *IsolationForest) DecisionFunction(ctx context.Context, batch [][]float64) ([]float64, error) {
	scores, err := f.ScoreSamples(ctx, batch)
	if err != nil {
		return nil, err
	}
	for i := range scores {
		scores[i] -= f.offset
	}
	return scores, nil
}

// ScoreSamples returns the opposite of the anomaly score of each sample; the
// lower the value, the more abnormal the sample.
func (f *IsolationForest) ScoreSamples(ctx context.Context, batch [][]float64) ([]float64, error) {
	if err := checkBatch(batch, f.nFeatures); err != nil {
		return nil, err
	}

	scores := make([]float64, len(batch))
	for i, x := range batch {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		depth := 0.0
		for t := range f.trees {
			depth += f.trees[t].pathLength(x)
		}
		scores[i] = -math.Pow(2, -depth/f.norm)
	}
	return scores, nil
}

func (t *isolationTree) pathLength(x []float64) float64 {
	node, depth := 0, 0
	for t.ChildrenLeft[node] != -1 {
		col := t.Feature[node]
		if len(t.Features) > 0 {
			col = t.Features[col]
		}
		if x[col] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
		depth++
	}
	return float64(depth) + averagePathLength(t.NNodeSamples[node])
}

// averagePathLength is c(n), the average path length of an unsuccessful
// binary search tree lookup among n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}

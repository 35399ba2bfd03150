package models

import (
	"context"
	"math"
	"strings"
	"testing"
)

// stumpForest has a single tree splitting feature 0 at 0.5. The left leaf
// isolates one training sample, the right leaf holds three.
const stumpForest = `{
  "n_features": 2,
  "max_samples": 4,
  "offset": -0.5,
  "trees": [{
    "children_left":  [1, -1, -1],
    "children_right": [2, -1, -1],
    "feature":        [0, -2, -2],
    "threshold":      [0.5, -2, -2],
    "n_node_samples": [4, 1, 3]
  }]
}`

func TestAveragePathLength(t *testing.T) {
	tests := []struct {
		n    int
		want float64
	}{
		{n: 0, want: 0},
		{n: 1, want: 0},
		{n: 2, want: 1},
		{n: 4, want: 1.8516},
		{n: 256, want: 10.2448},
	}

	for _, tt := range tests {
		if got := averagePathLength(tt.n); math.Abs(got-tt.want) > 1e-3 {
			t.Errorf("averagePathLength(%d) = %.4f, want %.4f", tt.n, got, tt.want)
		}
	}
}

func TestIsolationForest_DecisionFunction(t *testing.T) {
	forest, err := LoadIsolationForest(writeFile(t, "forest.json", stumpForest))
	if err != nil {
		t.Fatalf("LoadIsolationForest() error = %v", err)
	}
	if forest.Name() != "iforest" || forest.Width() != 2 {
		t.Errorf("Name() = %q, Width() = %d", forest.Name(), forest.Width())
	}

	// Ties go left: x[0] == threshold lands in the isolated leaf.
	batch := [][]float64{{0.5, 9}, {3, 9}}
	scores, err := forest.DecisionFunction(context.Background(), batch)
	if err != nil {
		t.Fatalf("DecisionFunction() error = %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("len(scores) = %d, want 2", len(scores))
	}

	norm := averagePathLength(4)
	wantLeft := -math.Pow(2, -1/norm) + 0.5
	wantRight := -math.Pow(2, -(1+averagePathLength(3))/norm) + 0.5

	if math.Abs(scores[0]-wantLeft) > 1e-12 {
		t.Errorf("scores[0] = %v, want %v", scores[0], wantLeft)
	}
	if math.Abs(scores[1]-wantRight) > 1e-12 {
		t.Errorf("scores[1] = %v, want %v", scores[1], wantRight)
	}
	if scores[0] >= scores[1] {
		t.Errorf("isolated sample should score lower: %v >= %v", scores[0], scores[1])
	}
}

func TestIsolationForest_FeatureMapping(t *testing.T) {
	content := strings.Replace(stumpForest, `"n_node_samples": [4, 1, 3]`,
		`"n_node_samples": [4, 1, 3], "features": [1]`, 1)
	forest, err := LoadIsolationForest(writeFile(t, "forest.json", content))
	if err != nil {
		t.Fatalf("LoadIsolationForest() error = %v", err)
	}

	// The split now reads input column 1.
	scores, err := forest.ScoreSamples(context.Background(), [][]float64{{9, 0}, {0, 9}})
	if err != nil {
		t.Fatalf("ScoreSamples() error = %v", err)
	}
	if scores[0] >= scores[1] {
		t.Errorf("expected mapped split on column 1: %v >= %v", scores[0], scores[1])
	}
}

func TestIsolationForest_Empty(t *testing.T) {
	forest, err := LoadIsolationForest(writeFile(t, "forest.json", stumpForest))
	if err != nil {
		t.Fatalf("LoadIsolationForest() error = %v", err)
	}
	scores, err := forest.DecisionFunction(context.Background(), nil)
	if err != nil {
		t.Fatalf("DecisionFunction() error = %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("len(scores) = %d, want 0", len(scores))
	}
}

func TestIsolationForest_WidthMismatch(t *testing.T) {
	forest, err := LoadIsolationForest(writeFile(t, "forest.json", stumpForest))
	if err != nil {
		t.Fatalf("LoadIsolationForest() error = %v", err)
	}
	if _, err := forest.DecisionFunction(context.Background(), [][]float64{{1, 2, 3}}); err == nil {
		t.Error("expected error for wrong width")
	}
}

func TestIsolationForest_CanceledContext(t *testing.T) {
	forest, err := LoadIsolationForest(writeFile(t, "forest.json", stumpForest))
	if err != nil {
		t.Fatalf("LoadIsolationForest() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := forest.DecisionFunction(ctx, [][]float64{{1, 2}}); err == nil {
		t.Error("expected context error")
	}
}

func TestLoadIsolationForest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no trees",
			content: `{"n_features":2,"max_samples":4,"offset":-0.5,"trees":[]}`,
			wantErr: "no trees",
		},
		{
			name:    "zero features",
			content: `{"n_features":0,"max_samples":4,"trees":[]}`,
			wantErr: "n_features",
		},
		{
			name:    "zero max samples",
			content: `{"n_features":2,"max_samples":0,"trees":[]}`,
			wantErr: "max_samples",
		},
		{
			name:    "length mismatch",
			content: `{"n_features":2,"max_samples":4,"trees":[{"children_left":[-1],"children_right":[-1,-1],"feature":[-2],"threshold":[-2],"n_node_samples":[4]}]}`,
			wantErr: "different lengths",
		},
		{
			name:    "child out of range",
			content: `{"n_features":2,"max_samples":4,"trees":[{"children_left":[1,-1],"children_right":[5,-1],"feature":[0,-2],"threshold":[0,-2],"n_node_samples":[4,1]}]}`,
			wantErr: "child index out of range",
		},
		{
			name:    "cycle",
			content: `{"n_features":2,"max_samples":4,"trees":[{"children_left":[1,0],"children_right":[1,0],"feature":[0,0],"threshold":[0,0],"n_node_samples":[4,1]}]}`,
			wantErr: "child index out of range",
		},
		{
			name:    "feature out of range",
			content: strings.Replace(stumpForest, `"feature":        [0, -2, -2]`, `"feature":        [2, -2, -2]`, 1),
			wantErr: "feature 2 out of range",
		},
		{
			name:    "bad json",
			content: `{"trees":`,
			wantErr: "decode isolation forest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadIsolationForest(writeFile(t, "forest.json", tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

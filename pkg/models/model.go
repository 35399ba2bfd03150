// Package models provides the scaler and scorer capabilities consumed by the
// anomaly detector.
//
// Both are fit elsewhere and loaded once at startup; after loading they are
// immutable and safe for concurrent read-only use. Available implementations:
//   - StandardScaler, MinMaxScaler, IdentityScaler: loaded from a JSON document
//   - IsolationForest: fitted trees exported to JSON
//   - BYOMScorer: delegates scoring to an external HTTP service
package models

import (
	"context"
	"fmt"
)

// Scaler maps a batch of feature vectors to normalized vectors of the same shape.
type Scaler interface {
	// Name returns the scaler identifier, e.g. "standard".
	Name() string

	// Transform returns a new batch; the input is never modified.
	Transform(ctx context.Context, batch [][]float64) ([][]float64, error)
}

// Scorer maps a batch of normalized vectors to one real-valued anomaly score
// per vector. A negative score denotes an anomaly.
type Scorer interface {
	// Name returns the scorer identifier, e.g. "iforest".
	Name() string

	// DecisionFunction returns len(batch) scores in input order.
	DecisionFunction(ctx context.Context, batch [][]float64) ([]float64, error)
}

// checkBatch verifies every vector in batch has exactly width elements.
func checkBatch(batch [][]float64, width int) error {
	for i, v := range batch {
		if len(v) != width {
			return fmt.Errorf("X has %d features, but is expecting %d features as input (row %d)", len(v), width, i+1)
		}
	}
	return nil
}

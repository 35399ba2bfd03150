package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// scalerFile is the JSON layout of a persisted scaler:
//
//	{"kind": "standard", "mean": [...], "scale": [...]}
//	{"kind": "minmax", "min": [...], "scale": [...]}
type scalerFile struct {
	Kind  string    `json:"kind"`
	Mean  []float64 `json:"mean,omitempty"`
	Min   []float64 `json:"min,omitempty"`
	Scale []float64 `json:"scale"`
}

// LoadScaler reads a persisted scaler from path. The scaler type is taken
// from the document's "kind" field.
func LoadScaler(path string) (Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}

	var f scalerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode scaler %q: %w", path, err)
	}

	switch f.Kind {
	case "standard":
		return NewStandardScaler(f.Mean, f.Scale)
	case "minmax":
		return NewMinMaxScaler(f.Min, f.Scale)
	case "identity":
		return IdentityScaler{}, nil
	default:
		return nil, fmt.Errorf("scaler %q: unknown kind %q (must be standard, minmax, or identity)", path, f.Kind)
	}
}

// StandardScaler applies (x - mean) / scale per feature.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler creates a standard scaler. A zero scale entry is treated
// as 1, matching how constant features are handled when the scaler is fit.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 {
		return nil, errors.New("standard scaler: mean cannot be empty")
	}
	if len(mean) != len(scale) {
		return nil, fmt.Errorf("standard scaler: mean has %d entries, scale has %d", len(mean), len(scale))
	}
	if err := checkFinite("mean", mean); err != nil {
		return nil, err
	}
	if err := checkFinite("scale", scale); err != nil {
		return nil, err
	}

	s := &StandardScaler{
		mean:  append([]float64(nil), mean...),
		scale: make([]float64, len(scale)),
	}
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		s.scale[i] = v
	}
	return s, nil
}

func (s *StandardScaler) Name() string { return "standard" }

// Width returns the number of features the scaler was fit on.
func (s *StandardScaler) Width() int { return len(s.mean) }

// Transform implements Scaler.
func (s *StandardScaler) Transform(ctx context.Context, batch [][]float64) ([][]float64, error) {
	if err := checkBatch(batch, len(s.mean)); err != nil {
		return nil, err
	}

	out := make([][]float64, len(batch))
	for i, v := range batch {
		row := make([]float64, len(v))
		for j, x := range v {
			row[j] = (x - s.mean[j]) / s.scale[j]
		}
		out[i] = row
	}
	return out, nil
}

// MinMaxScaler applies x*scale + min per feature.
type MinMaxScaler struct {
	min   []float64
	scale []float64
}

// NewMinMaxScaler creates a min-max scaler from its fitted min_ and scale_.
func NewMinMaxScaler(offset, scale []float64) (*MinMaxScaler, error) {
	if len(offset) == 0 {
		return nil, errors.New("minmax scaler: min cannot be empty")
	}
	if len(offset) != len(scale) {
		return nil, fmt.Errorf("minmax scaler: min has %d entries, scale has %d", len(offset), len(scale))
	}
	if err := checkFinite("min", offset); err != nil {
		return nil, err
	}
	if err := checkFinite("scale", scale); err != nil {
		return nil, err
	}

	return &MinMaxScaler{
		min:   append([]float64(nil), offset...),
		scale: append([]float64(nil), scale...),
	}, nil
}

func (s *MinMaxScaler) Name() string { return "minmax" }

// Width returns the number of features the scaler was fit on.
func (s *MinMaxScaler) Width() int { return len(s.min) }

// Transform implements Scaler.
func (s *MinMaxScaler) Transform(ctx context.Context, batch [][]float64) ([][]float64, error) {
	if err := checkBatch(batch, len(s.min)); err != nil {
		return nil, err
	}

	out := make([][]float64, len(batch))
	for i, v := range batch {
		row := make([]float64, len(v))
		for j, x := range v {
			row[j] = x*s.scale[j] + s.min[j]
		}
		out[i] = row
	}
	return out, nil
}

// IdentityScaler returns a copy of its input. It is used when the scorer
// applies its own normalization.
type IdentityScaler struct{}

func (IdentityScaler) Name() string { return "identity" }

// Transform implements Scaler.
func (IdentityScaler) Transform(ctx context.Context, batch [][]float64) ([][]float64, error) {
	out := make([][]float64, len(batch))
	for i, v := range batch {
		out[i] = append([]float64(nil), v...)
	}
	return out, nil
}

func checkFinite(field string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s[%d] is not finite", field, i)
		}
	}
	return nil
}

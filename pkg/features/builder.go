package features

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/HatiCode/anomalyd/pkg/adapters"
)

// Names is the model input column order. The scaler and scorer were fit on
// vectors in exactly this order.
var Names = [...]string{"CPU", "Memory", "Latency", "CPU_RAM_Interaction", "Latency_per_CPU"}

// Width is the number of model input features.
const Width = len(Names)

// ErrZeroDenominator is returned when CPU utilization is -1, which makes the
// Latency_per_CPU denominator zero.
var ErrZeroDenominator = errors.New("Latency_per_CPU denominator is zero (CPU_Usage == -1)")

// Sample holds the resolved raw values of one input row.
type Sample struct {
	Timestamp string
	CPU       float64
	Memory    float64
	Latency   float64
}

// CPURAMInteraction returns CPU * Memory.
func CPURAMInteraction(cpu, memory float64) float64 {
	return cpu * memory
}

// LatencyPerCPU returns latency / (cpu + 1).
func LatencyPerCPU(latency, cpu float64) (float64, error) {
	denom := cpu + 1
	if denom == 0 {
		return 0, ErrZeroDenominator
	}
	return latency / denom, nil
}

// Vector returns the ordered model input for the sample.
func (s Sample) Vector() ([]float64, error) {
	perCPU, err := LatencyPerCPU(s.Latency, s.CPU)
	if err != nil {
		return nil, err
	}
	return []float64{
		s.CPU,
		s.Memory,
		s.Latency,
		CPURAMInteraction(s.CPU, s.Memory),
		perCPU,
	}, nil
}

// Frame is the feature matrix built from a table, one vector per row.
type Frame struct {
	Samples []Sample
	Vectors [][]float64
}

// Len returns the number of rows in the frame.
func (f Frame) Len() int {
	return len(f.Vectors)
}

// Builder converts resolved tables into feature frames.
type Builder struct{}

// NewBuilder creates a feature builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildFeatures parses the resolved numeric columns of every row and derives
// the interaction features. Row numbers in errors are 1-based data rows.
func (b *Builder) BuildFeatures(df *adapters.DataFrame, res *Resolution) (Frame, error) {
	frame := Frame{
		Samples: make([]Sample, 0, df.Len()),
		Vectors: make([][]float64, 0, df.Len()),
	}

	for i := range df.Rows {
		sample, err := b.sample(df, res, i)
		if err != nil {
			return Frame{}, err
		}

		vec, err := sample.Vector()
		if err != nil {
			return Frame{}, fmt.Errorf("row %d: %w", i+1, err)
		}

		frame.Samples = append(frame.Samples, sample)
		frame.Vectors = append(frame.Vectors, vec)
	}

	return frame, nil
}

func (b *Builder) sample(df *adapters.DataFrame, res *Resolution, row int) (Sample, error) {
	var s Sample
	var err error

	if s.CPU, err = numeric(df, res, row, ColumnCPU); err != nil {
		return Sample{}, err
	}
	if s.Memory, err = numeric(df, res, row, ColumnMemory); err != nil {
		return Sample{}, err
	}
	if s.Latency, err = numeric(df, res, row, ColumnLatency); err != nil {
		return Sample{}, err
	}

	if idx, ok := res.Index(ColumnTimestamp); ok {
		if s.Timestamp, err = df.Cell(row, idx); err != nil {
			return Sample{}, err
		}
	}

	return s, nil
}

func numeric(df *adapters.DataFrame, res *Resolution, row int, c Column) (float64, error) {
	idx, ok := res.Index(c)
	if !ok {
		return 0, fmt.Errorf("column %q is not resolved", c)
	}

	raw, err := df.Cell(row, idx)
	if err != nil {
		return 0, err
	}

	name := res.Name(c)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("row %d: column %q: missing value", row+1, name)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("row %d: column %q: could not convert %q to float", row+1, name, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("row %d: column %q: non-finite value %q", row+1, name, raw)
	}

	return v, nil
}

// Package adapters provides data source connectors that load operational
// metric tables from external systems and normalize them into a common
// DataFrame structure.
//
// Each adapter implements the Adapter interface and can be plugged into the
// anomaly detector. Available adapters:
//   - CSVAdapter: reads a delimited file whose first record is the header
//
// Adapters are intentionally lightweight. They focus on pulling raw data and
// shaping it into [DataFrame] objects, leaving column resolution, feature
// building and scoring to the upper layers.
package adapters

import (
	"context"
	"fmt"
)

// Row represents a single tabular observation. Cells are kept as the raw
// strings read from the source, in header order.
type Row []string

// DataFrame is a lightweight structure for tabular data returned by adapters.
type DataFrame struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of data rows.
func (df *DataFrame) Len() int {
	return len(df.Rows)
}

// Cell returns the raw value at the given row and column index.
func (df *DataFrame) Cell(row, col int) (string, error) {
	if row < 0 || row >= len(df.Rows) {
		return "", fmt.Errorf("row %d out of range [0, %d)", row, len(df.Rows))
	}
	if col < 0 || col >= len(df.Columns) {
		return "", fmt.Errorf("column %d out of range [0, %d)", col, len(df.Columns))
	}
	r := df.Rows[row]
	if col >= len(r) {
		return "", nil
	}
	return r[col], nil
}

// Adapter is the interface that all table sources must implement.
//
// The Load() call is synchronous and should respect context cancellation.
type Adapter interface {
	// Load reads the table identified by source (a path, URL, or key,
	// depending on the adapter) and returns it as a DataFrame.
	Load(ctx context.Context, source string) (*DataFrame, error)

	// Name returns a short, unique identifier for the adapter.
	// Example: "csv".
	Name() string
}

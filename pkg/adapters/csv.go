package adapters

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoColumns is returned when the source has no header record.
var ErrNoColumns = errors.New("no columns to parse from file")

const utf8BOM = "\ufeff"

// CSVAdapter reads a table from a delimited file on the local filesystem.
//
// The first record is the header. Records shorter than the header are padded
// with empty cells; records longer than the header are rejected. Blank lines
// are skipped.
type CSVAdapter struct {
	// Comma is the field delimiter. Defaults to ',' when zero.
	Comma rune

	// TrimSpace strips leading and trailing whitespace from header names.
	TrimSpace bool
}

// NewCSVAdapter creates a comma-delimited CSV adapter.
func NewCSVAdapter() *CSVAdapter {
	return &CSVAdapter{Comma: ',', TrimSpace: true}
}

func (c *CSVAdapter) Name() string { return "csv" }

// Load implements Adapter. source is a filesystem path.
func (c *CSVAdapter) Load(ctx context.Context, source string) (*DataFrame, error) {
	if source == "" {
		return nil, errors.New("csv adapter: path is required")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return c.Read(ctx, f)
}

// Read parses CSV content from r. It is exported so callers holding an
// in-memory body can reuse the same parsing rules as Load.
func (c *CSVAdapter) Read(ctx context.Context, r io.Reader) (*DataFrame, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	if c.Comma != 0 {
		reader.Comma = c.Comma
	}
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoColumns
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		if c.TrimSpace {
			name = strings.TrimSpace(name)
		}
		columns[i] = name
	}

	df := &DataFrame{Columns: columns, Rows: make([]Row, 0)}

	for line := 1; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		if len(record) > len(columns) {
			return nil, fmt.Errorf("error tokenizing data: row %d: expected %d fields, saw %d", line, len(columns), len(record))
		}
		if len(record) < len(columns) {
			padded := make(Row, len(columns))
			copy(padded, record)
			record = padded
		}

		df.Rows = append(df.Rows, Row(record))
	}

	return df, nil
}

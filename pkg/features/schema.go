// Package features resolves logical metric columns against a table header
// and builds the model input vectors from the resolved rows.
//
// Two resolution modes are supported:
//   - fuzzy: a header matches when it contains the column pattern as a
//     substring; the first matching header (in header order) wins. The fuzzy
//     schema carries a timestamp column that is passed through untouched.
//   - exact: a header matches only when it equals the column pattern. The
//     exact schema has no timestamp column.
package features

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode selects how logical columns are matched against header names.
type Mode string

const (
	ModeFuzzy Mode = "fuzzy"
	ModeExact Mode = "exact"
)

// ParseMode parses a resolution mode name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeFuzzy:
		return ModeFuzzy, nil
	case ModeExact:
		return ModeExact, nil
	default:
		return "", fmt.Errorf("invalid resolution mode %q (must be fuzzy or exact)", s)
	}
}

// Column identifies a logical metric column.
type Column string

const (
	ColumnCPU       Column = "cpu"
	ColumnMemory    Column = "memory"
	ColumnLatency   Column = "latency"
	ColumnTimestamp Column = "timestamp"
)

// ColumnSpec describes how one logical column is looked up in a header.
type ColumnSpec struct {
	Column Column

	// Pattern is a substring in fuzzy mode and a full header name in exact mode.
	Pattern string

	// Display is the canonical name reported when the column is missing.
	Display string
}

// Schema is the set of logical columns a mode requires, in output order.
type Schema struct {
	Mode    Mode
	Columns []ColumnSpec
}

// DefaultSchema returns the built-in column set for a mode.
func DefaultSchema(mode Mode) Schema {
	if mode == ModeExact {
		return Schema{
			Mode: ModeExact,
			Columns: []ColumnSpec{
				{Column: ColumnCPU, Pattern: "CPU_Usage(%)", Display: "CPU_Usage(%)"},
				{Column: ColumnMemory, Pattern: "Memory_Usage(%)", Display: "Memory_Usage(%)"},
				{Column: ColumnLatency, Pattern: "Latency(ms)", Display: "Latency(ms)"},
			},
		}
	}

	return Schema{
		Mode: ModeFuzzy,
		Columns: []ColumnSpec{
			{Column: ColumnTimestamp, Pattern: "Random_Timestamp", Display: "Random_Timestamp"},
			{Column: ColumnCPU, Pattern: "CPU_Usage", Display: "CPU_Usage(%)"},
			{Column: ColumnMemory, Pattern: "Memory_Usage", Display: "Memory_Usage(%)"},
			{Column: ColumnLatency, Pattern: "Latency", Display: "Latency(ms)"},
		},
	}
}

// Has reports whether the schema includes the logical column.
func (s Schema) Has(c Column) bool {
	for _, spec := range s.Columns {
		if spec.Column == c {
			return true
		}
	}
	return false
}

// columnsFile is the on-disk layout of a column override file:
//
//	fuzzy:
//	  cpu: CPU_Usage
//	  timestamp: Random_Timestamp
//	exact:
//	  cpu: "CPU_Usage(%)"
type columnsFile struct {
	Fuzzy map[Column]string `yaml:"fuzzy"`
	Exact map[Column]string `yaml:"exact"`
}

// LoadSchemaFile returns the default schema for mode with column patterns
// overridden from a YAML file. Columns not present in the file keep their
// defaults. An empty path returns the default schema.
func LoadSchemaFile(path string, mode Mode) (Schema, error) {
	schema := DefaultSchema(mode)
	if path == "" {
		return schema, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("read columns file: %w", err)
	}

	var file columnsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Schema{}, fmt.Errorf("parse columns file %q: %w", path, err)
	}

	overrides := file.Fuzzy
	if mode == ModeExact {
		overrides = file.Exact
	}

	for col, pattern := range overrides {
		if !schema.Has(col) {
			return Schema{}, fmt.Errorf("columns file %q: column %q is not part of the %s schema", path, col, mode)
		}
		if strings.TrimSpace(pattern) == "" {
			return Schema{}, fmt.Errorf("columns file %q: empty pattern for column %q", path, col)
		}
		for i := range schema.Columns {
			if schema.Columns[i].Column == col {
				schema.Columns[i].Pattern = pattern
			}
		}
	}

	return schema, nil
}

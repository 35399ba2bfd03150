package features

import (
	"fmt"
	"strings"
)

// MissingColumnsError reports logical columns that could not be resolved.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("Missing required columns: %s", strings.Join(e.Columns, ", "))
}

// Resolution maps the logical columns of a schema to header positions.
type Resolution struct {
	Schema  Schema
	indexes map[Column]int
	names   map[Column]string
}

// Resolve matches every schema column against header. All unresolved
// columns are collected into a single *MissingColumnsError.
func (s Schema) Resolve(header []string) (*Resolution, error) {
	res := &Resolution{
		Schema:  s,
		indexes: make(map[Column]int, len(s.Columns)),
		names:   make(map[Column]string, len(s.Columns)),
	}

	var missing []string
	for _, spec := range s.Columns {
		idx := s.match(spec.Pattern, header)
		if idx < 0 {
			missing = append(missing, spec.Display)
			continue
		}
		res.indexes[spec.Column] = idx
		res.names[spec.Column] = header[idx]
	}

	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	return res, nil
}

func (s Schema) match(pattern string, header []string) int {
	for i, name := range header {
		switch s.Mode {
		case ModeExact:
			if name == pattern {
				return i
			}
		default:
			if strings.Contains(name, pattern) {
				return i
			}
		}
	}
	return -1
}

// Index returns the header position of a resolved column.
func (r *Resolution) Index(c Column) (int, bool) {
	idx, ok := r.indexes[c]
	return idx, ok
}

// Name returns the actual header name a column resolved to.
func (r *Resolution) Name(c Column) string {
	return r.names[c]
}

package detect

import (
	"bytes"
	"encoding/json"
)

const (
	// ScoreField and StatusField are appended to every scored row.
	ScoreField  = "Anomaly_Score"
	StatusField = "Anomaly_Status"
)

// Field is one named value of a scored row.
type Field struct {
	Name  string
	Value any
}

// ScoredRow is an input row plus its anomaly score and status. It marshals
// to a JSON object whose keys keep the field order.
type ScoredRow []Field

// Get returns the value of the named field.
func (r ScoredRow) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the field names in order.
func (r ScoredRow) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Name
	}
	return keys
}

func (r ScoredRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result is the outcome of one predict call.
type Result struct {
	Rows      []ScoredRow
	Scores    []float64
	Anomalies int
}

// MarshalJSON encodes the rows as a JSON array; an empty result is [].
func (r Result) MarshalJSON() ([]byte, error) {
	if len(r.Rows) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Rows)
}

// Status returns the anomaly status for a decision score: 1 when the score
// is negative, 0 otherwise.
func Status(score float64) int {
	if score < 0 {
		return 1
	}
	return 0
}

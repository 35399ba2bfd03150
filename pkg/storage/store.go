// Package storage provides run report storage implementations.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Report summarizes one successful prediction run over a data source.
type Report struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Mode        string    `json:"mode"`
	Scorer      string    `json:"scorer"`
	GeneratedAt time.Time `json:"generated_at"`
	Rows        int       `json:"rows"`
	Anomalies   int       `json:"anomalies"`

	// MinScore and MaxScore are zero when Rows is zero.
	MinScore float64 `json:"min_score"`
	MaxScore float64 `json:"max_score"`

	// QuantileLevel is set when the detector tracks a score quantile.
	QuantileLevel string  `json:"quantile_level,omitempty"`
	ScoreQuantile float64 `json:"score_quantile,omitempty"`
}

// Store keeps the latest report per source.
type Store interface {
	Put(ctx context.Context, report Report) error
	GetLatest(ctx context.Context, source string) (Report, bool, error)
}

// SourceKey returns a fixed-length key for a source path. Paths may contain
// any character, so stores key on the hash rather than the raw path.
func SourceKey(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

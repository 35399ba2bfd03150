package detect

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ParseQuantileLevel parses a quantile level from either p-notation (p5, p50)
// or decimal notation (0.05, 0.5).
//
// Examples:
//   - "p5"   → 0.05
//   - "p50"  → 0.50
//   - "0.10" → 0.10
//   - "0"    → 0 (disabled)
//
// Returns error if the format is invalid or value is out of range [0, 1].
func ParseQuantileLevel(s string) (float64, error) {
	s = strings.TrimSpace(s)

	if s == "" || s == "0" {
		return 0, nil
	}

	if strings.HasPrefix(strings.ToLower(s), "p") {
		percentile, err := strconv.ParseFloat(s[1:], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid p-notation %q: %w", s, err)
		}
		if percentile < 0 || percentile > 100 {
			return 0, fmt.Errorf("percentile %v out of range [0, 100]", percentile)
		}
		return percentile / 100.0, nil
	}

	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantile %q: %w", s, err)
	}
	if q < 0 || q > 1 {
		return 0, fmt.Errorf("quantile %v out of range [0, 1]", q)
	}
	return q, nil
}

// FormatQuantileLevel formats a quantile level as p-notation for display.
//
//   - 0.05 → "p5"
//   - 0.5  → "p50"
//   - 0    → "disabled"
func FormatQuantileLevel(q float64) string {
	if q == 0 {
		return "disabled"
	}
	percentile := math.Round(q*1000) / 10
	if percentile == math.Trunc(percentile) {
		return fmt.Sprintf("p%d", int(percentile))
	}
	return fmt.Sprintf("p%.1f", percentile)
}

// scoreQuantile returns the q-quantile of scores with linear interpolation
// between closest ranks. scores must be non-empty; it is not modified.
func scoreQuantile(scores []float64, q float64) float64 {
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

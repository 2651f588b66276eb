// Package scoring turns completed analyses into letter grades and ranking
// records. Everything here is pure: same inputs, same output, no clock and
// no I/O, so the ranking batch and tests share one code path.
package scoring

import (
	"github.com/glasshouse-ai/glasshouse/pkg/models"
)

// GradeFor maps a percentage-like value (higher is better) to a letter.
// E stays reserved; insufficient-evidence metrics are graded N/A by the
// engine before this is ever called.
func GradeFor(pct float64) models.Grade {
	switch {
	case pct >= 80:
		return models.GradeA
	case pct >= 60:
		return models.GradeB
	case pct >= 40:
		return models.GradeC
	case pct >= 20:
		return models.GradeD
	default:
		return models.GradeF
	}
}

// ClampRiskScore forces a synthesizer risk score into [0,100]. The bool
// reports whether clamping happened so callers can log the violation.
func ClampRiskScore(score int) (int, bool) {
	if score < 0 {
		return 0, true
	}
	if score > 100 {
		return 100, true
	}
	return score, false
}

func clampPct(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

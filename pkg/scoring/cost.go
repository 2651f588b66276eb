package scoring

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// costMaxUSD anchors the cost curve: one million dollars scores 100.
const costMaxUSD = 1_000_000.0

var costPattern = regexp.MustCompile(`\$?([\d,]+\.?\d*)\s*([bmk])?`)

// ParseUnitCost extracts a USD amount from free text such as
// "$82.5M per unit" or "$2.1B". Recognized suffixes are b, m and k.
// Undisclosed, unknown or unparseable costs return ok=false.
func ParseUnitCost(raw string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" || strings.Contains(s, "not disclosed") || s == "unknown" {
		return 0, false
	}

	m := costPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	num, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "b":
		num *= 1e9
	case "m":
		num *= 1e6
	case "k":
		num *= 1e3
	}
	return num, true
}

// CostScore maps a mean USD cost onto a 0-100 scale (higher is more
// expensive) using a log curve capped at costMaxUSD. Non-positive input
// means no cost data and returns ok=false.
func CostScore(meanCostUSD float64) (float64, bool) {
	if meanCostUSD <= 0 {
		return 0, false
	}
	score := math.Log10(meanCostUSD) / math.Log10(costMaxUSD) * 100
	return math.Min(score, 100), true
}

// percentile75 is the sentinel substituted for undisclosed unit costs.
// Nearest-rank over the sorted known costs, 0 when nothing is known.
func percentile75(costs []float64) float64 {
	if len(costs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), costs...)
	sort.Float64s(sorted)
	return sorted[len(sorted)*3/4]
}

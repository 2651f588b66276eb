package models

import "time"

// Grade is a letter grade over a percentage-like metric. E sits in the
// scale but current thresholds never assign it; GradeNA marks metrics with
// insufficient evidence.
type Grade string

const (
	GradeA  Grade = "A"
	GradeB  Grade = "B"
	GradeC  Grade = "C"
	GradeD  Grade = "D"
	GradeE  Grade = "E"
	GradeF  Grade = "F"
	GradeNA Grade = "N/A"
)

// Metric keys form a fixed closed set; grades map only over these.
const (
	MetricTransparency   = "transparency"
	MetricRiskMitigation = "risk_mitigation"
	MetricSafety         = "safety"
	MetricCostEfficiency = "cost_efficiency"
)

// MetricKeys returns the closed metric key set in display order.
func MetricKeys() []string {
	return []string{MetricTransparency, MetricRiskMitigation, MetricSafety, MetricCostEfficiency}
}

// RankingRecord is the derived per-company grading snapshot used for
// cross-company comparison. One record per company, upsertable.
type RankingRecord struct {
	Company          string             `json:"company" db:"company"`
	Grades           map[string]Grade   `json:"grades" db:"-"`
	Overall          Grade              `json:"overall" db:"overall"`
	OverallScore     float64            `json:"overall_score" db:"overall_score"`
	AggregatedScores map[string]float64 `json:"aggregated_scores" db:"-"`
	ProductCount     int                `json:"product_count" db:"product_count"`
	GeneratedAt      time.Time          `json:"generated_at" db:"generated_at"`
}

// RankingSnapshot is the persisted collection read by the presentation
// layer, ordered worst overall first.
type RankingSnapshot struct {
	Rankings       []RankingRecord `json:"rankings"`
	GeneratedAt    time.Time       `json:"generated_at"`
	TotalCompanies int             `json:"total_companies"`
}

package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/glasshouse-ai/glasshouse/pkg/models"
)

// Config controls evidence gating for the grading engine.
type Config struct {
	// MinEvidenceCount is the smallest number of contributing analyses a
	// metric needs before it is graded; below it the grade is N/A.
	MinEvidenceCount int `mapstructure:"min_evidence_count"`
}

// DefaultConfig returns the stock scoring configuration.
func DefaultConfig() Config {
	return Config{MinEvidenceCount: 1}
}

// AnalysisInput is what one completed analysis contributes to ranking.
// Nil pointers mean the synthesizer did not produce the value; absent
// data degrades to N/A, never to a default number.
type AnalysisInput struct {
	Company          string
	ContradictionPct *float64 // 0-100, higher is worse
	RiskMitigation   *float64 // 0-100, higher is better
	RiskScore        *float64 // 0-100, higher is worse
	UnitCost         string   // free text, parsed here
}

// InputFromResult projects a persisted analysis into a ranking input.
func InputFromResult(r *models.AnalysisResult) AnalysisInput {
	in := AnalysisInput{
		Company:          r.Company,
		ContradictionPct: r.ContradictionPct,
		RiskMitigation:   r.RiskMitigationScore,
	}
	risk := float64(r.RiskScore)
	in.RiskScore = &risk
	if r.CostAnalysis != nil {
		in.UnitCost = r.CostAnalysis.UnitCost
	}
	return in
}

// Engine derives ranking records from analysis inputs.
type Engine struct {
	cfg Config
}

// NewEngine creates a grading engine.
func NewEngine(cfg Config) *Engine {
	if cfg.MinEvidenceCount <= 0 {
		cfg.MinEvidenceCount = 1
	}
	return &Engine{cfg: cfg}
}

// BuildSnapshot grades every company found in the inputs and returns the
// snapshot sorted worst overall first. The undisclosed-cost sentinel (75th
// percentile of known costs) is computed across the whole batch, so a
// company is never rewarded for withholding cost data.
func (e *Engine) BuildSnapshot(inputs []AnalysisInput, generatedAt time.Time) models.RankingSnapshot {
	var knownCosts []float64
	for _, in := range inputs {
		if v, ok := ParseUnitCost(in.UnitCost); ok {
			knownCosts = append(knownCosts, v)
		}
	}
	fallbackCost := percentile75(knownCosts)

	var order []string
	grouped := make(map[string][]AnalysisInput)
	for _, in := range inputs {
		if in.Company == "" {
			continue
		}
		if _, seen := grouped[in.Company]; !seen {
			order = append(order, in.Company)
		}
		grouped[in.Company] = append(grouped[in.Company], in)
	}

	records := make([]models.RankingRecord, 0, len(order))
	for _, company := range order {
		records = append(records, e.rankCompany(company, grouped[company], fallbackCost, generatedAt))
	}
	SortWorstFirst(records)

	return models.RankingSnapshot{
		Rankings:       records,
		GeneratedAt:    generatedAt,
		TotalCompanies: len(records),
	}
}

// GradeResult grades a single completed analysis in isolation, for the
// blocking API response. Undisclosed costs have no batch to borrow a
// sentinel from, so they grade N/A here.
func (e *Engine) GradeResult(r *models.AnalysisResult) models.RankingRecord {
	snapshot := e.BuildSnapshot([]AnalysisInput{InputFromResult(r)}, r.CreatedAt)
	if len(snapshot.Rankings) == 0 {
		return models.RankingRecord{
			Company:          r.Company,
			Grades:           emptyGrades(),
			Overall:          models.GradeNA,
			AggregatedScores: map[string]float64{},
			GeneratedAt:      r.CreatedAt,
		}
	}
	return snapshot.Rankings[0]
}

func (e *Engine) rankCompany(company string, rows []AnalysisInput, fallbackCost float64, generatedAt time.Time) models.RankingRecord {
	var contradiction, mitigation, risk []float64
	for _, row := range rows {
		if row.ContradictionPct != nil {
			contradiction = append(contradiction, *row.ContradictionPct)
		}
		if row.RiskMitigation != nil {
			mitigation = append(mitigation, *row.RiskMitigation)
		}
		if row.RiskScore != nil {
			risk = append(risk, *row.RiskScore)
		}
	}

	costVals := make([]float64, 0, len(rows))
	parsedCosts := 0
	for _, row := range rows {
		if v, ok := ParseUnitCost(row.UnitCost); ok {
			costVals = append(costVals, v)
			parsedCosts++
		} else {
			costVals = append(costVals, fallbackCost)
		}
	}
	avgCost := 0.0
	for _, v := range costVals {
		if v > 0 {
			avgCost = mean(costVals)
			break
		}
	}
	costScore, hasCost := CostScore(avgCost)
	costEvidence := parsedCosts
	if hasCost && costEvidence == 0 {
		// Every cost was substituted by the batch sentinel.
		costEvidence = len(rows)
	}

	grades := make(map[string]models.Grade, 4)
	aggregated := make(map[string]float64, 4)
	var available []float64

	gradeMetric := func(key string, evidence int, pct float64) {
		if evidence < e.cfg.MinEvidenceCount {
			grades[key] = models.GradeNA
			return
		}
		pct = clampPct(pct)
		grades[key] = GradeFor(pct)
		available = append(available, pct)
	}

	gradeMetric(models.MetricTransparency, len(contradiction), 100-mean(contradiction))
	gradeMetric(models.MetricRiskMitigation, len(mitigation), mean(mitigation))
	gradeMetric(models.MetricSafety, len(risk), 100-mean(risk))
	costPct := 0.0
	costOK := 0
	if hasCost {
		costPct = 100 - costScore
		costOK = costEvidence
	}
	gradeMetric(models.MetricCostEfficiency, costOK, costPct)

	if len(contradiction) > 0 {
		aggregated["contradiction_pct"] = mean(contradiction)
	}
	if len(mitigation) > 0 {
		aggregated["risk_mitigation"] = mean(mitigation)
	}
	if len(risk) > 0 {
		aggregated["risk_score"] = mean(risk)
	}
	if avgCost > 0 {
		aggregated["avg_unit_cost_usd"] = avgCost
	}

	overall := models.GradeNA
	overallScore := 0.0
	if len(available) > 0 {
		overallScore = math.Round(mean(available)*10) / 10
		overall = GradeFor(overallScore)
	}

	return models.RankingRecord{
		Company:          company,
		Grades:           grades,
		Overall:          overall,
		OverallScore:     overallScore,
		AggregatedScores: aggregated,
		ProductCount:     len(rows),
		GeneratedAt:      generatedAt,
	}
}

// SortWorstFirst orders records for display: lowest overall score first,
// ties broken by the worse raw risk score. Companies graded N/A overall
// sink to the bottom rather than topping the list on zero evidence.
func SortWorstFirst(records []models.RankingRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		ri, rj := records[i], records[j]
		if (ri.Overall == models.GradeNA) != (rj.Overall == models.GradeNA) {
			return rj.Overall == models.GradeNA
		}
		if ri.OverallScore != rj.OverallScore {
			return ri.OverallScore < rj.OverallScore
		}
		return ri.AggregatedScores["risk_score"] > rj.AggregatedScores["risk_score"]
	})
}

func emptyGrades() map[string]models.Grade {
	grades := make(map[string]models.Grade, len(models.MetricKeys()))
	for _, key := range models.MetricKeys() {
		grades[key] = models.GradeNA
	}
	return grades
}

package models

import (
	"fmt"
	"time"
)

// Stage names one step of the analysis pipeline.
type Stage string

const (
	StageInvestigator Stage = "investigator"
	StageForensic     Stage = "forensic"
	StageSynthesizer  Stage = "synthesizer"
)

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{StageInvestigator, StageForensic, StageSynthesizer}
}

// StageStatus is the lifecycle of one stage within a run.
type StageStatus string

const (
	StagePending StageStatus = "pending"
	StageRunning StageStatus = "running"
	StageDone    StageStatus = "done"
	StageFailed  StageStatus = "error"
)

// Contradiction pairs a public claim with contradicting technical evidence.
// Sources must be non-empty: an uncited contradiction is never surfaced.
type Contradiction struct {
	Claim        string   `json:"claim"`
	Evidence     string   `json:"evidence"`
	WhyItMatters string   `json:"why_it_matters"`
	Sources      []string `json:"sources"`
}

// Supported reports whether the contradiction cites at least one source.
func (c Contradiction) Supported() bool {
	return len(c.Sources) > 0
}

// TechnicalFinding is one piece of patent evidence collected by the
// forensic stage.
type TechnicalFinding struct {
	PatentID  string `json:"patent_id"`
	Excerpt   string `json:"excerpt"`
	Relevance string `json:"relevance"`
}

// CostAnalysis carries cost statements extracted during synthesis. Values
// stay as free text ("$82.5M per unit", "not disclosed"); parsing happens
// at grading time.
type CostAnalysis struct {
	UnitCost      string `json:"unit_cost"`
	ProgrammeCost string `json:"programme_cost"`
	Source        string `json:"source"`
}

// SynthesisResult is the validated structured output of the synthesizer
// stage. Auxiliary metrics are optional; absence degrades to N/A grades.
type SynthesisResult struct {
	RiskScore           int             `json:"risk_score"`
	ScoreDrivers        []string        `json:"score_drivers"`
	Contradictions      []Contradiction `json:"contradictions"`
	ContradictionPct    *float64        `json:"contradiction_pct,omitempty"`
	CostAnalysis        *CostAnalysis   `json:"cost_analysis,omitempty"`
	HumanInLoopPct      *float64        `json:"human_in_loop_pct,omitempty"`
	RiskMitigationScore *float64        `json:"risk_mitigation_score,omitempty"`
	RiskMitigation      []string        `json:"risk_mitigation,omitempty"`
}

// AnalysisState is the record threaded through one pipeline run. Stages
// never mutate it in place: each transform returns a deep copy with only
// the owned fields changed, so a stage's output is frozen the moment it
// completes.
type AnalysisState struct {
	RunID     string `json:"run_id"`
	Company   string `json:"company"`
	UserQuery string `json:"user_query"`

	// Snapshotted at run start.
	Stats CoverageStats `json:"stats"`

	// Investigator output.
	Claims      []string `json:"claims"`
	ProductRefs []string `json:"product_refs"`

	// Forensic output.
	TechnicalFindings     []TechnicalFinding `json:"technical_findings"`
	TechnicalCapabilities string             `json:"technical_capabilities,omitempty"`
	DualUseRisks          string             `json:"dual_use_risks,omitempty"`

	// Synthesizer output.
	RiskScore           int             `json:"risk_score"`
	ScoreDrivers        []string        `json:"score_drivers"`
	Contradictions      []Contradiction `json:"contradictions"`
	ContradictionPct    *float64        `json:"contradiction_pct,omitempty"`
	CostAnalysis        *CostAnalysis   `json:"cost_analysis,omitempty"`
	HumanInLoopPct      *float64        `json:"human_in_loop_pct,omitempty"`
	RiskMitigationScore *float64        `json:"risk_mitigation_score,omitempty"`
	RiskMitigation      []string        `json:"risk_mitigation,omitempty"`

	// Orchestrator bookkeeping.
	StageStatus map[Stage]StageStatus `json:"stage_status"`
	Error       string                `json:"error,omitempty"`
}

// NewAnalysisState creates a fresh state with all stages pending. An empty
// user query gets the default retrieval focus for the company.
func NewAnalysisState(runID, company, userQuery string) *AnalysisState {
	if userQuery == "" {
		userQuery = fmt.Sprintf("Analyze contradictions between public ethical claims and technical filings for %s", company)
	}
	statuses := make(map[Stage]StageStatus, len(Stages()))
	for _, stage := range Stages() {
		statuses[stage] = StagePending
	}
	return &AnalysisState{
		RunID:          runID,
		Company:        company,
		UserQuery:      userQuery,
		Stats:          NewCoverageStats(),
		Claims:         []string{},
		ProductRefs:    []string{},
		ScoreDrivers:   []string{},
		Contradictions: []Contradiction{},
		StageStatus:    statuses,
	}
}

// Clone returns a deep copy. Slices and maps are copied so holders of the
// previous state never observe later writes.
func (s *AnalysisState) Clone() *AnalysisState {
	cp := *s

	cp.Stats = make(CoverageStats, len(s.Stats))
	for k, v := range s.Stats {
		cp.Stats[k] = v
	}
	cp.Claims = append([]string{}, s.Claims...)
	cp.ProductRefs = append([]string{}, s.ProductRefs...)
	cp.TechnicalFindings = append([]TechnicalFinding{}, s.TechnicalFindings...)
	cp.ScoreDrivers = append([]string{}, s.ScoreDrivers...)
	cp.RiskMitigation = append([]string(nil), s.RiskMitigation...)

	cp.Contradictions = make([]Contradiction, len(s.Contradictions))
	for i, c := range s.Contradictions {
		c.Sources = append([]string(nil), c.Sources...)
		cp.Contradictions[i] = c
	}

	cp.StageStatus = make(map[Stage]StageStatus, len(s.StageStatus))
	for k, v := range s.StageStatus {
		cp.StageStatus[k] = v
	}

	if s.ContradictionPct != nil {
		v := *s.ContradictionPct
		cp.ContradictionPct = &v
	}
	if s.CostAnalysis != nil {
		v := *s.CostAnalysis
		cp.CostAnalysis = &v
	}
	if s.HumanInLoopPct != nil {
		v := *s.HumanInLoopPct
		cp.HumanInLoopPct = &v
	}
	if s.RiskMitigationScore != nil {
		v := *s.RiskMitigationScore
		cp.RiskMitigationScore = &v
	}

	return &cp
}

// WithStageStatus returns a copy with one stage status changed.
func (s *AnalysisState) WithStageStatus(stage Stage, status StageStatus) *AnalysisState {
	cp := s.Clone()
	cp.StageStatus[stage] = status
	return cp
}

// WithStats returns a copy carrying the coverage snapshot.
func (s *AnalysisState) WithStats(stats CoverageStats) *AnalysisState {
	cp := s.Clone()
	cp.Stats = NewCoverageStats()
	for k, v := range stats {
		cp.Stats[k] = v
	}
	return cp
}

// WithInvestigation returns a copy carrying the investigator's output and
// marking the stage done.
func (s *AnalysisState) WithInvestigation(claims, productRefs []string) *AnalysisState {
	cp := s.Clone()
	cp.Claims = append([]string{}, claims...)
	cp.ProductRefs = append([]string{}, productRefs...)
	cp.StageStatus[StageInvestigator] = StageDone
	return cp
}

// WithForensics returns a copy carrying the forensic stage's output and
// marking the stage done.
func (s *AnalysisState) WithForensics(findings []TechnicalFinding, capabilities, dualUseRisks string) *AnalysisState {
	cp := s.Clone()
	cp.TechnicalFindings = append([]TechnicalFinding{}, findings...)
	cp.TechnicalCapabilities = capabilities
	cp.DualUseRisks = dualUseRisks
	cp.StageStatus[StageForensic] = StageDone
	return cp
}

// WithSynthesis returns a copy carrying the synthesizer's validated output
// and marking the stage done.
func (s *AnalysisState) WithSynthesis(result SynthesisResult) *AnalysisState {
	cp := s.Clone()
	cp.RiskScore = result.RiskScore
	cp.ScoreDrivers = append([]string{}, result.ScoreDrivers...)
	cp.Contradictions = make([]Contradiction, len(result.Contradictions))
	for i, c := range result.Contradictions {
		c.Sources = append([]string(nil), c.Sources...)
		cp.Contradictions[i] = c
	}
	cp.ContradictionPct = result.ContradictionPct
	cp.CostAnalysis = result.CostAnalysis
	cp.HumanInLoopPct = result.HumanInLoopPct
	cp.RiskMitigationScore = result.RiskMitigationScore
	cp.RiskMitigation = append([]string(nil), result.RiskMitigation...)
	cp.StageStatus[StageSynthesizer] = StageDone
	return cp
}

// WithError returns a copy recording the first failure: the failing stage
// is marked error and the run error message set. Later stages stay pending.
func (s *AnalysisState) WithError(stage Stage, msg string) *AnalysisState {
	cp := s.Clone()
	cp.StageStatus[stage] = StageFailed
	if cp.Error == "" {
		cp.Error = msg
	}
	return cp
}

// Failed reports whether the run recorded an error.
func (s *AnalysisState) Failed() bool {
	return s.Error != ""
}

// AnalysisResult is the final projection of a completed run: the only part
// of the state that outlives it.
type AnalysisResult struct {
	RunID               string                `json:"run_id"`
	Company             string                `json:"company"`
	RiskScore           int                   `json:"risk_score"`
	ScoreDrivers        []string              `json:"score_drivers"`
	Products            []string              `json:"products"`
	Contradictions      []Contradiction       `json:"contradictions"`
	Stats               CoverageStats         `json:"stats"`
	ContradictionPct    *float64              `json:"contradiction_pct,omitempty"`
	CostAnalysis        *CostAnalysis         `json:"cost_analysis,omitempty"`
	HumanInLoopPct      *float64              `json:"human_in_loop_pct,omitempty"`
	RiskMitigationScore *float64              `json:"risk_mitigation_score,omitempty"`
	RiskMitigation      []string              `json:"risk_mitigation,omitempty"`
	StageStatus         map[Stage]StageStatus `json:"stage_status"`
	Error               string                `json:"error,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
}

// Result projects the state into its persistable form.
func (s *AnalysisState) Result() *AnalysisResult {
	cp := s.Clone()
	return &AnalysisResult{
		RunID:               cp.RunID,
		Company:             cp.Company,
		RiskScore:           cp.RiskScore,
		ScoreDrivers:        cp.ScoreDrivers,
		Products:            cp.ProductRefs,
		Contradictions:      cp.Contradictions,
		Stats:               cp.Stats,
		ContradictionPct:    cp.ContradictionPct,
		CostAnalysis:        cp.CostAnalysis,
		HumanInLoopPct:      cp.HumanInLoopPct,
		RiskMitigationScore: cp.RiskMitigationScore,
		RiskMitigation:      cp.RiskMitigation,
		StageStatus:         cp.StageStatus,
		Error:               cp.Error,
		CreatedAt:           time.Now().UTC(),
	}
}

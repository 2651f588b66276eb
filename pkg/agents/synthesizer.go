package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/glasshouse-ai/glasshouse/pkg/generative"
	"github.com/glasshouse-ai/glasshouse/pkg/models"
	"github.com/glasshouse-ai/glasshouse/pkg/observability"
	"github.com/glasshouse-ai/glasshouse/pkg/scoring"

	errs "github.com/glasshouse-ai/glasshouse/pkg/errors"
)

const (
	maxScoreDrivers  = 3
	maxPatentSources = 5

	// Prompt budgets in runes per evidence section.
	claimsBudget       = 2000
	capabilitiesBudget = 2000
	risksBudget        = 1000
)

// synthesisSchema validates shape only. risk_score bounds are enforced
// after parsing so out-of-range values clamp instead of failing the run.
const synthesisSchema = `{
	"type": "object",
	"required": ["risk_score", "score_drivers", "contradictions"],
	"properties": {
		"risk_score": {"type": "integer"},
		"score_drivers": {"type": "array", "items": {"type": "string"}},
		"contradictions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["claim", "evidence", "why_it_matters", "sources"],
				"properties": {
					"claim": {"type": "string"},
					"evidence": {"type": "string"},
					"why_it_matters": {"type": "string"},
					"sources": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"contradiction_pct": {"type": "number"},
		"cost_analysis": {
			"type": "object",
			"properties": {
				"unit_cost": {"type": "string"},
				"programme_cost": {"type": "string"},
				"source": {"type": "string"}
			}
		},
		"human_in_loop_pct": {"type": "number"},
		"risk_mitigation_score": {"type": "number"},
		"risk_mitigation": {"type": "array", "items": {"type": "string"}}
	}
}`

var synthesisValidator = generative.MustValidator(synthesisSchema)

// Synthesizer reconciles claims against technical evidence into the
// final scored assessment. It is the only stage whose generative call
// is load-bearing: an invalid response gets one retry, then fails the
// run.
type Synthesizer struct {
	generator *generative.Service
	logger    observability.Logger
}

// NewSynthesizer creates the final pipeline stage.
func NewSynthesizer(generator *generative.Service, logger observability.Logger) *Synthesizer {
	return &Synthesizer{
		generator: generator,
		logger:    logger.WithPrefix("synthesizer"),
	}
}

// Run executes the stage and returns the advanced state.
func (s *Synthesizer) Run(ctx context.Context, state *models.AnalysisState) (*models.AnalysisState, error) {
	prompt := s.buildPrompt(state)

	var result models.SynthesisResult
	err := s.generator.GenerateJSON(ctx, prompt, synthesisValidator, &result)
	if err != nil && errs.IsSchema(err) {
		s.logger.Warn("Synthesis output failed validation, retrying once", map[string]interface{}{
			"company": state.Company,
			"error":   err.Error(),
		})
		err = s.generator.GenerateJSON(ctx, prompt, synthesisValidator, &result)
	}
	if err != nil {
		return nil, err
	}

	if clamped, wasClamped := scoring.ClampRiskScore(result.RiskScore); wasClamped {
		s.logger.Warn("Risk score out of range, clamping", map[string]interface{}{
			"company": state.Company,
			"raw":     result.RiskScore,
			"clamped": clamped,
		})
		result.RiskScore = clamped
	}
	if len(result.ScoreDrivers) > maxScoreDrivers {
		result.ScoreDrivers = result.ScoreDrivers[:maxScoreDrivers]
	}

	supported := make([]models.Contradiction, 0, len(result.Contradictions))
	for _, c := range result.Contradictions {
		if c.Supported() {
			supported = append(supported, c)
		}
	}
	if dropped := len(result.Contradictions) - len(supported); dropped > 0 {
		s.logger.Warn("Dropping uncited contradictions", map[string]interface{}{
			"company": state.Company,
			"dropped": dropped,
		})
	}
	result.Contradictions = supported

	s.logger.Info("Synthesis complete", map[string]interface{}{
		"company":        state.Company,
		"risk_score":     result.RiskScore,
		"contradictions": len(result.Contradictions),
	})
	return state.WithSynthesis(result), nil
}

func (s *Synthesizer) buildPrompt(state *models.AnalysisState) string {
	var b strings.Builder
	b.WriteString("You are a synthesis analyst scoring the gap between a company's public claims and its technical filings.\n\n")
	fmt.Fprintf(&b, "Company: %s\n\n", state.Company)

	b.WriteString("== Public claims ==\n")
	if len(state.Claims) == 0 {
		b.WriteString("(none found)\n")
	} else {
		b.WriteString(truncateRunes(strings.Join(state.Claims, "\n"), claimsBudget))
		b.WriteString("\n")
	}

	b.WriteString("\n== Technical capabilities ==\n")
	if state.TechnicalCapabilities == "" {
		b.WriteString("(none found)\n")
	} else {
		b.WriteString(truncateRunes(state.TechnicalCapabilities, capabilitiesBudget))
		b.WriteString("\n")
	}

	b.WriteString("\n== Dual-use risks ==\n")
	if state.DualUseRisks == "" {
		b.WriteString("(none identified)\n")
	} else {
		b.WriteString(truncateRunes(state.DualUseRisks, risksBudget))
		b.WriteString("\n")
	}

	if sources := patentSources(state.TechnicalFindings); len(sources) > 0 {
		b.WriteString("\n== Citable patent sources ==\n")
		b.WriteString(strings.Join(sources, ", "))
		b.WriteString("\n")
	}

	b.WriteString("\nReturn ONLY a JSON object, no code fences, shaped as:\n")
	b.WriteString(`{"risk_score": <0-100 integer>, "score_drivers": [<up to 3 strings>], "contradictions": [{"claim": "...", "evidence": "...", "why_it_matters": "...", "sources": ["..."]}]}`)
	b.WriteString("\nAim for 3 to 7 contradictions, each citing at least one source from the evidence above.")
	b.WriteString("\nOptionally include: contradiction_pct (0-100), cost_analysis {unit_cost, programme_cost, source}, human_in_loop_pct, risk_mitigation_score (0-100), risk_mitigation (list of strings).")
	return b.String()
}

// patentSources lists the distinct patent IDs the model may cite,
// in retrieval order.
func patentSources(findings []models.TechnicalFinding) []string {
	seen := make(map[string]struct{}, len(findings))
	sources := make([]string, 0, maxPatentSources)
	for _, f := range findings {
		if f.PatentID == "" {
			continue
		}
		if _, ok := seen[f.PatentID]; ok {
			continue
		}
		seen[f.PatentID] = struct{}{}
		sources = append(sources, f.PatentID)
		if len(sources) == maxPatentSources {
			break
		}
	}
	return sources
}

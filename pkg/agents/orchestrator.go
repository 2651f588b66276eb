package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/glasshouse-ai/glasshouse/pkg/models"
	"github.com/glasshouse-ai/glasshouse/pkg/observability"
	"github.com/glasshouse-ai/glasshouse/pkg/streaming"
	"github.com/glasshouse-ai/glasshouse/pkg/vectorstore"

	errs "github.com/glasshouse-ai/glasshouse/pkg/errors"
)

// Orchestrator drives the three stages in order. A stage failure stops
// the run: the failing stage is marked error, later stages stay pending,
// and the terminal error event is published before returning.
type Orchestrator struct {
	store        vectorstore.Store
	investigator *Investigator
	forensic     *Forensic
	synthesizer  *Synthesizer
	cfg          Config
	metrics      *observability.Metrics
	logger       observability.Logger
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(store vectorstore.Store, investigator *Investigator, forensic *Forensic, synthesizer *Synthesizer, cfg Config, metrics *observability.Metrics, logger observability.Logger) *Orchestrator {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Orchestrator{
		store:        store,
		investigator: investigator,
		forensic:     forensic,
		synthesizer:  synthesizer,
		cfg:          cfg.withDefaults(),
		metrics:      metrics,
		logger:       logger.WithPrefix("orchestrator"),
	}
}

type stageStep struct {
	name models.Stage
	node streaming.Node
	run  func(context.Context, *models.AnalysisState) (*models.AnalysisState, error)
	data func(*models.AnalysisState) map[string]interface{}
}

// Run executes one analysis for the company. stream may be nil for
// blocking callers; when set, every stage completion and exactly one
// terminal event are published to it. The returned result carries the
// partial state even on failure.
func (o *Orchestrator) Run(ctx context.Context, company, userQuery string, stream *streaming.Stream) (*models.AnalysisResult, error) {
	if strings.TrimSpace(company) == "" {
		return nil, errs.Validation("agents.run", "company is required")
	}

	runID := uuid.New().String()
	state := models.NewAnalysisState(runID, company, userQuery)

	stats, err := o.store.Stats(ctx, company)
	if err != nil {
		o.logger.Warn("Coverage stats unavailable, continuing with zero counts", map[string]interface{}{
			"run_id":  runID,
			"company": company,
			"error":   err.Error(),
		})
	} else {
		state = state.WithStats(stats)
	}

	o.logger.Info("Analysis run starting", map[string]interface{}{
		"run_id":  runID,
		"company": company,
	})

	steps := []stageStep{
		{models.StageInvestigator, streaming.NodeInvestigator, o.investigator.Run, investigatorData},
		{models.StageForensic, streaming.NodeForensic, o.forensic.Run, forensicData},
		{models.StageSynthesizer, streaming.NodeSynthesizer, o.synthesizer.Run, synthesizerData},
	}

	for _, step := range steps {
		state = state.WithStageStatus(step.name, models.StageRunning)

		stageCtx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
		start := time.Now()
		next, err := step.run(stageCtx, state)
		cancel()
		o.metrics.RecordStage(string(step.name), time.Since(start).Seconds(), err)

		if err != nil {
			msg := fmt.Sprintf("%s stage failed: %s", step.name, err.Error())
			state = state.WithError(step.name, msg)
			o.logger.Error("Stage failed", map[string]interface{}{
				"run_id": runID,
				"stage":  string(step.name),
				"error":  err.Error(),
			})
			if stream != nil {
				stream.Publish(streaming.Failed(msg))
			}
			o.metrics.RecordRun("error")
			return state.Result(), err
		}

		state = next
		if stream != nil {
			stream.Publish(streaming.StageDone(step.node, step.data(state)))
		}
	}

	result := state.Result()
	if stream != nil {
		stream.Publish(streaming.Completed(result))
	}
	o.metrics.RecordRun("complete")
	o.logger.Info("Analysis run complete", map[string]interface{}{
		"run_id":     runID,
		"company":    company,
		"risk_score": result.RiskScore,
	})
	return result, nil
}

func investigatorData(state *models.AnalysisState) map[string]interface{} {
	return map[string]interface{}{
		"claims":       state.Claims,
		"product_refs": state.ProductRefs,
	}
}

func forensicData(state *models.AnalysisState) map[string]interface{} {
	return map[string]interface{}{
		"technical_findings":     state.TechnicalFindings,
		"technical_capabilities": state.TechnicalCapabilities,
		"dual_use_risks":         state.DualUseRisks,
	}
}

func synthesizerData(state *models.AnalysisState) map[string]interface{} {
	data := map[string]interface{}{
		"risk_score":     state.RiskScore,
		"score_drivers":  state.ScoreDrivers,
		"contradictions": state.Contradictions,
	}
	if state.ContradictionPct != nil {
		data["contradiction_pct"] = *state.ContradictionPct
	}
	if state.CostAnalysis != nil {
		data["cost_analysis"] = state.CostAnalysis
	}
	if state.HumanInLoopPct != nil {
		data["human_in_loop_pct"] = *state.HumanInLoopPct
	}
	if state.RiskMitigationScore != nil {
		data["risk_mitigation_score"] = *state.RiskMitigationScore
	}
	if len(state.RiskMitigation) > 0 {
		data["risk_mitigation"] = state.RiskMitigation
	}
	return data
}

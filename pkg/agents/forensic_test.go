package agents

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasshouse-ai/glasshouse/pkg/models"
)

func TestForensic_BuildsFindingsFromPatents(t *testing.T) {
	h := newHarness("The filings describe autonomous engagement.\n\nDual-Use Risks\nUnattended operation is possible.")
	h.seedPatent(t, "Helios Dynamics",
		"Autonomous target acquisition and engagement without operator confirmation.",
		map[string]any{"patent_id": "US-2024-0183921"})
	h.seedPatent(t, "Helios Dynamics",
		"Swarm coordination protocol for unmanned platforms.",
		map[string]any{"patent_id": "US-2023-0099417"})

	state := models.NewAnalysisState("run-1", "Helios Dynamics", "")
	next, err := h.forensic().Run(context.Background(), state)
	require.NoError(t, err)

	require.Len(t, next.TechnicalFindings, 2)
	ids := []string{next.TechnicalFindings[0].PatentID, next.TechnicalFindings[1].PatentID}
	assert.ElementsMatch(t, []string{"US-2024-0183921", "US-2023-0099417"}, ids)
	for _, finding := range next.TechnicalFindings {
		assert.NotEmpty(t, finding.Excerpt)
		assert.Contains(t, []string{"high", "medium", "low"}, finding.Relevance)
	}

	assert.Equal(t, "The filings describe autonomous engagement.", next.TechnicalCapabilities)
	assert.True(t, strings.HasPrefix(next.DualUseRisks, "Dual-Use Risks"))
	assert.Contains(t, next.DualUseRisks, "Unattended operation")
	assert.Equal(t, models.StageDone, next.StageStatus[models.StageForensic])
}

func TestForensic_FallsBackToDocumentID(t *testing.T) {
	h := newHarness("capabilities text without a risk section")
	h.seedPatent(t, "Helios Dynamics", "Guidance system for loitering munitions.", nil)

	state := models.NewAnalysisState("run-1", "Helios Dynamics", "")
	next, err := h.forensic().Run(context.Background(), state)
	require.NoError(t, err)

	require.Len(t, next.TechnicalFindings, 1)
	assert.NotEmpty(t, next.TechnicalFindings[0].PatentID)
	// Without the section marker the whole narrative is capabilities.
	assert.Equal(t, "capabilities text without a risk section", next.TechnicalCapabilities)
	assert.Empty(t, next.DualUseRisks)
}

func TestForensic_NarrativeFailureDegrades(t *testing.T) {
	h := newHarness()
	h.mock.Fail(stderrors.New("model overloaded"))
	h.seedPatent(t, "Helios Dynamics",
		"Autonomous engagement system.",
		map[string]any{"patent_id": "US-2024-0183921"})

	state := models.NewAnalysisState("run-1", "Helios Dynamics", "")
	next, err := h.forensic().Run(context.Background(), state)
	require.NoError(t, err)

	require.Len(t, next.TechnicalFindings, 1)
	assert.Equal(t, "US-2024-0183921", next.TechnicalFindings[0].PatentID)
	assert.Empty(t, next.TechnicalCapabilities)
	assert.Empty(t, next.DualUseRisks)
	assert.Equal(t, models.StageDone, next.StageStatus[models.StageForensic])
}

func TestForensic_NoPatentsSkipsNarrative(t *testing.T) {
	h := newHarness()
	h.seedNews(t, "Helios Dynamics", "Only press coverage here.", nil)

	state := models.NewAnalysisState("run-1", "Helios Dynamics", "")
	next, err := h.forensic().Run(context.Background(), state)
	require.NoError(t, err)

	assert.Empty(t, next.TechnicalFindings)
	assert.Empty(t, next.TechnicalCapabilities)
	assert.Empty(t, h.mock.Prompts())
}

func TestForensic_PromptIncludesClaims(t *testing.T) {
	h := newHarness("narrative")
	h.seedPatent(t, "Helios Dynamics", "Autonomous engagement system.", nil)

	state := models.NewAnalysisState("run-1", "Helios Dynamics", "").
		WithInvestigation([]string{"We always keep a human in the loop."}, nil)
	_, err := h.forensic().Run(context.Background(), state)
	require.NoError(t, err)

	prompts := h.mock.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "human in the loop")
	assert.Contains(t, prompts[0], "== Patent evidence ==")
	assert.Contains(t, prompts[0], "Dual-Use Risks")
}

func TestRelevanceBand(t *testing.T) {
	tests := []struct {
		similarity float64
		want       string
	}{
		{0.9, "high"},
		{0.75, "high"},
		{0.74, "medium"},
		{0.5, "medium"},
		{0.49, "low"},
		{0.0, "low"},
		{-0.2, "low"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relevanceBand(tt.similarity), "similarity %v", tt.similarity)
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/glasshouse-ai/glasshouse/pkg/errors"
	"github.com/glasshouse-ai/glasshouse/pkg/streaming"
)

// parseSSE decodes a recorded event-stream body into the published events.
func parseSSE(t *testing.T, body string) []streaming.Event {
	t.Helper()
	var events []streaming.Event
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		require.True(t, strings.HasPrefix(frame, "data: "), "frame %q lacks the data prefix", frame)
		var event streaming.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &event))
		events = append(events, event)
	}
	return events
}

func TestAnalyzeStream_DeliversStageEventsInOrder(t *testing.T) {
	api := newTestAPI(t)
	result := completedResult()
	api.analyzer.result = result
	api.analyzer.events = []streaming.Event{
		streaming.StageDone(streaming.NodeInvestigator, map[string]interface{}{"stats": result.Stats}),
		streaming.StageDone(streaming.NodeForensic, map[string]interface{}{"contradictions": result.Contradictions}),
		streaming.StageDone(streaming.NodeSynthesizer, map[string]interface{}{"risk_score": result.RiskScore}),
		streaming.Completed(result),
	}

	w := api.do(t, http.MethodPost, "/api/v1/analyze/stream", AnalyzeRequest{Company: "Helios Dynamics"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, streaming.NodeInvestigator, events[0].Node)
	assert.Equal(t, streaming.NodeForensic, events[1].Node)
	assert.Equal(t, streaming.NodeSynthesizer, events[2].Node)
	assert.Equal(t, streaming.NodeComplete, events[3].Node)
	for _, event := range events {
		assert.Equal(t, "done", event.Status)
	}

	terminal := events[3].Data.(map[string]interface{})
	assert.Equal(t, "run-1", terminal["run_id"])
	assert.Equal(t, float64(72), terminal["risk_score"])

	require.Eventually(t, func() bool { return api.sink.count() == 1 },
		time.Second, 10*time.Millisecond, "completed run was never persisted")
}

func TestAnalyzeStream_FailureStillSendsTerminalEvent(t *testing.T) {
	api := newTestAPI(t)
	api.analyzer.result = nil
	api.analyzer.err = errs.Timeout(context.DeadlineExceeded, "agents.investigator")
	api.analyzer.events = nil

	w := api.do(t, http.MethodPost, "/api/v1/analyze/stream", AnalyzeRequest{Company: "Helios Dynamics"})
	require.Equal(t, http.StatusOK, w.Code)

	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, streaming.NodeError, events[0].Node)
	assert.Equal(t, "error", events[0].Status)
	assert.Contains(t, events[0].Message, "timeout")
	assert.Zero(t, api.sink.count())
}

func TestAnalyzeStream_StageFailureAfterProgress(t *testing.T) {
	api := newTestAPI(t)
	api.analyzer.result = nil
	api.analyzer.err = errs.Unavailable(context.DeadlineExceeded, "agents.forensic")
	api.analyzer.events = []streaming.Event{
		streaming.StageDone(streaming.NodeInvestigator, map[string]interface{}{"documents": 4}),
		streaming.Failed("forensic stage failed"),
	}

	w := api.do(t, http.MethodPost, "/api/v1/analyze/stream", AnalyzeRequest{Company: "Helios Dynamics"})
	require.Equal(t, http.StatusOK, w.Code)

	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, streaming.NodeInvestigator, events[0].Node)
	assert.Equal(t, streaming.NodeError, events[1].Node)
	assert.Equal(t, "forensic stage failed", events[1].Message)
}

func TestAnalyzeStream_RejectsEmptyCompanyBeforeStreaming(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/api/v1/analyze/stream", AnalyzeRequest{Company: "  "})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, decodeBody(t, w)["error"], "company is required")
}

func TestAnalyzeStream_RejectsMalformedBody(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/stream", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

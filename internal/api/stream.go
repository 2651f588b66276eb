package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/glasshouse-ai/glasshouse/pkg/streaming"
)

// analyzeStream runs an analysis and delivers its progress events as
// Server-Sent Events, one `data:` line per event. The run itself is
// detached from the request context: a consumer that disconnects stops
// receiving events, but the analysis finishes and persists.
func (h *Handler) analyzeStream(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Rejections must happen before the response switches to the event
	// stream; past this point every outcome arrives as a terminal event.
	if strings.TrimSpace(req.Company) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "company is required"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	stream := streaming.NewStream(h.streamCfg, h.metrics, h.logger)
	runCtx := context.WithoutCancel(c.Request.Context())

	go func() {
		result, err := h.analyzer.Run(runCtx, req.Company, req.Query, stream)
		if err != nil {
			// Failures before the first stage never reach the stream;
			// make sure the consumer still gets a terminal event.
			stream.Publish(streaming.Failed(err.Error()))
			return
		}
		h.persistResult(runCtx, result)
	}()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			stream.CloseEarly()
			h.logger.Info("Stream consumer disconnected", map[string]interface{}{
				"company": req.Company,
			})
			return
		case event, ok := <-stream.Events():
			if !ok {
				return
			}
			if err := writeSSE(c.Writer, event); err != nil {
				stream.CloseEarly()
				h.logger.Warn("Stream write failed", map[string]interface{}{
					"company": req.Company,
					"error":   err.Error(),
				})
				return
			}
			c.Writer.Flush()
		}
	}
}

// writeSSE renders one event in SSE wire format: a single data line with
// the JSON payload, followed by a blank line.
func writeSSE(w io.Writer, event streaming.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

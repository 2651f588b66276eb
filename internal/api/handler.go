// Package api implements the REST and SSE surface of the analysis
// service.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/glasshouse-ai/glasshouse/internal/ingestion"
	errs "github.com/glasshouse-ai/glasshouse/pkg/errors"
	"github.com/glasshouse-ai/glasshouse/pkg/models"
	"github.com/glasshouse-ai/glasshouse/pkg/observability"
	"github.com/glasshouse-ai/glasshouse/pkg/scoring"
	"github.com/glasshouse-ai/glasshouse/pkg/streaming"
)

// Ingestor is the evidence intake surface the handlers depend on.
type Ingestor interface {
	Ingest(ctx context.Context, company string, items []ingestion.SourceItem) (*ingestion.Report, error)
	Stats(ctx context.Context, company string) (models.CoverageStats, error)
	Companies(ctx context.Context) ([]string, error)
}

// Analyzer runs one analysis pipeline, optionally publishing progress
// events to a stream.
type Analyzer interface {
	Run(ctx context.Context, company, userQuery string, stream *streaming.Stream) (*models.AnalysisResult, error)
}

// ResultSink persists completed analyses. A nil sink disables
// persistence, which is the memory-store development mode.
type ResultSink interface {
	Save(ctx context.Context, result *models.AnalysisResult) error
}

// RankingSource serves the stored ranking snapshot.
type RankingSource interface {
	Load(ctx context.Context) (models.RankingSnapshot, error)
}

// Handler handles API requests for the analysis service.
type Handler struct {
	ingestor  Ingestor
	analyzer  Analyzer
	results   ResultSink
	rankings  RankingSource
	engine    *scoring.Engine
	streamCfg streaming.Config
	metrics   *observability.Metrics
	logger    observability.Logger
}

// NewHandler creates an API handler. results and rankings may be nil when
// no relational store is configured.
func NewHandler(
	ingestor Ingestor,
	analyzer Analyzer,
	results ResultSink,
	rankings RankingSource,
	engine *scoring.Engine,
	streamCfg streaming.Config,
	metrics *observability.Metrics,
	logger observability.Logger,
) *Handler {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if engine == nil {
		engine = scoring.NewEngine(scoring.DefaultConfig())
	}
	return &Handler{
		ingestor:  ingestor,
		analyzer:  analyzer,
		results:   results,
		rankings:  rankings,
		engine:    engine,
		streamCfg: streamCfg,
		metrics:   metrics,
		logger:    logger.WithPrefix("api"),
	}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/companies", h.listCompanies)
		api.GET("/stats/:company", h.companyStats)
		api.POST("/ingest", h.ingest)
		api.POST("/analyze", h.analyze)
		api.POST("/analyze/stream", h.analyzeStream)
		api.GET("/rankings", h.listRankings)
	}
}

// AnalyzeRequest asks for one analysis run.
type AnalyzeRequest struct {
	Company string `json:"company"`
	Query   string `json:"query"`
}

// IngestRequest submits a batch of evidence items for one company.
type IngestRequest struct {
	Company string                 `json:"company"`
	Items   []ingestion.SourceItem `json:"items"`
}

func (h *Handler) listCompanies(c *gin.Context) {
	companies, err := h.ingestor.Companies(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if companies == nil {
		companies = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"companies": companies,
		"count":     len(companies),
	})
}

func (h *Handler) companyStats(c *gin.Context) {
	company := c.Param("company")
	stats, err := h.ingestor.Stats(c.Request.Context(), company)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"company": company,
		"stats":   stats,
	})
}

func (h *Handler) ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.ingestor.Ingest(c.Request.Context(), req.Company, req.Items)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.analyzer.Run(c.Request.Context(), req.Company, req.Query, nil)
	if err != nil {
		payload := gin.H{"error": err.Error()}
		if result != nil {
			payload["result"] = result
		}
		c.JSON(statusFor(err), payload)
		return
	}

	h.persistResult(c.Request.Context(), result)
	c.JSON(http.StatusOK, gin.H{
		"result": result,
		"grade":  h.engine.GradeResult(result),
	})
}

func (h *Handler) listRankings(c *gin.Context) {
	if h.rankings == nil {
		c.JSON(http.StatusOK, models.RankingSnapshot{Rankings: []models.RankingRecord{}})
		return
	}
	snapshot, err := h.rankings.Load(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// persistResult stores a completed run. Persistence failures are logged
// and never fail the request that produced the result.
func (h *Handler) persistResult(ctx context.Context, result *models.AnalysisResult) {
	if h.results == nil || result == nil {
		return
	}
	if err := h.results.Save(ctx, result); err != nil {
		h.logger.Error("Failed to persist analysis result", map[string]interface{}{
			"run_id":  result.RunID,
			"company": result.Company,
			"error":   err.Error(),
		})
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", map[string]interface{}{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		})
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// statusFor maps an error class onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errs.IsValidation(err):
		return http.StatusBadRequest
	case errs.IsNotFound(err):
		return http.StatusNotFound
	case errs.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errs.IsSchema(err):
		return http.StatusBadGateway
	case errs.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

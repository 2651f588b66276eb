package ranking

import (
	"context"
	"time"

	"github.com/glasshouse-ai/glasshouse/pkg/models"
	"github.com/glasshouse-ai/glasshouse/pkg/observability"
	"github.com/glasshouse-ai/glasshouse/pkg/scoring"
)

// DefaultLookback bounds how far back the snapshot builder reads
// completed analyses.
const DefaultLookback = 30 * 24 * time.Hour

// ResultSource supplies the completed analyses a snapshot is built from.
type ResultSource interface {
	RecentCompleted(ctx context.Context, since time.Time) ([]*models.AnalysisResult, error)
}

// SnapshotStore persists and serves ranking snapshots.
type SnapshotStore interface {
	Replace(ctx context.Context, snapshot models.RankingSnapshot) error
	Load(ctx context.Context) (models.RankingSnapshot, error)
}

// Service rebuilds the cross-company ranking snapshot from recent
// completed analyses.
type Service struct {
	results   ResultSource
	snapshots SnapshotStore
	engine    *scoring.Engine
	lookback  time.Duration
	metrics   *observability.Metrics
	logger    observability.Logger
}

// NewService wires a snapshot builder.
func NewService(results ResultSource, snapshots SnapshotStore, engine *scoring.Engine, lookback time.Duration, metrics *observability.Metrics, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Service{
		results:   results,
		snapshots: snapshots,
		engine:    engine,
		lookback:  lookback,
		metrics:   metrics,
		logger:    logger.WithPrefix("ranking"),
	}
}

// Run reads the completed analyses inside the lookback window, grades
// every company found there, and stores the resulting snapshot. The
// stored table always reflects exactly one rebuild.
func (s *Service) Run(ctx context.Context) (models.RankingSnapshot, error) {
	now := time.Now().UTC()

	results, err := s.results.RecentCompleted(ctx, now.Add(-s.lookback))
	if err != nil {
		s.metrics.RecordRankingRun("error", 0)
		return models.RankingSnapshot{}, err
	}

	inputs := make([]scoring.AnalysisInput, 0, len(results))
	for _, result := range results {
		inputs = append(inputs, scoring.InputFromResult(result))
	}
	snapshot := s.engine.BuildSnapshot(inputs, now)

	if err := s.snapshots.Replace(ctx, snapshot); err != nil {
		s.metrics.RecordRankingRun("error", 0)
		return models.RankingSnapshot{}, err
	}

	s.metrics.RecordRankingRun("ok", snapshot.TotalCompanies)
	s.logger.Info("Ranking snapshot rebuilt", map[string]interface{}{
		"companies": snapshot.TotalCompanies,
		"analyses":  len(results),
	})
	return snapshot, nil
}

// Snapshot returns the latest stored snapshot.
func (s *Service) Snapshot(ctx context.Context) (models.RankingSnapshot, error) {
	return s.snapshots.Load(ctx)
}

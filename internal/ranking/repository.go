// Package ranking persists completed analyses and maintains the
// cross-company grading snapshot derived from them.
package ranking

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	errs "github.com/glasshouse-ai/glasshouse/pkg/errors"
	"github.com/glasshouse-ai/glasshouse/pkg/models"
	"github.com/glasshouse-ai/glasshouse/pkg/observability"
)

// ResultRepository reads and writes completed analysis runs.
type ResultRepository struct {
	db     *sqlx.DB
	logger observability.Logger
}

// NewResultRepository creates a repository over an open connection pool.
func NewResultRepository(db *sqlx.DB, logger observability.Logger) *ResultRepository {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &ResultRepository{db: db, logger: logger.WithPrefix("ranking")}
}

// Save writes one analysis run. Runs are immutable once written, so
// saving the same run id twice is a no-op rather than an overwrite.
func (r *ResultRepository) Save(ctx context.Context, result *models.AnalysisResult) error {
	if result == nil || result.RunID == "" {
		return errs.Validation("ranking.save", "result with a run id is required")
	}

	scoreDrivers, err := json.Marshal(result.ScoreDrivers)
	if err != nil {
		return errs.Internal(err, "ranking.save")
	}
	products, err := json.Marshal(result.Products)
	if err != nil {
		return errs.Internal(err, "ranking.save")
	}
	contradictions, err := json.Marshal(result.Contradictions)
	if err != nil {
		return errs.Internal(err, "ranking.save")
	}
	stats, err := json.Marshal(result.Stats)
	if err != nil {
		return errs.Internal(err, "ranking.save")
	}
	riskMitigation, err := json.Marshal(result.RiskMitigation)
	if err != nil {
		return errs.Internal(err, "ranking.save")
	}
	stageStatus, err := json.Marshal(result.StageStatus)
	if err != nil {
		return errs.Internal(err, "ranking.save")
	}
	var costAnalysis interface{}
	if result.CostAnalysis != nil {
		raw, err := json.Marshal(result.CostAnalysis)
		if err != nil {
			return errs.Internal(err, "ranking.save")
		}
		costAnalysis = raw
	}

	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO analysis_results (
			run_id, company, risk_score, score_drivers, products,
			contradictions, stats, contradiction_pct, cost_analysis,
			human_in_loop_pct, risk_mitigation_score, risk_mitigation,
			stage_status, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (run_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query,
		result.RunID,
		result.Company,
		result.RiskScore,
		scoreDrivers,
		products,
		contradictions,
		stats,
		nullableFloat(result.ContradictionPct),
		costAnalysis,
		nullableFloat(result.HumanInLoopPct),
		nullableFloat(result.RiskMitigationScore),
		riskMitigation,
		stageStatus,
		result.Error,
		createdAt,
	); err != nil {
		return errs.Unavailable(err, "ranking.save")
	}

	r.logger.Debug("Stored analysis result", map[string]interface{}{
		"run_id":  result.RunID,
		"company": result.Company,
	})
	return nil
}

// RecentCompleted returns every completed run newer than since, oldest
// first. Failed runs never contribute to rankings.
func (r *ResultRepository) RecentCompleted(ctx context.Context, since time.Time) ([]*models.AnalysisResult, error) {
	const query = `
		SELECT
			run_id, company, risk_score, score_drivers, products,
			contradictions, stats, contradiction_pct, cost_analysis,
			human_in_loop_pct, risk_mitigation_score, risk_mitigation,
			stage_status, error, created_at
		FROM analysis_results
		WHERE created_at >= $1 AND error = ''
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, errs.Unavailable(err, "ranking.recent")
	}
	defer func() {
		_ = rows.Close()
	}()

	var results []*models.AnalysisResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Unavailable(err, "ranking.recent")
	}
	return results, nil
}

func scanResult(rows *sql.Rows) (*models.AnalysisResult, error) {
	var (
		result              models.AnalysisResult
		scoreDrivers        []byte
		products            []byte
		contradictions      []byte
		stats               []byte
		contradictionPct    sql.NullFloat64
		costAnalysis        []byte
		humanInLoopPct      sql.NullFloat64
		riskMitigationScore sql.NullFloat64
		riskMitigation      []byte
		stageStatus         []byte
	)
	if err := rows.Scan(
		&result.RunID,
		&result.Company,
		&result.RiskScore,
		&scoreDrivers,
		&products,
		&contradictions,
		&stats,
		&contradictionPct,
		&costAnalysis,
		&humanInLoopPct,
		&riskMitigationScore,
		&riskMitigation,
		&stageStatus,
		&result.Error,
		&result.CreatedAt,
	); err != nil {
		return nil, errs.Internal(err, "ranking.recent")
	}

	for _, col := range []struct {
		raw []byte
		out interface{}
	}{
		{scoreDrivers, &result.ScoreDrivers},
		{products, &result.Products},
		{contradictions, &result.Contradictions},
		{stats, &result.Stats},
		{riskMitigation, &result.RiskMitigation},
		{stageStatus, &result.StageStatus},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.out); err != nil {
			return nil, errs.Internal(err, "ranking.recent")
		}
	}
	if len(costAnalysis) > 0 {
		result.CostAnalysis = &models.CostAnalysis{}
		if err := json.Unmarshal(costAnalysis, result.CostAnalysis); err != nil {
			return nil, errs.Internal(err, "ranking.recent")
		}
	}
	if contradictionPct.Valid {
		result.ContradictionPct = &contradictionPct.Float64
	}
	if humanInLoopPct.Valid {
		result.HumanInLoopPct = &humanInLoopPct.Float64
	}
	if riskMitigationScore.Valid {
		result.RiskMitigationScore = &riskMitigationScore.Float64
	}
	return &result, nil
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

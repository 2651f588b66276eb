package ranking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	errs "github.com/glasshouse-ai/glasshouse/pkg/errors"
	"github.com/glasshouse-ai/glasshouse/pkg/models"
	"github.com/glasshouse-ai/glasshouse/pkg/observability"
)

// SnapshotRepository maintains the company_rankings table as an exact
// copy of the latest snapshot, including its worst-first ordering.
type SnapshotRepository struct {
	db     *sqlx.DB
	logger observability.Logger
}

// NewSnapshotRepository creates a repository over an open connection pool.
func NewSnapshotRepository(db *sqlx.DB, logger observability.Logger) *SnapshotRepository {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &SnapshotRepository{db: db, logger: logger.WithPrefix("ranking")}
}

// Replace upserts every record of the snapshot and prunes companies that
// fell out of it, all in one transaction. The position column freezes the
// snapshot ordering so reads never re-derive it.
func (r *SnapshotRepository) Replace(ctx context.Context, snapshot models.RankingSnapshot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errs.Unavailable(err, "ranking.replace")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const upsert = `
		INSERT INTO company_rankings (
			company, grades, overall, overall_score, aggregated_scores,
			product_count, position, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (company) DO UPDATE SET
			grades = EXCLUDED.grades,
			overall = EXCLUDED.overall,
			overall_score = EXCLUDED.overall_score,
			aggregated_scores = EXCLUDED.aggregated_scores,
			product_count = EXCLUDED.product_count,
			position = EXCLUDED.position,
			generated_at = EXCLUDED.generated_at`

	for position, record := range snapshot.Rankings {
		grades, err := json.Marshal(record.Grades)
		if err != nil {
			return errs.Internal(err, "ranking.replace")
		}
		aggregated, err := json.Marshal(record.AggregatedScores)
		if err != nil {
			return errs.Internal(err, "ranking.replace")
		}
		if _, err := tx.ExecContext(ctx, upsert,
			record.Company,
			grades,
			string(record.Overall),
			record.OverallScore,
			aggregated,
			record.ProductCount,
			position,
			snapshot.GeneratedAt,
		); err != nil {
			return errs.Unavailable(err, "ranking.replace")
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM company_rankings WHERE generated_at <> $1`,
		snapshot.GeneratedAt,
	); err != nil {
		return errs.Unavailable(err, "ranking.replace")
	}

	if err := tx.Commit(); err != nil {
		return errs.Unavailable(err, "ranking.replace")
	}

	r.logger.Info("Ranking snapshot stored", map[string]interface{}{
		"companies": snapshot.TotalCompanies,
	})
	return nil
}

// Load returns the stored snapshot in its persisted worst-first order.
// An empty table yields an empty snapshot, not an error.
func (r *SnapshotRepository) Load(ctx context.Context) (models.RankingSnapshot, error) {
	const query = `
		SELECT company, grades, overall, overall_score, aggregated_scores,
			product_count, generated_at
		FROM company_rankings
		ORDER BY position ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return models.RankingSnapshot{}, errs.Unavailable(err, "ranking.load")
	}
	defer func() {
		_ = rows.Close()
	}()

	snapshot := models.RankingSnapshot{Rankings: []models.RankingRecord{}}
	var generatedAt time.Time
	for rows.Next() {
		var (
			record     models.RankingRecord
			grades     []byte
			overall    string
			aggregated []byte
		)
		if err := rows.Scan(
			&record.Company,
			&grades,
			&overall,
			&record.OverallScore,
			&aggregated,
			&record.ProductCount,
			&record.GeneratedAt,
		); err != nil {
			return models.RankingSnapshot{}, errs.Internal(err, "ranking.load")
		}
		record.Overall = models.Grade(overall)
		if len(grades) > 0 {
			if err := json.Unmarshal(grades, &record.Grades); err != nil {
				return models.RankingSnapshot{}, errs.Internal(err, "ranking.load")
			}
		}
		if len(aggregated) > 0 {
			if err := json.Unmarshal(aggregated, &record.AggregatedScores); err != nil {
				return models.RankingSnapshot{}, errs.Internal(err, "ranking.load")
			}
		}
		if record.GeneratedAt.After(generatedAt) {
			generatedAt = record.GeneratedAt
		}
		snapshot.Rankings = append(snapshot.Rankings, record)
	}
	if err := rows.Err(); err != nil {
		return models.RankingSnapshot{}, errs.Unavailable(err, "ranking.load")
	}

	snapshot.GeneratedAt = generatedAt
	snapshot.TotalCompanies = len(snapshot.Rankings)
	return snapshot, nil
}

package ranking

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/glasshouse-ai/glasshouse/pkg/errors"
	"github.com/glasshouse-ai/glasshouse/pkg/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = mockDB.Close()
	})
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func fptr(v float64) *float64 { return &v }

func TestResultRepository_Save(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewResultRepository(db, nil)

	createdAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	result := &models.AnalysisResult{
		RunID:            "run-1",
		Company:          "Helios Dynamics",
		RiskScore:        72,
		ScoreDrivers:     []string{"Autonomy claims contradicted by filings"},
		Products:         []string{"https://img.example.com/helios/turret.png"},
		Contradictions:   []models.Contradiction{{Claim: "c", Evidence: "e", WhyItMatters: "w", Sources: []string{"US-1"}}},
		Stats:            models.CoverageStats{models.SourceTypeNews: 2},
		ContradictionPct: fptr(35),
		CostAnalysis:     &models.CostAnalysis{UnitCost: "$82.5M per unit"},
		StageStatus:      map[models.Stage]models.StageStatus{models.StageSynthesizer: models.StageDone},
		CreatedAt:        createdAt,
	}

	mock.ExpectExec("INSERT INTO analysis_results").
		WithArgs(
			"run-1", "Helios Dynamics", 72,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			35.0, sqlmock.AnyArg(), nil, nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(), "", createdAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(context.Background(), result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepository_SaveRejectsMissingRunID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewResultRepository(db, nil)

	assert.True(t, errs.IsValidation(repo.Save(context.Background(), nil)))
	assert.True(t, errs.IsValidation(repo.Save(context.Background(), &models.AnalysisResult{Company: "x"})))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepository_SaveUnavailableOnDBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewResultRepository(db, nil)

	mock.ExpectExec("INSERT INTO analysis_results").
		WillReturnError(stderrors.New("connection refused"))

	err := repo.Save(context.Background(), &models.AnalysisResult{RunID: "run-1", Company: "Helios Dynamics"})
	require.Error(t, err)
	assert.True(t, errs.IsRetryable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResultRepository_RecentCompleted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewResultRepository(db, nil)

	since := time.Date(2026, 7, 23, 0, 0, 0, 0, time.UTC)
	t1 := since.Add(24 * time.Hour)
	t2 := since.Add(48 * time.Hour)

	columns := []string{
		"run_id", "company", "risk_score", "score_drivers", "products",
		"contradictions", "stats", "contradiction_pct", "cost_analysis",
		"human_in_loop_pct", "risk_mitigation_score", "risk_mitigation",
		"stage_status", "error", "created_at",
	}
	rows := sqlmock.NewRows(columns).
		AddRow(
			"run-1", "Helios Dynamics", 72,
			[]byte(`["driver"]`), []byte(`["https://img.example.com/t.png"]`),
			[]byte(`[{"claim":"c","evidence":"e","why_it_matters":"w","sources":["US-1"]}]`),
			[]byte(`{"news":2,"patent":1}`), 35.0,
			[]byte(`{"unit_cost":"$82.5M per unit","programme_cost":"not disclosed","source":"press"}`),
			nil, nil, []byte(`[]`), []byte(`{"synthesizer":"done"}`), "", t1,
		).
		AddRow(
			"run-2", "Meridian Robotics", 20,
			[]byte(`[]`), []byte(`[]`), []byte(`[]`), []byte(`{}`),
			nil, nil, nil, 55.0, []byte(`["ethics board"]`), []byte(`{}`), "", t2,
		)

	mock.ExpectQuery("SELECT (.+) FROM analysis_results").
		WithArgs(since).
		WillReturnRows(rows)

	results, err := repo.RecentCompleted(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, results, 2)

	first := results[0]
	assert.Equal(t, "run-1", first.RunID)
	assert.Equal(t, "Helios Dynamics", first.Company)
	assert.Equal(t, 72, first.RiskScore)
	require.NotNil(t, first.ContradictionPct)
	assert.InDelta(t, 35, *first.ContradictionPct, 1e-9)
	require.NotNil(t, first.CostAnalysis)
	assert.Equal(t, "$82.5M per unit", first.CostAnalysis.UnitCost)
	assert.Nil(t, first.HumanInLoopPct)
	assert.Equal(t, 2, first.Stats[models.SourceTypeNews])
	require.Len(t, first.Contradictions, 1)
	assert.Equal(t, []string{"US-1"}, first.Contradictions[0].Sources)
	assert.Equal(t, models.StageDone, first.StageStatus[models.StageSynthesizer])

	second := results[1]
	assert.Nil(t, second.ContradictionPct)
	assert.Nil(t, second.CostAnalysis)
	require.NotNil(t, second.RiskMitigationScore)
	assert.InDelta(t, 55, *second.RiskMitigationScore, 1e-9)
	assert.Equal(t, []string{"ethics board"}, second.RiskMitigation)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_Replace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSnapshotRepository(db, nil)

	generatedAt := time.Date(2026, 8, 23, 6, 0, 0, 0, time.UTC)
	snapshot := models.RankingSnapshot{
		Rankings: []models.RankingRecord{
			{
				Company:          "Worst Corp",
				Grades:           map[string]models.Grade{models.MetricSafety: models.GradeF},
				Overall:          models.GradeF,
				OverallScore:     10,
				AggregatedScores: map[string]float64{"risk_score": 90},
				ProductCount:     1,
				GeneratedAt:      generatedAt,
			},
			{
				Company:          "Best Corp",
				Grades:           map[string]models.Grade{models.MetricSafety: models.GradeA},
				Overall:          models.GradeA,
				OverallScore:     90,
				AggregatedScores: map[string]float64{"risk_score": 10},
				ProductCount:     1,
				GeneratedAt:      generatedAt,
			},
		},
		GeneratedAt:    generatedAt,
		TotalCompanies: 2,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO company_rankings").
		WithArgs("Worst Corp", sqlmock.AnyArg(), "F", 10.0, sqlmock.AnyArg(), 1, 0, generatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO company_rankings").
		WithArgs("Best Corp", sqlmock.AnyArg(), "A", 90.0, sqlmock.AnyArg(), 1, 1, generatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM company_rankings").
		WithArgs(generatedAt).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.Replace(context.Background(), snapshot))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_ReplaceRollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSnapshotRepository(db, nil)

	snapshot := models.RankingSnapshot{
		Rankings:    []models.RankingRecord{{Company: "Acme"}},
		GeneratedAt: time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO company_rankings").
		WillReturnError(stderrors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), snapshot)
	require.Error(t, err)
	assert.True(t, errs.IsRetryable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_Load(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSnapshotRepository(db, nil)

	generatedAt := time.Date(2026, 8, 23, 6, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"company", "grades", "overall", "overall_score", "aggregated_scores",
		"product_count", "generated_at",
	}).
		AddRow("Worst Corp", []byte(`{"safety":"F"}`), "F", 10.0, []byte(`{"risk_score":90}`), 1, generatedAt).
		AddRow("Best Corp", []byte(`{"safety":"A"}`), "A", 90.0, []byte(`{"risk_score":10}`), 2, generatedAt)

	mock.ExpectQuery("SELECT (.+) FROM company_rankings").WillReturnRows(rows)

	snapshot, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshot.Rankings, 2)
	assert.Equal(t, "Worst Corp", snapshot.Rankings[0].Company)
	assert.Equal(t, models.GradeF, snapshot.Rankings[0].Overall)
	assert.Equal(t, models.GradeF, snapshot.Rankings[0].Grades[models.MetricSafety])
	assert.InDelta(t, 90, snapshot.Rankings[0].AggregatedScores["risk_score"], 1e-9)
	assert.Equal(t, 2, snapshot.Rankings[1].ProductCount)
	assert.Equal(t, generatedAt, snapshot.GeneratedAt)
	assert.Equal(t, 2, snapshot.TotalCompanies)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepository_LoadEmptyTable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSnapshotRepository(db, nil)

	mock.ExpectQuery("SELECT (.+) FROM company_rankings").
		WillReturnRows(sqlmock.NewRows([]string{
			"company", "grades", "overall", "overall_score", "aggregated_scores",
			"product_count", "generated_at",
		}))

	snapshot, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snapshot.Rankings)
	assert.Empty(t, snapshot.Rankings)
	assert.Zero(t, snapshot.TotalCompanies)
	require.NoError(t, mock.ExpectationsWereMet())
}

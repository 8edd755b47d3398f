package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	cfg := &config.Config{}
	cfg.Database.QueryTimeout = 5
	cfg.Database.TransactionTimeout = 5

	return NewRepository(cfg, db), mock
}

func TestCreateJobSet(t *testing.T) {
	repo, mock := newMockRepository(t)
	createdAt := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	js := &domain.JobSet{
		Name:        "周计划",
		Description: "测试",
		Jobs: []domain.Job{
			{Name: "A", Deadline: 2, Profit: 100},
			{Name: "B", Deadline: 1, Profit: 19},
		},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO job_sets")).
		WithArgs("周计划", "测试").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "version"}).AddRow(int64(9), createdAt, int64(1)))
	for i, job := range js.Jobs {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO job_set_jobs")).
			WithArgs(int64(9), i, job.Name, job.Deadline, job.Profit).
			WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.CreateJobSet(context.Background(), js))

	assert.Equal(t, int64(9), js.ID)
	assert.Equal(t, createdAt, js.CreatedAt)
	assert.Equal(t, int32(1), js.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJobSetRollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepository(t)
	insertErr := errors.New("insert failed")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO job_sets")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "version"}).AddRow(int64(9), time.Now(), int64(1)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO job_set_jobs")).
		WillReturnError(insertErr)
	mock.ExpectRollback()

	err := repo.CreateJobSet(context.Background(), &domain.JobSet{
		Name: "失败",
		Jobs: []domain.Job{{Name: "A", Deadline: 1, Profit: 1}},
	})
	assert.ErrorIs(t, err, insertErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func jobSetRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"name", "description", "created_at", "version", "name", "deadline", "profit"})
}

func TestGetJobSetByIDKeepsPositionOrder(t *testing.T) {
	repo, mock := newMockRepository(t)
	createdAt := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	// 数据库按 position 排好序返回
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY j.position")).
		WithArgs(int64(4)).
		WillReturnRows(jobSetRows().
			AddRow("周计划", "测试", createdAt, int64(2), "C", int64(2), int64(27)).
			AddRow("周计划", "测试", createdAt, int64(2), "A", int64(2), int64(100)).
			AddRow("周计划", "测试", createdAt, int64(2), "B", int64(1), int64(19)))

	js, err := repo.GetJobSetByID(context.Background(), 4)
	require.NoError(t, err)

	assert.Equal(t, int64(4), js.ID)
	assert.Equal(t, "周计划", js.Name)
	assert.Equal(t, int32(2), js.Version)
	assert.Equal(t, []domain.Job{
		{Name: "C", Deadline: 2, Profit: 27},
		{Name: "A", Deadline: 2, Profit: 100},
		{Name: "B", Deadline: 1, Profit: 19},
	}, js.Jobs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobSetByIDWithoutJobs(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM job_sets js")).
		WillReturnRows(jobSetRows().AddRow("空", "", time.Now(), int64(1), nil, nil, nil))

	js, err := repo.GetJobSetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, js.Jobs)
}

func TestGetJobSetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM job_sets js")).
		WillReturnRows(jobSetRows())

	_, err := repo.GetJobSetByID(context.Background(), 1)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestDeleteJobSetReturnsRunIDs(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM optimization_runs WHERE job_set_id = $1 RETURNING id")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)).AddRow(int64(12)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM job_sets WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	runIDs, err := repo.DeleteJobSet(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12}, runIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteJobSetNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM optimization_runs")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM job_sets")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.DeleteJobSet(context.Background(), 3)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertOptimizationRun(t *testing.T) {
	repo, mock := newMockRepository(t)
	createdAt := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	run := &domain.OptimizationRun{
		JobSetID:         3,
		CreatedBy:        1,
		PopulationSize:   10,
		MaxGenerations:   20,
		TournamentSize:   5,
		MutationRate:     0.01,
		StallGenerations: 0,
		Crossover:        "append",
		Seed:             42,
		GenerationsRun:   20,
		StopReason:       "completed",
		BestOrder:        []domain.Job{{Name: "A", Deadline: 2, Profit: 100}},
		BestProfit:       100,
		ProfitHistory:    []int{100, 100},
		DurationMillis:   7,
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO optimization_runs")).
		WithArgs(
			int64(3), int64(1), 10, 20, 5,
			0.01, 0, "append", int64(42), 20, "completed",
			`[{"name":"A","deadline":2,"profit":100}]`, 100, `[100,100]`, int64(7),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(21), createdAt))

	require.NoError(t, repo.InsertOptimizationRun(context.Background(), run))
	assert.Equal(t, int64(21), run.ID)
	assert.Equal(t, createdAt, run.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOptimizationRunsByJobSetID(t *testing.T) {
	repo, mock := newMockRepository(t)
	createdAt := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	columns := []string{
		"id", "job_set_id", "created_by", "population_size", "max_generations", "tournament_size",
		"mutation_rate", "stall_generations", "crossover", "seed", "generations_run", "stop_reason",
		"best_order", "best_profit", "profit_history", "duration_ms", "created_at",
	}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE job_set_id = $1 ORDER BY id DESC")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(8), int64(3), int64(1), int64(10), int64(20), int64(5), 0.01, int64(0), "ordered", int64(1), int64(4), "stalled",
				`[{"name":"A","deadline":2,"profit":100}]`, int64(100), `[100,100,100,100,100]`, int64(2), createdAt).
			AddRow(int64(7), int64(3), int64(1), int64(10), int64(20), int64(5), 0.01, int64(0), "append", int64(2), int64(20), "completed",
				`[{"name":"A","deadline":2,"profit":100}]`, int64(100), `[100]`, int64(3), createdAt))

	runs, err := repo.GetOptimizationRunsByJobSetID(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, int64(8), runs[0].ID)
	assert.Equal(t, "stalled", runs[0].StopReason)
	assert.Equal(t, []int{100, 100, 100, 100, 100}, runs[0].ProfitHistory)
	assert.Equal(t, int64(7), runs[1].ID)
	assert.Equal(t, []domain.Job{{Name: "A", Deadline: 2, Profit: 100}}, runs[1].BestOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"encoding/json"

	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
)

const optimizationRunColumns = `
	id, job_set_id, created_by, population_size, max_generations, tournament_size,
	mutation_rate, stall_generations, crossover, seed, generations_run, stop_reason,
	best_order, best_profit, profit_history, duration_ms, created_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOptimizationRun(row rowScanner) (*domain.OptimizationRun, error) {
	run := &domain.OptimizationRun{}

	// JSONB 列先读成字节再反序列化
	var bestOrder, profitHistory []byte

	dst := []any{
		&run.ID,
		&run.JobSetID,
		&run.CreatedBy,
		&run.PopulationSize,
		&run.MaxGenerations,
		&run.TournamentSize,
		&run.MutationRate,
		&run.StallGenerations,
		&run.Crossover,
		&run.Seed,
		&run.GenerationsRun,
		&run.StopReason,
		&bestOrder,
		&run.BestProfit,
		&profitHistory,
		&run.DurationMillis,
		&run.CreatedAt,
	}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(bestOrder, &run.BestOrder); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(profitHistory, &run.ProfitHistory); err != nil {
		return nil, err
	}

	return run, nil
}

func (r *Repository) InsertOptimizationRun(ctx context.Context, run *domain.OptimizationRun) error {
	bestOrder, err := json.Marshal(run.BestOrder)
	if err != nil {
		return err
	}
	profitHistory, err := json.Marshal(run.ProfitHistory)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO optimization_runs (
			job_set_id, created_by, population_size, max_generations, tournament_size,
			mutation_rate, stall_generations, crossover, seed, generations_run, stop_reason,
			best_order, best_profit, profit_history, duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at
	`

	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	args := []any{
		run.JobSetID,
		run.CreatedBy,
		run.PopulationSize,
		run.MaxGenerations,
		run.TournamentSize,
		run.MutationRate,
		run.StallGenerations,
		run.Crossover,
		run.Seed,
		run.GenerationsRun,
		run.StopReason,
		string(bestOrder),
		run.BestProfit,
		string(profitHistory),
		run.DurationMillis,
	}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.ID, &run.CreatedAt)
}

func (r *Repository) GetOptimizationRunByID(ctx context.Context, id int64) (*domain.OptimizationRun, error) {
	query := `SELECT ` + optimizationRunColumns + ` FROM optimization_runs WHERE id = $1`

	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	return scanOptimizationRun(r.dbpool.QueryRowContext(ctx, query, id))
}

func (r *Repository) GetOptimizationRunsByJobSetID(ctx context.Context, jobSetID int64) ([]*domain.OptimizationRun, error) {
	query := `SELECT ` + optimizationRunColumns + ` FROM optimization_runs WHERE job_set_id = $1 ORDER BY id DESC`

	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, jobSetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.OptimizationRun, 0)
	for rows.Next() {
		run, err := scanOptimizationRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

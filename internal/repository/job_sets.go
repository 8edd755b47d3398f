package repository

import (
	"context"
	"database/sql"

	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
)

func (r *Repository) CreateJobSet(ctx context.Context, js *domain.JobSet) error {
	ctx, cancel := r.withTransactionTimeout(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO job_sets (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at, version
	`
	if err := tx.QueryRowContext(ctx, query, js.Name, js.Description).Scan(&js.ID, &js.CreatedAt, &js.Version); err != nil {
		return err
	}

	// 作业的顺序即用户输入的顺序，用 position 保存
	query = `
		INSERT INTO job_set_jobs (job_set_id, position, name, deadline, profit)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i, job := range js.Jobs {
		if _, err := tx.ExecContext(ctx, query, js.ID, i, job.Name, job.Deadline, job.Profit); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) GetJobSetByID(ctx context.Context, id int64) (*domain.JobSet, error) {
	query := `
		SELECT
			js.name,
			js.description,
			js.created_at,
			js.version,
			j.name,
			j.deadline,
			j.profit
		FROM job_sets js
		LEFT JOIN job_set_jobs j ON js.id = j.job_set_id
		WHERE js.id = $1
		ORDER BY j.position
	`

	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	js := &domain.JobSet{
		ID:   id,
		Jobs: make([]domain.Job, 0),
	}

	found := false
	for rows.Next() {
		var row struct {
			jobName  sql.NullString
			deadline sql.NullInt64
			profit   sql.NullInt64
		}

		dst := []any{&js.Name, &js.Description, &js.CreatedAt, &js.Version, &row.jobName, &row.deadline, &row.profit}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		found = true

		if !row.jobName.Valid {
			// 没有任何作业的集合，正常情况下不会入库
			continue
		}

		js.Jobs = append(js.Jobs, domain.Job{
			Name:     row.jobName.String,
			Deadline: int(row.deadline.Int64),
			Profit:   int(row.profit.Int64),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !found {
		return nil, sql.ErrNoRows
	}

	return js, nil
}

func (r *Repository) GetAllJobSets(ctx context.Context) ([]*domain.JobSetMeta, error) {
	query := `
		SELECT js.id, js.name, js.description, js.created_at, COUNT(j.id)
		FROM job_sets js
		LEFT JOIN job_set_jobs j ON js.id = j.job_set_id
		GROUP BY js.id
		ORDER BY js.id
	`

	ctx, cancel := r.withQueryTimeout(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metas := make([]*domain.JobSetMeta, 0)
	for rows.Next() {
		meta := &domain.JobSetMeta{}
		if err := rows.Scan(&meta.ID, &meta.Name, &meta.Description, &meta.CreatedAt, &meta.JobCount); err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return metas, nil
}

// DeleteJobSet 删除作业集合，作业随之级联删除
// 运行记录在同一事务中先行删除，返回它们的 ID 以便调用方清理缓存
func (r *Repository) DeleteJobSet(ctx context.Context, id int64) ([]int64, error) {
	ctx, cancel := r.withTransactionTimeout(ctx)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `DELETE FROM optimization_runs WHERE job_set_id = $1 RETURNING id`, id)
	if err != nil {
		return nil, err
	}

	runIDs := make([]int64, 0)
	for rows.Next() {
		var runID int64
		if err := rows.Scan(&runID); err != nil {
			rows.Close()
			return nil, err
		}
		runIDs = append(runIDs, runID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// 同一事务中执行下一条语句之前必须先关闭结果集
	rows.Close()

	res, err := tx.ExecContext(ctx, `DELETE FROM job_sets WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return runIDs, nil
}

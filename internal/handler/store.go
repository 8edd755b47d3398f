package handler

import (
	"context"

	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
)

// Store 是 handler 用到的持久化操作，*repository.Repository 满足该接口
type Store interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	GetAllUsers(ctx context.Context) ([]*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error

	CreateJobSet(ctx context.Context, js *domain.JobSet) error
	GetJobSetByID(ctx context.Context, id int64) (*domain.JobSet, error)
	GetAllJobSets(ctx context.Context) ([]*domain.JobSetMeta, error)
	DeleteJobSet(ctx context.Context, id int64) ([]int64, error)

	InsertOptimizationRun(ctx context.Context, run *domain.OptimizationRun) error
	GetOptimizationRunByID(ctx context.Context, id int64) (*domain.OptimizationRun, error)
	GetOptimizationRunsByJobSetID(ctx context.Context, jobSetID int64) ([]*domain.OptimizationRun, error)
}

package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/repository"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/utils"
)

// LoadJobSetFromCSV 读取 CSV 文件构造作业集合，name 为空时使用文件名
func LoadJobSetFromCSV(path string, name string, maxJobs int) (*domain.JobSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()

	jobs, err := utils.ReadJobsCSV(file)
	if err != nil {
		return nil, fmt.Errorf("解析 %s 失败: %w", path, err)
	}

	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	js := &domain.JobSet{
		Name:        name,
		Description: "从 " + filepath.Base(path) + " 导入",
		Jobs:        jobs,
	}
	if err := utils.ValidateJobSet(js, maxJobs); err != nil {
		return nil, err
	}

	return js, nil
}

// ImportJobSetFromCSV 把 CSV 文件中的作业作为一个新的作业集合写入数据库
func ImportJobSetFromCSV(ctx context.Context, r *repository.Repository, path string, name string, maxJobs int) (*domain.JobSet, error) {
	js, err := LoadJobSetFromCSV(path, name, maxJobs)
	if err != nil {
		return nil, err
	}

	if err := r.CreateJobSet(ctx, js); err != nil {
		return nil, fmt.Errorf("插入作业集合失败: %w", err)
	}

	slog.Info("导入作业集合成功", slog.Int64("id", js.ID), slog.String("name", js.Name), slog.Int("jobs", len(js.Jobs)))
	return js, nil
}

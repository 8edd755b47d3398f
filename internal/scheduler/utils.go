package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
)

var ErrInvalidInput = errors.New("输入不合法")

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ValidateJobs 作业列表不能为空，且每个作业都必须有名称
func ValidateJobs(jobs []domain.Job) error {
	if len(jobs) == 0 {
		return invalidInput("作业列表不能为空")
	}
	for i, job := range jobs {
		if strings.TrimSpace(job.Name) == "" {
			return invalidInput("第 %d 个作业缺少名称", i+1)
		}
	}
	return nil
}

func ValidateParameters(p *Parameters) error {
	if p.PopulationSize < 1 {
		return invalidInput("种群大小必须至少为 1（当前为 %d）", p.PopulationSize)
	}
	if p.MaxGenerations < 0 {
		return invalidInput("迭代次数不能为负数（当前为 %d）", p.MaxGenerations)
	}
	if p.TournamentSize < 1 {
		return invalidInput("锦标赛规模必须至少为 1（当前为 %d）", p.TournamentSize)
	}
	if p.MutationRate < 0 || p.MutationRate > 1 {
		return invalidInput("变异概率必须在 [0, 1] 之间（当前为 %g）", p.MutationRate)
	}
	if p.StallGenerations < 0 {
		return invalidInput("停滞代数不能为负数（当前为 %d）", p.StallGenerations)
	}
	switch p.Crossover {
	case CrossoverAppend, CrossoverOrdered:
	case "":
		p.Crossover = CrossoverAppend
	default:
		return invalidInput("不支持的交叉方式 %q", p.Crossover)
	}
	return nil
}

// Summary 渲染给用户看的结果文本
func Summary(jobs []domain.Job, best *Schedule) string {
	var sb strings.Builder

	sb.WriteString("Given Jobs along with Name, Deadlines and Profit:\n")
	for _, job := range jobs {
		sb.WriteString(job.String())
		sb.WriteString("\n")
	}

	sb.WriteString("\n\nBest Schedule: \n")
	sb.WriteString(best.String())
	sb.WriteString(fmt.Sprintf("\nTotal Profit: %d", best.TotalProfit()))

	return sb.String()
}

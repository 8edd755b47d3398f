package scheduler

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
)

type Scheduler struct {
	parameters *Parameters
	jobs       []domain.Job
	rng        *rand.Rand
}

// New 校验输入并创建调度器，随机数生成器由 parameters.Seed 决定，相同的种子得到相同的结果
// 调度器持有参数的副本，之后修改传入的参数不会影响它
func New(parameters *Parameters, jobs []domain.Job) (*Scheduler, error) {
	if parameters == nil {
		return nil, invalidInput("缺少遗传算法参数")
	}
	params := *parameters
	if err := ValidateParameters(&params); err != nil {
		return nil, err
	}
	if err := ValidateJobs(jobs); err != nil {
		return nil, err
	}

	s := &Scheduler{
		parameters: &params,
		jobs:       make([]domain.Job, len(jobs)),
		rng:        rand.New(rand.NewSource(params.Seed)),
	}
	copy(s.jobs, jobs)

	return s, nil
}

// Parameters 返回校验后实际使用的参数
func (s *Scheduler) Parameters() Parameters {
	return *s.parameters
}

// InitialPopulation 生成初始种群
func (s *Scheduler) InitialPopulation() *Population {
	return NewPopulation(s.parameters.PopulationSize, s.jobs, s.rng)
}

// Evolve 由当前种群繁殖出下一代，种群大小保持不变，不会修改传入的种群
func (s *Scheduler) Evolve(pop *Population) *Population {
	newPop := &Population{
		schedules: make([]*Schedule, pop.Size()),
	}

	for i := range newPop.schedules {
		// 选择两个父本
		p1 := s.selectByTournament(pop)
		p2 := s.selectByTournament(pop)

		child := s.crossover(p1, p2)
		s.mutate(child)

		newPop.schedules[i] = child
	}

	return newPop
}

// Schedule 迭代到满足停止条件为止，返回最后一代中的最优个体
// ctx 被取消时返回当前最后一代的最优个体以及 ctx 的错误
func (s *Scheduler) Schedule(ctx context.Context) (*Result, error) {
	pop := s.InitialPopulation()
	best := pop.Fittest()

	result := &Result{
		ProfitHistory: []int{best.TotalProfit()},
		Seed:          s.parameters.Seed,
		StopReason:    StopCompleted,
	}

	bestEver := best.TotalProfit()
	stall := 0

	var err error
	for gen := 0; gen < s.parameters.MaxGenerations; gen++ {
		if err = ctx.Err(); err != nil {
			result.StopReason = StopContext
			break
		}

		pop = s.Evolve(pop)
		best = pop.Fittest()
		result.GenerationsRun++
		result.ProfitHistory = append(result.ProfitHistory, best.TotalProfit())

		if best.TotalProfit() > bestEver {
			bestEver = best.TotalProfit()
			stall = 0
		} else {
			stall++
		}

		if s.parameters.StallGenerations > 0 && stall >= s.parameters.StallGenerations {
			result.StopReason = StopStalled
			break
		}
	}

	result.Best = best
	result.BestProfit = best.TotalProfit()

	slog.Debug("遗传算法运行结束",
		slog.Int("generations", result.GenerationsRun),
		slog.Int("bestProfit", result.BestProfit),
		slog.String("stopReason", result.StopReason),
		slog.Int64("seed", result.Seed),
	)

	return result, err
}

package scheduler

import (
	"math/rand"
	"strings"

	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
)

// Schedule: 染色体，即全部作业的一个排列
type Schedule struct {
	jobs   []domain.Job
	profit int // 收益与顺序无关，构造时计算一次即可
}

// NewSchedule 拷贝传入的作业并随机打乱顺序
func NewSchedule(jobs []domain.Job, rng *rand.Rand) *Schedule {
	s := newScheduleFromOrder(jobs)
	shuffleJobs(s.jobs, rng)
	return s
}

// newScheduleFromOrder 按给定顺序构造染色体（会拷贝一份）
func newScheduleFromOrder(jobs []domain.Job) *Schedule {
	s := &Schedule{
		jobs: make([]domain.Job, len(jobs)),
	}
	copy(s.jobs, jobs)
	for _, job := range s.jobs {
		s.profit += job.Profit
	}
	return s
}

// Jobs 返回作业顺序的拷贝
func (s *Schedule) Jobs() []domain.Job {
	jobs := make([]domain.Job, len(s.jobs))
	copy(jobs, s.jobs)
	return jobs
}

func (s *Schedule) Len() int {
	return len(s.jobs)
}

// TotalProfit 即适应度
func (s *Schedule) TotalProfit() int {
	return s.profit
}

// Swap 交换两个位置上的作业，这是唯一会修改染色体的操作
func (s *Schedule) Swap(i, j int) {
	s.jobs[i], s.jobs[j] = s.jobs[j], s.jobs[i]
}

func (s *Schedule) String() string {
	parts := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		parts[i] = job.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Population: 种群
type Population struct {
	schedules []*Schedule
}

// NewPopulation 生成 size 个相互独立的随机染色体
func NewPopulation(size int, jobs []domain.Job, rng *rand.Rand) *Population {
	pop := &Population{
		schedules: make([]*Schedule, size),
	}
	for i := 0; i < size; i++ {
		pop.schedules[i] = NewSchedule(jobs, rng)
	}
	return pop
}

func (p *Population) Schedules() []*Schedule {
	return p.schedules
}

func (p *Population) Size() int {
	return len(p.schedules)
}

// Fittest 返回总收益最高的染色体，收益相同时取最先遇到的那个
// 种群为空时返回 nil
func (p *Population) Fittest() *Schedule {
	if len(p.schedules) == 0 {
		return nil
	}

	fittest := p.schedules[0]
	for _, s := range p.schedules[1:] {
		if s.TotalProfit() > fittest.TotalProfit() {
			fittest = s
		}
	}
	return fittest
}

// 交叉方式
type CrossoverStrategy string

const (
	// CrossoverAppend 子代沿用父本一的顺序，再追加父本二中子代尚未包含的作业
	// 由于父本一已经包含全部作业，父本二实际上不会贡献任何基因
	CrossoverAppend CrossoverStrategy = "append"
	// CrossoverOrdered 经典的 OX 顺序交叉
	CrossoverOrdered CrossoverStrategy = "ordered"
)

// 停止原因
const (
	StopCompleted = "completed" // 跑满了最大代数
	StopStalled   = "stalled"   // 连续若干代最优收益没有提升
	StopContext   = "context"   // 超时或被取消
)

// 遗传算法参数
type Parameters struct {
	PopulationSize   int               // 种群大小
	MaxGenerations   int               // 最大迭代次数，可以为 0
	TournamentSize   int               // 锦标赛规模
	MutationRate     float64           // 每个位置发生交换变异的概率
	StallGenerations int               // 最优收益连续多少代没有提升就停止，0 表示不启用
	Crossover        CrossoverStrategy // 交叉方式
	Seed             int64             // 随机数种子
}

func DefaultParameters() Parameters {
	return Parameters{
		PopulationSize:   10,
		MaxGenerations:   20,
		TournamentSize:   5,
		MutationRate:     0.01,
		StallGenerations: 0,
		Crossover:        CrossoverAppend,
	}
}

// Result: 一次运行的结果
type Result struct {
	Best           *Schedule
	BestProfit     int
	GenerationsRun int
	StopReason     string
	ProfitHistory  []int
	Seed           int64
}

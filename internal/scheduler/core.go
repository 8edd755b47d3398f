package scheduler

import (
	"math/rand"

	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
)

// shuffleJobs 原地随机打乱（Fisher-Yates）
func shuffleJobs(jobs []domain.Job, rng *rand.Rand) {
	for i := len(jobs) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		jobs[i], jobs[j] = jobs[j], jobs[i]
	}
}

// 锦标赛选择
// 有放回地随机抽取 TournamentSize 个个体，返回其中收益最高者（相同收益取先抽到的）
func (s *Scheduler) selectByTournament(pop *Population) *Schedule {
	schedules := pop.Schedules()

	best := schedules[s.rng.Intn(len(schedules))]
	for i := 1; i < s.parameters.TournamentSize; i++ {
		candidate := schedules[s.rng.Intn(len(schedules))]
		if candidate.TotalProfit() > best.TotalProfit() {
			best = candidate
		}
	}
	return best
}

// 交叉，父本不会被修改
func (s *Scheduler) crossover(parent1, parent2 *Schedule) *Schedule {
	switch s.parameters.Crossover {
	case CrossoverOrdered:
		return orderedCrossover(parent1, parent2, s.rng)
	default:
		return appendCrossover(parent1, parent2)
	}
}

// appendCrossover 以父本一的顺序为起点，按父本二的顺序追加子代中还没有的作业
// 作业按值比较，用计数处理重复的作业
func appendCrossover(parent1, parent2 *Schedule) *Schedule {
	childJobs := make([]domain.Job, 0, parent1.Len())
	contained := make(map[domain.Job]int, parent1.Len())

	for _, job := range parent1.jobs {
		childJobs = append(childJobs, job)
		contained[job]++
	}

	for _, job := range parent2.jobs {
		if contained[job] > 0 {
			contained[job]--
			continue
		}
		childJobs = append(childJobs, job)
	}

	return newScheduleFromOrder(childJobs)
}

// orderedCrossover 从父本一中随机截取一段 [a, b) 原样保留，
// 其余位置从 b 开始按父本二的顺序依次填入尚未使用的作业
func orderedCrossover(parent1, parent2 *Schedule, rng *rand.Rand) *Schedule {
	n := parent1.Len()
	if n < 2 {
		return newScheduleFromOrder(parent1.jobs)
	}

	a := rng.Intn(n)
	b := rng.Intn(n)
	if a > b {
		a, b = b, a
	}
	if a == b {
		// 保证片段长度不为 0
		b = a + 1
	}

	childJobs := make([]domain.Job, n)
	filled := make([]bool, n)
	used := make(map[domain.Job]int, n)

	for i := a; i < b; i++ {
		childJobs[i] = parent1.jobs[i]
		filled[i] = true
		used[parent1.jobs[i]]++
	}

	pos := b % n
	for i := 0; i < n; i++ {
		job := parent2.jobs[(b+i)%n]
		if used[job] > 0 {
			used[job]--
			continue
		}
		for filled[pos] {
			pos = (pos + 1) % n
		}
		childJobs[pos] = job
		filled[pos] = true
	}

	return newScheduleFromOrder(childJobs)
}

// 变异
// 每个位置以 MutationRate 的概率与一个随机位置（可能是自身）交换
func (s *Scheduler) mutate(ch *Schedule) {
	n := ch.Len()
	for i := 0; i < n; i++ {
		if s.rng.Float64() >= s.parameters.MutationRate {
			continue
		}
		ch.Swap(i, s.rng.Intn(n))
	}
}

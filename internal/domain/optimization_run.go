package domain

import "time"

type OptimizationRun struct {
	ID               int64     `json:"id"`
	JobSetID         int64     `json:"jobSetID"`
	CreatedBy        int64     `json:"createdBy"`
	PopulationSize   int       `json:"populationSize"`
	MaxGenerations   int       `json:"maxGenerations"`
	TournamentSize   int       `json:"tournamentSize"`
	MutationRate     float64   `json:"mutationRate"`
	StallGenerations int       `json:"stallGenerations"`
	Crossover        string    `json:"crossover"`
	Seed             int64     `json:"seed"`
	GenerationsRun   int       `json:"generationsRun"`
	StopReason       string    `json:"stopReason"`
	BestOrder        []Job     `json:"bestOrder"`
	BestProfit       int       `json:"bestProfit"`
	ProfitHistory    []int     `json:"profitHistory"` // 每一代最优个体的总收益，下标 0 为初始种群
	DurationMillis   int64     `json:"durationMillis"`
	CreatedAt        time.Time `json:"createdAt"`
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/scheduler"
)

// parametersRequest 中没有给出的字段使用配置中的默认值
type parametersRequest struct {
	PopulationSize   *int     `json:"populationSize" validate:"omitempty,min=1,max=1000"`
	MaxGenerations   *int     `json:"maxGenerations" validate:"omitempty,min=0,max=10000"`
	TournamentSize   *int     `json:"tournamentSize" validate:"omitempty,min=1,max=100"`
	MutationRate     *float64 `json:"mutationRate" validate:"omitempty,min=0,max=1"`
	StallGenerations *int     `json:"stallGenerations" validate:"omitempty,min=0"`
	Crossover        *string  `json:"crossover" validate:"omitempty,oneof=append ordered"`
	Seed             *int64   `json:"seed"`
}

func (h *Handler) toParameters(req parametersRequest) scheduler.Parameters {
	p := scheduler.Parameters{
		PopulationSize:   h.config.GA.PopulationSize,
		MaxGenerations:   h.config.GA.MaxGenerations,
		TournamentSize:   h.config.GA.TournamentSize,
		MutationRate:     h.config.GA.MutationRate,
		StallGenerations: h.config.GA.StallGenerations,
		Crossover:        scheduler.CrossoverStrategy(h.config.GA.Crossover),
		Seed:             time.Now().UnixNano(),
	}

	if req.PopulationSize != nil {
		p.PopulationSize = *req.PopulationSize
	}
	if req.MaxGenerations != nil {
		p.MaxGenerations = *req.MaxGenerations
	}
	if req.TournamentSize != nil {
		p.TournamentSize = *req.TournamentSize
	}
	if req.MutationRate != nil {
		p.MutationRate = *req.MutationRate
	}
	if req.StallGenerations != nil {
		p.StallGenerations = *req.StallGenerations
	}
	if req.Crossover != nil {
		p.Crossover = scheduler.CrossoverStrategy(*req.Crossover)
	}
	if req.Seed != nil {
		p.Seed = *req.Seed
	}

	return p
}

// runScheduler 在 GA.RunTimeout 内运行遗传算法
// 超时并不算失败，此时返回已经得到的最优个体，StopReason 为 context
func (h *Handler) runScheduler(ctx context.Context, params *scheduler.Parameters, jobs []domain.Job) (*scheduler.Result, error) {
	s, err := scheduler.New(params, jobs)
	if err != nil {
		return nil, err
	}
	// 记录校验后实际使用的参数，比如默认的交叉方式
	*params = s.Parameters()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(h.config.GA.RunTimeout)*time.Second)
	defer cancel()

	result, err := s.Schedule(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && result != nil {
			slog.Warn("遗传算法运行超时，返回当前最优结果", "generations", result.GenerationsRun, "seed", result.Seed)
			return result, nil
		}
		return nil, err
	}

	return result, nil
}

type optimizationResponse struct {
	BestOrder      []domain.Job `json:"bestOrder"`
	BestOrderText  string       `json:"bestOrderText"`
	TotalProfit    int          `json:"totalProfit"`
	GenerationsRun int          `json:"generationsRun"`
	StopReason     string       `json:"stopReason"`
	Seed           int64        `json:"seed"`
	ProfitHistory  []int        `json:"profitHistory"`
	Summary        string       `json:"summary"`
	DurationMillis int64        `json:"durationMillis"`
}

func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Jobs       []jobRequest      `json:"jobs" validate:"required,min=1,dive"`
		Parameters parametersRequest `json:"parameters"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if len(req.Jobs) > h.config.GA.MaxJobs {
		h.errorResponse(w, r, "作业数量超过上限")
		return
	}

	jobs := toJobs(req.Jobs)
	params := h.toParameters(req.Parameters)

	start := time.Now()
	result, err := h.runScheduler(r.Context(), &params, jobs)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrInvalidInput):
			h.badRequest(w, r, err)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "求解成功", optimizationResponse{
		BestOrder:      result.Best.Jobs(),
		BestOrderText:  result.Best.String(),
		TotalProfit:    result.BestProfit,
		GenerationsRun: result.GenerationsRun,
		StopReason:     result.StopReason,
		Seed:           result.Seed,
		ProfitHistory:  result.ProfitHistory,
		Summary:        scheduler.Summary(jobs, result.Best),
		DurationMillis: time.Since(start).Milliseconds(),
	})
}

func (h *Handler) CreateOptimizationRun(w http.ResponseWriter, r *http.Request) {
	js := r.Context().Value(JobSetCtx).(*domain.JobSet)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		Parameters parametersRequest `json:"parameters"`
		Notify     bool              `json:"notify"` // 运行结束后是否发送邮件通知
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	params := h.toParameters(req.Parameters)

	start := time.Now()
	result, err := h.runScheduler(r.Context(), &params, js.Jobs)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrInvalidInput):
			h.badRequest(w, r, err)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	run := &domain.OptimizationRun{
		JobSetID:         js.ID,
		CreatedBy:        myInfo.ID,
		PopulationSize:   params.PopulationSize,
		MaxGenerations:   params.MaxGenerations,
		TournamentSize:   params.TournamentSize,
		MutationRate:     params.MutationRate,
		StallGenerations: params.StallGenerations,
		Crossover:        string(params.Crossover),
		Seed:             result.Seed,
		GenerationsRun:   result.GenerationsRun,
		StopReason:       result.StopReason,
		BestOrder:        result.Best.Jobs(),
		BestProfit:       result.BestProfit,
		ProfitHistory:    result.ProfitHistory,
		DurationMillis:   time.Since(start).Milliseconds(),
	}

	if err := h.repository.InsertOptimizationRun(r.Context(), run); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.cacheOptimizationRun(r.Context(), run)

	if req.Notify {
		bestOrder := make([]string, 0, len(run.BestOrder))
		for _, job := range run.BestOrder {
			bestOrder = append(bestOrder, job.Name)
		}

		// 运行记录已经保存，邮件投递失败不影响本次请求
		if err := h.publishMail(r.Context(), domain.MailMessage{
			Type: MailTypeOptimizationReport,
			To:   myInfo.Email,
			Data: domain.OptimizationReportMailData{
				FullName:       myInfo.FullName,
				JobSetName:     js.Name,
				RunID:          run.ID,
				GenerationsRun: run.GenerationsRun,
				StopReason:     run.StopReason,
				BestOrder:      bestOrder,
				BestProfit:     run.BestProfit,
			},
		}); err != nil {
			slog.Warn("无法投递运行结果邮件", "run", run.ID, "error", err)
		}
	}

	h.successResponse(w, r, "运行成功", run)
}

func (h *Handler) GetOptimizationRuns(w http.ResponseWriter, r *http.Request) {
	js := r.Context().Value(JobSetCtx).(*domain.JobSet)

	runs, err := h.repository.GetOptimizationRunsByJobSetID(r.Context(), js.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取运行记录成功", runs)
}

func (h *Handler) GetOptimizationRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(OptimizationRunCtx).(*domain.OptimizationRun)
	h.successResponse(w, r, "获取运行记录成功", run)
}

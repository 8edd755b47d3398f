package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/utils"
)

type jobRequest struct {
	Name     string `json:"name" validate:"required"`
	Deadline int    `json:"deadline"`
	Profit   int    `json:"profit"`
}

func toJobs(reqs []jobRequest) []domain.Job {
	jobs := make([]domain.Job, 0, len(reqs))
	for _, j := range reqs {
		jobs = append(jobs, domain.Job{
			Name:     j.Name,
			Deadline: j.Deadline,
			Profit:   j.Profit,
		})
	}
	return jobs
}

func (h *Handler) CreateJobSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string       `json:"name" validate:"required,max=255"`
		Description string       `json:"description"`
		Jobs        []jobRequest `json:"jobs" validate:"required,min=1,dive"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	js := &domain.JobSet{
		Name:        req.Name,
		Description: req.Description,
		Jobs:        toJobs(req.Jobs),
	}

	if err := utils.ValidateJobSet(js, h.config.GA.MaxJobs); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateJobSet(r.Context(), js); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr):
			switch pgErr.ConstraintName {
			case "job_sets_name_key":
				h.badRequest(w, r, errors.New("作业集合名称已存在"))
			default:
				h.internalServerError(w, r, err)
			}
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "创建作业集合成功", js)
}

func (h *Handler) GetAllJobSets(w http.ResponseWriter, r *http.Request) {
	jobSets, err := h.repository.GetAllJobSets(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取作业集合列表成功", jobSets)
}

func (h *Handler) GetJobSet(w http.ResponseWriter, r *http.Request) {
	js := r.Context().Value(JobSetCtx).(*domain.JobSet)
	h.successResponse(w, r, "获取作业集合成功", js)
}

func (h *Handler) DeleteJobSet(w http.ResponseWriter, r *http.Request) {
	js := r.Context().Value(JobSetCtx).(*domain.JobSet)

	runIDs, err := h.repository.DeleteJobSet(r.Context(), js.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "作业集合不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	// 运行记录随作业集合一起删除，缓存中的副本也要清理
	h.evictOptimizationRuns(r.Context(), runIDs)

	h.successResponse(w, r, "删除作业集合成功", nil)
}

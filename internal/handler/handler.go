package handler

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
)

// MailPublisher 把邮件投递到消息队列，*amqp.Channel 满足该接口
type MailPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  Store
	translator  ut.Translator
	mailChannel MailPublisher
	redisClient *redis.Client
	runCache    RunCache

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo Store, mailCh MailPublisher, rdb *redis.Client) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	h := &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		mailChannel: mailCh,
		redisClient: rdb,

		Mux: chi.NewRouter(),
	}

	if rdb != nil {
		h.runCache = newRedisRunCache(rdb,
			time.Duration(cfg.Redis.OperationExpiration)*time.Second,
			time.Duration(cfg.Redis.RunCacheExpiration)*time.Minute,
		)
	}

	return h, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Route("/reset-password", func(r chi.Router) {
			r.Post("/require", h.RequireResetPassword)
			r.Post("/confirm", h.ConfirmResetPassword)
		})
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateUser)
			r.Get("/", h.GetAllUserInfo)
		})

		// 不入库的一次性求解
		r.Post("/optimize", h.Optimize)

		r.Route("/job-sets", func(r chi.Router) {
			r.Post("/", h.CreateJobSet)
			r.Get("/", h.GetAllJobSets)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.jobSet)
				r.Get("/", h.GetJobSet)
				r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Delete("/", h.DeleteJobSet)
				r.Route("/runs", func(r chi.Router) {
					r.Get("/", h.GetOptimizationRuns)
					r.With(h.myInfo).Post("/", h.CreateOptimizationRun)
				})
			})
		})

		r.Route("/runs/{id}", func(r chi.Router) {
			r.Use(h.optimizationRun)
			r.Get("/", h.GetOptimizationRun)
		})
	})
}

package handler

type ContextKey string

var (
	RoleCtxKey         ContextKey = "role"
	SubCtxKey          ContextKey = "sub"
	MyInfoCtx          ContextKey = "myInfo"
	JobSetCtx          ContextKey = "jobSet"
	OptimizationRunCtx ContextKey = "optimizationRun"
)

package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
)

// memoryStore 在内存中实现 Store，行为与数据库的约束保持一致
type memoryStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*domain.User
	jobSets  map[int64]*domain.JobSet
	runs     map[int64]*domain.OptimizationRun
	runReads int
}

func newMemoryStore(users ...*domain.User) *memoryStore {
	s := &memoryStore{
		nextID:  100,
		users:   map[int64]*domain.User{},
		jobSets: map[int64]*domain.JobSet{},
		runs:    map[int64]*domain.OptimizationRun{},
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memoryStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (s *memoryStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memoryStore) UpdateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memoryStore) GetAllUsers(ctx context.Context) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	return users, nil
}

func (s *memoryStore) CreateUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == user.Username {
			return &pgconn.PgError{ConstraintName: "users_username_key"}
		}
	}
	user.ID = s.id()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memoryStore) CreateJobSet(ctx context.Context, js *domain.JobSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobSets {
		if existing.Name == js.Name {
			return &pgconn.PgError{ConstraintName: "job_sets_name_key"}
		}
	}
	js.ID = s.id()
	js.CreatedAt = time.Now()
	cp := *js
	cp.Jobs = append([]domain.Job(nil), js.Jobs...)
	s.jobSets[js.ID] = &cp
	return nil
}

func (s *memoryStore) GetJobSetByID(ctx context.Context, id int64) (*domain.JobSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	js, ok := s.jobSets[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *js
	cp.Jobs = append([]domain.Job(nil), js.Jobs...)
	return &cp, nil
}

func (s *memoryStore) GetAllJobSets(ctx context.Context) ([]*domain.JobSetMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	metas := make([]*domain.JobSetMeta, 0, len(s.jobSets))
	for _, js := range s.jobSets {
		metas = append(metas, &domain.JobSetMeta{ID: js.ID, Name: js.Name, JobCount: len(js.Jobs)})
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].ID < metas[j].ID })
	return metas, nil
}

func (s *memoryStore) DeleteJobSet(ctx context.Context, id int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobSets[id]; !ok {
		return nil, sql.ErrNoRows
	}
	runIDs := make([]int64, 0)
	for runID, run := range s.runs {
		if run.JobSetID == id {
			runIDs = append(runIDs, runID)
			delete(s.runs, runID)
		}
	}
	delete(s.jobSets, id)
	return runIDs, nil
}

func (s *memoryStore) InsertOptimizationRun(ctx context.Context, run *domain.OptimizationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobSets[run.JobSetID]; !ok {
		return &pgconn.PgError{ConstraintName: "optimization_runs_job_set_id_fkey"}
	}
	run.ID = s.id()
	run.CreatedAt = time.Now()
	cp := *run
	s.runs[run.ID] = &cp
	return nil
}

func (s *memoryStore) GetOptimizationRunByID(ctx context.Context, id int64) (*domain.OptimizationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runReads++
	run, ok := s.runs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *run
	return &cp, nil
}

func (s *memoryStore) GetOptimizationRunsByJobSetID(ctx context.Context, jobSetID int64) ([]*domain.OptimizationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := make([]*domain.OptimizationRun, 0)
	for _, run := range s.runs {
		if run.JobSetID == jobSetID {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	return runs, nil
}

// memoryRunCache 未命中时和 redis 一样返回 redis.Nil
type memoryRunCache struct {
	mu   sync.Mutex
	runs map[int64]domain.OptimizationRun
}

func newMemoryRunCache() *memoryRunCache {
	return &memoryRunCache{runs: map[int64]domain.OptimizationRun{}}
}

func (c *memoryRunCache) Get(ctx context.Context, id int64) (*domain.OptimizationRun, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	run, ok := c.runs[id]
	if !ok {
		return nil, redis.Nil
	}
	return &run, nil
}

func (c *memoryRunCache) Set(ctx context.Context, run *domain.OptimizationRun) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs[run.ID] = *run
	return nil
}

func (c *memoryRunCache) Delete(ctx context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.runs, id)
	}
	return nil
}

func (c *memoryRunCache) has(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.runs[id]
	return ok
}

var (
	planner = &domain.User{ID: 1, Username: "planner", FullName: "排程员甲", Email: "planner@example.com", Role: domain.RolePlanner, IsActive: true}
	admin   = &domain.User{ID: 2, Username: "admin", FullName: "管理员", Email: "admin@example.com", Role: domain.RoleAdmin, IsActive: true}
)

type testServer struct {
	h     *Handler
	store *memoryStore
	cache *memoryRunCache
	pub   *fakePublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	h, pub := newTestHandler(t)
	store := newMemoryStore(planner, admin)
	cache := newMemoryRunCache()
	h.repository = store
	h.runCache = cache
	h.RegisterRoutes()
	return &testServer{h: h, store: store, cache: cache, pub: pub}
}

type rawEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, as *domain.User, method, path, body string) rawEnvelope {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)

	if as != nil {
		login := httptest.NewRecorder()
		require.NoError(t, s.h.issueToken(login, as))
		req.AddCookie(login.Result().Cookies()[0])
	}

	rec := httptest.NewRecorder()
	s.h.Mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env rawEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func (s *testServer) createJobSet(t *testing.T, name string) *domain.JobSet {
	t.Helper()
	env := s.do(t, planner, http.MethodPost, "/job-sets", `{"name": "`+name+`", "description": "测试", "jobs": `+sampleJobsJSON+`}`)
	require.True(t, env.Success, env.Message)

	js := &domain.JobSet{}
	require.NoError(t, json.Unmarshal(env.Data, js))
	return js
}

func (s *testServer) createRun(t *testing.T, as *domain.User, jobSetID int64, body string) *domain.OptimizationRun {
	t.Helper()
	env := s.do(t, as, http.MethodPost, fmt.Sprintf("/job-sets/%d/runs", jobSetID), body)
	require.True(t, env.Success, env.Message)

	run := &domain.OptimizationRun{}
	require.NoError(t, json.Unmarshal(env.Data, run))
	return run
}

func TestJobSetRunFlow(t *testing.T) {
	s := newTestServer(t)

	js := s.createJobSet(t, "周计划")
	assert.NotZero(t, js.ID)

	// 读回的作业顺序与输入一致
	env := s.do(t, planner, http.MethodGet, fmt.Sprintf("/job-sets/%d", js.ID), "")
	require.True(t, env.Success, env.Message)
	stored := &domain.JobSet{}
	require.NoError(t, json.Unmarshal(env.Data, stored))
	assert.Equal(t, []domain.Job{
		{Name: "A", Deadline: 2, Profit: 100},
		{Name: "B", Deadline: 1, Profit: 19},
		{Name: "C", Deadline: 2, Profit: 27},
	}, stored.Jobs)

	run := s.createRun(t, planner, js.ID, `{"parameters": {"seed": 3, "maxGenerations": 5}, "notify": true}`)
	assert.Equal(t, js.ID, run.JobSetID)
	assert.Equal(t, planner.ID, run.CreatedBy)
	assert.Equal(t, 146, run.BestProfit)
	assert.Equal(t, 5, run.GenerationsRun)
	assert.Equal(t, "append", run.Crossover)
	assert.Equal(t, int64(3), run.Seed)
	assert.Len(t, run.ProfitHistory, 6)
	assert.ElementsMatch(t, stored.Jobs, run.BestOrder)

	// 已入库、已缓存、已投递邮件
	persisted, err := s.store.GetOptimizationRunByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.BestOrder, persisted.BestOrder)
	assert.True(t, s.cache.has(run.ID))

	require.Len(t, s.pub.published, 1)
	var mailMessage struct {
		Type string                            `json:"type"`
		To   string                            `json:"to"`
		Data domain.OptimizationReportMailData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(s.pub.published[0].msg.Body, &mailMessage))
	assert.Equal(t, MailTypeOptimizationReport, mailMessage.Type)
	assert.Equal(t, planner.Email, mailMessage.To)
	assert.Equal(t, run.ID, mailMessage.Data.RunID)
	assert.Equal(t, "周计划", mailMessage.Data.JobSetName)

	env = s.do(t, planner, http.MethodGet, fmt.Sprintf("/job-sets/%d/runs", js.ID), "")
	require.True(t, env.Success, env.Message)
	var runs []*domain.OptimizationRun
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	env = s.do(t, planner, http.MethodGet, "/job-sets", "")
	require.True(t, env.Success, env.Message)
	var metas []*domain.JobSetMeta
	require.NoError(t, json.Unmarshal(env.Data, &metas))
	require.Len(t, metas, 1)
	assert.Equal(t, 3, metas[0].JobCount)
}

func TestCreateRunWithoutNotifySendsNoMail(t *testing.T) {
	s := newTestServer(t)
	js := s.createJobSet(t, "无通知")

	s.createRun(t, planner, js.ID, `{"parameters": {"seed": 1}}`)
	assert.Empty(t, s.pub.published)
}

func TestCreateRunRejectsInvalidParameters(t *testing.T) {
	s := newTestServer(t)
	js := s.createJobSet(t, "非法参数")

	env := s.do(t, planner, http.MethodPost, fmt.Sprintf("/job-sets/%d/runs", js.ID), `{"parameters": {"crossover": "pmx"}}`)
	assert.False(t, env.Success)
	assert.Empty(t, s.store.runs)
}

func TestCreateJobSetDuplicateName(t *testing.T) {
	s := newTestServer(t)
	s.createJobSet(t, "周计划")

	env := s.do(t, planner, http.MethodPost, "/job-sets", `{"name": "周计划", "jobs": `+sampleJobsJSON+`}`)
	assert.False(t, env.Success)
	assert.Equal(t, "作业集合名称已存在", env.Message)
}

func TestCreateJobSetRejectsTooManyJobs(t *testing.T) {
	s := newTestServer(t)

	env := s.do(t, planner, http.MethodPost, "/job-sets", `{"name": "太多", "jobs": [
		{"name": "a"}, {"name": "b"}, {"name": "c"},
		{"name": "d"}, {"name": "e"}, {"name": "f"}
	]}`)
	assert.False(t, env.Success)
	assert.Empty(t, s.store.jobSets)
}

func TestGetJobSetNotFound(t *testing.T) {
	s := newTestServer(t)

	env := s.do(t, planner, http.MethodGet, "/job-sets/999", "")
	assert.False(t, env.Success)
	assert.Equal(t, "作业集合不存在", env.Message)

	env = s.do(t, planner, http.MethodGet, "/job-sets/abc", "")
	assert.False(t, env.Success)
	assert.Equal(t, "作业集合ID无效", env.Message)
}

func TestOptimizationRunCacheMissFallsBackToStore(t *testing.T) {
	s := newTestServer(t)
	js := s.createJobSet(t, "回填")

	run := &domain.OptimizationRun{JobSetID: js.ID, CreatedBy: planner.ID, BestProfit: 146, StopReason: "completed"}
	require.NoError(t, s.store.InsertOptimizationRun(context.Background(), run))
	require.False(t, s.cache.has(run.ID))

	path := fmt.Sprintf("/runs/%d", run.ID)

	env := s.do(t, planner, http.MethodGet, path, "")
	require.True(t, env.Success, env.Message)
	assert.Equal(t, 1, s.store.runReads)
	assert.True(t, s.cache.has(run.ID))

	// 第二次直接命中缓存
	env = s.do(t, planner, http.MethodGet, path, "")
	require.True(t, env.Success, env.Message)
	assert.Equal(t, 1, s.store.runReads)

	got := &domain.OptimizationRun{}
	require.NoError(t, json.Unmarshal(env.Data, got))
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, 146, got.BestProfit)
}

func TestGetOptimizationRunNotFound(t *testing.T) {
	s := newTestServer(t)

	env := s.do(t, planner, http.MethodGet, "/runs/404", "")
	assert.False(t, env.Success)
	assert.Equal(t, "运行记录不存在", env.Message)

	env = s.do(t, planner, http.MethodGet, "/runs/abc", "")
	assert.False(t, env.Success)
	assert.Equal(t, "运行记录ID无效", env.Message)
}

func TestDeleteJobSetEvictsCachedRuns(t *testing.T) {
	s := newTestServer(t)
	js := s.createJobSet(t, "待删除")
	run := s.createRun(t, admin, js.ID, `{"parameters": {"seed": 5}}`)
	require.True(t, s.cache.has(run.ID))

	env := s.do(t, admin, http.MethodDelete, fmt.Sprintf("/job-sets/%d", js.ID), "")
	require.True(t, env.Success, env.Message)

	assert.False(t, s.cache.has(run.ID))

	env = s.do(t, planner, http.MethodGet, fmt.Sprintf("/runs/%d", run.ID), "")
	assert.False(t, env.Success)
	assert.Equal(t, "运行记录不存在", env.Message)

	env = s.do(t, planner, http.MethodGet, fmt.Sprintf("/job-sets/%d", js.ID), "")
	assert.False(t, env.Success)
	assert.Equal(t, "作业集合不存在", env.Message)
}

func TestDeleteJobSetRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	js := s.createJobSet(t, "保留")

	env := s.do(t, planner, http.MethodDelete, fmt.Sprintf("/job-sets/%d", js.ID), "")
	assert.False(t, env.Success)
	assert.Equal(t, "权限不足", env.Message)
	assert.Contains(t, s.store.jobSets, js.ID)
}

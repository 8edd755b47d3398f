package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/job-scheduler/backend/internal/domain"
)

var errCacheDisabled = errors.New("缓存未启用")

// RunCache 缓存已经结束的运行记录，未命中时 Get 返回 redis.Nil
type RunCache interface {
	Get(ctx context.Context, id int64) (*domain.OptimizationRun, error)
	Set(ctx context.Context, run *domain.OptimizationRun) error
	Delete(ctx context.Context, ids ...int64) error
}

func optimizationRunCacheKey(id int64) string {
	return fmt.Sprintf("optimization_run_%d", id)
}

type redisRunCache struct {
	client     *redis.Client
	timeout    time.Duration
	expiration time.Duration
}

func newRedisRunCache(client *redis.Client, timeout, expiration time.Duration) *redisRunCache {
	return &redisRunCache{
		client:     client,
		timeout:    timeout,
		expiration: expiration,
	}
}

func (c *redisRunCache) Get(ctx context.Context, id int64) (*domain.OptimizationRun, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.client.Get(ctx, optimizationRunCacheKey(id)).Bytes()
	if err != nil {
		return nil, err
	}

	run := &domain.OptimizationRun{}
	if err := json.Unmarshal(data, run); err != nil {
		return nil, err
	}

	return run, nil
}

func (c *redisRunCache) Set(ctx context.Context, run *domain.OptimizationRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.client.Set(ctx, optimizationRunCacheKey(run.ID), data, c.expiration).Err()
}

func (c *redisRunCache) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, optimizationRunCacheKey(id))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.client.Del(ctx, keys...).Err()
}

// cacheOptimizationRun 运行记录写入后不会再修改，缓存失败只记录日志
func (h *Handler) cacheOptimizationRun(ctx context.Context, run *domain.OptimizationRun) {
	if h.runCache == nil {
		return
	}

	if err := h.runCache.Set(ctx, run); err != nil {
		slog.Warn("无法缓存运行记录", "id", run.ID, "error", err)
	}
}

func (h *Handler) getCachedOptimizationRun(ctx context.Context, id int64) (*domain.OptimizationRun, error) {
	if h.runCache == nil {
		return nil, errCacheDisabled
	}

	return h.runCache.Get(ctx, id)
}

// evictOptimizationRuns 数据库中的记录已经删除，清理失败的缓存最多存活到过期为止
func (h *Handler) evictOptimizationRuns(ctx context.Context, ids []int64) {
	if h.runCache == nil || len(ids) == 0 {
		return
	}

	if err := h.runCache.Delete(ctx, ids...); err != nil {
		slog.Warn("无法清理运行记录缓存", "ids", ids, "error", err)
	}
}

package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper 基于 Redis SETNX 的请求去重，保证同一 request_id 只处理一次
type Deduper struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{rdb: rdb, ttl: ttl, logger: logger}
}

// AcquireOnce 首次处理返回 true，重复请求返回 false
func (d *Deduper) AcquireOnce(ctx context.Context, handler, requestID string) bool {
	if d == nil || d.rdb == nil || requestID == "" {
		return true
	}
	key := "dedup:" + handler + ":" + requestID

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// Redis 不可用时不阻止处理
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("handler", handler),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated request",
			zap.String("handler", handler),
			zap.String("request_id", requestID),
		)
	}
	return ok
}

// Release 处理失败时释放去重键，让重投的消息可以再次处理
func (d *Deduper) Release(ctx context.Context, handler, requestID string) {
	if d == nil || d.rdb == nil || requestID == "" {
		return
	}
	if err := d.rdb.Del(ctx, "dedup:"+handler+":"+requestID).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key",
			zap.String("handler", handler),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
	}
}

package repository

import (
	"context"
	"time"

	"collaborative-kanban/internal/domain"
)

// BoardCache 缓存看板详情 (含列表和任务)，通常由 Redis 实现。
type BoardCache interface {
	// Get 读取缓存，未命中时返回 ErrCacheMiss。
	Get(ctx context.Context, boardID string) (*domain.Board, error)
	// Set 写入缓存，ttl 为 0 表示不过期。
	Set(ctx context.Context, board *domain.Board, ttl time.Duration) error
	// Invalidate 删除缓存，键不存在时不报错。
	Invalidate(ctx context.Context, boardID string) error
}

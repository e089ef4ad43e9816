package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"
)

// RedisBoardCache 是 BoardCache 接口的 Redis 实现，缓存看板详情的 JSON。
type RedisBoardCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisBoardCache 创建 RedisBoardCache 实例
func NewRedisBoardCache(client *redis.Client, keyPrefix string) *RedisBoardCache {
	if client == nil {
		panic("redis client cannot be nil for RedisBoardCache")
	}
	if keyPrefix == "" {
		keyPrefix = "kb:" // 默认前缀 "kb:" (kanban)
	}
	return &RedisBoardCache{client: client, keyPrefix: keyPrefix}
}

func (r *RedisBoardCache) boardKey(boardID string) string {
	return fmt.Sprintf("%sboard:%s:detail", r.keyPrefix, boardID)
}

// Get 从缓存读取看板详情
func (r *RedisBoardCache) Get(ctx context.Context, boardID string) (*domain.Board, error) {
	key := r.boardKey(boardID)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis: failed to get board cache %s: %w", key, err)
	}
	var board domain.Board
	if err := json.Unmarshal(raw, &board); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal board cache %s: %w", key, err)
	}
	return &board, nil
}

// Set 写入看板详情缓存
func (r *RedisBoardCache) Set(ctx context.Context, board *domain.Board, ttl time.Duration) error {
	key := r.boardKey(board.ID)
	raw, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal board %s for cache: %w", board.ID, err)
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to set board cache %s: %w", key, err)
	}
	return nil
}

// Invalidate 删除看板详情缓存
func (r *RedisBoardCache) Invalidate(ctx context.Context, boardID string) error {
	key := r.boardKey(boardID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete board cache %s: %w", key, err)
	}
	return nil
}

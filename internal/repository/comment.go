package repository

import (
	"context"

	"collaborative-kanban/internal/domain"
)

// CommentRepository 定义评论的持久化操作。
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	// ListByTask 按创建时间倒序返回评论 (预加载作者)。
	ListByTask(ctx context.Context, taskID string) ([]domain.Comment, error)
}

package repository

import (
	"context"

	"collaborative-kanban/internal/domain"
)

// ActivityRepository 定义活动日志的持久化操作。活动只追加。
type ActivityRepository interface {
	Save(ctx context.Context, activity *domain.Activity) error
	// ListByBoard 按创建时间倒序分页返回看板活动及总数。
	ListByBoard(ctx context.Context, boardID string, offset, limit int) ([]domain.Activity, int64, error)
}

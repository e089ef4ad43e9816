package repository

import (
	"context"

	"collaborative-kanban/internal/domain"
)

// ListRepository 定义列表的持久化操作。涉及位置的写操作都在单个事务中完成。
type ListRepository interface {
	FindByID(ctx context.Context, id string) (*domain.List, error)

	// ListByBoard 按位置升序返回看板内的列表 (预加载任务)。
	ListByBoard(ctx context.Context, boardID string) ([]domain.List, error)

	// Create 在 position 处插入列表；position 为 nil 时追加到末尾。
	Create(ctx context.Context, list *domain.List, position *int) error

	// Update 修改名称和/或位置，位置变化时平移其他列表。
	Update(ctx context.Context, id string, name *string, position *int) (*domain.List, error)

	// Delete 删除列表及其任务 (含评论、负责人)，并压缩剩余列表的位置。
	Delete(ctx context.Context, id string) (*domain.List, error)
}

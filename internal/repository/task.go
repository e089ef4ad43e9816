package repository

import (
	"context"
	"time"

	"collaborative-kanban/internal/domain"
)

// TaskChanges 描述一次任务更新，nil 字段表示不修改
type TaskChanges struct {
	Title       *string
	Description *string
	Priority    *string
	Status      *string
	DueDate     *time.Time
	ClearDue    bool // 为 true 时把截止日期置空
	Position    *int
}

// TaskRepository 定义任务的持久化操作。涉及位置的写操作都在单个事务中完成。
type TaskRepository interface {
	// FindByID 查找任务 (预加载负责人)，不存在时返回 ErrTaskNotFound。
	FindByID(ctx context.Context, id string) (*domain.Task, error)

	// BoardIDOf 返回任务所属看板 ID。
	BoardIDOf(ctx context.Context, taskID string) (string, error)

	// ListByList 按位置升序分页返回列表中的任务及总数。
	ListByList(ctx context.Context, listID string, offset, limit int) ([]domain.Task, int64, error)

	// Create 在 position 处插入任务；position 为 nil 时追加到末尾。
	Create(ctx context.Context, task *domain.Task, position *int) error

	// Update 应用字段修改；Position 非 nil 时在列表内重新排序。
	Update(ctx context.Context, id string, changes TaskChanges) (*domain.Task, error)

	// Move 把任务移到 toListID 的 position 处 (同列表时为重新排序)，返回更新后的任务和原列表 ID。
	Move(ctx context.Context, id, toListID string, position *int) (*domain.Task, string, error)

	// Delete 删除任务 (含评论、负责人) 并压缩同列表剩余任务的位置。
	Delete(ctx context.Context, id string) (*domain.Task, error)

	// Assign 添加负责人，已存在时返回 ErrDuplicateEntry。
	Assign(ctx context.Context, taskID, userID string) (*domain.TaskAssignment, error)

	// Unassign 移除负责人，不存在时返回 ErrNotFound。
	Unassign(ctx context.Context, taskID, userID string) error

	// Search 在看板内按标题或描述搜索任务，最多返回 limit 条。
	Search(ctx context.Context, boardID, query string, limit int) ([]domain.Task, error)
}

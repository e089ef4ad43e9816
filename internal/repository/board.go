package repository

import (
	"context"

	"collaborative-kanban/internal/domain"
)

// BoardQuery 是看板分页查询的参数
type BoardQuery struct {
	UserID string
	Search string
	Offset int
	Limit  int
}

// BoardRepository 定义看板及其成员的持久化操作。
type BoardRepository interface {
	// Create 在一个事务内创建看板、所有者成员以及 memberIDs 中的其他成员。
	Create(ctx context.Context, board *domain.Board, memberIDs []string) error

	// FindByID 查找看板 (预加载成员)，不存在时返回 ErrBoardNotFound。
	FindByID(ctx context.Context, id string) (*domain.Board, error)

	// FindDetail 查找看板并预加载成员、按位置排序的列表及其任务。
	FindDetail(ctx context.Context, id string) (*domain.Board, error)

	// Update 按字段更新看板。
	Update(ctx context.Context, id string, fields map[string]interface{}) (*domain.Board, error)

	// Delete 在一个事务内删除看板及其全部列表、任务、评论、负责人、成员和活动。
	Delete(ctx context.Context, id string) error

	// ListForUser 返回用户参与的看板及总数。
	ListForUser(ctx context.Context, q BoardQuery) ([]domain.BoardSummary, int64, error)

	// FindMember 查找成员关系，不是成员时返回 ErrMemberNotFound。
	FindMember(ctx context.Context, boardID, userID string) (*domain.BoardMember, error)

	// ListMembers 返回看板全部成员 (预加载用户)。
	ListMembers(ctx context.Context, boardID string) ([]domain.BoardMember, error)

	// AddMember 添加成员，已存在时返回 ErrDuplicateEntry。
	AddMember(ctx context.Context, member *domain.BoardMember) error

	// RemoveMember 移除成员，不存在时返回 ErrMemberNotFound。
	RemoveMember(ctx context.Context, boardID, userID string) error
}

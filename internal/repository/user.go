package repository

import (
	"context"

	"collaborative-kanban/internal/domain"
)

// UserRepository 定义了用户数据的存储和检索操作。
type UserRepository interface {
	// FindByEmail 根据邮箱查找用户，不存在时返回 ErrUserNotFound。
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindByID 根据用户 ID 查找用户，不存在时返回 ErrUserNotFound。
	FindByID(ctx context.Context, id string) (*domain.User, error)

	// Save 保存用户信息。用户名或邮箱冲突时返回 ErrDuplicateEntry。
	Save(ctx context.Context, user *domain.User) error

	// ListExcept 返回除 excludeID 外的所有用户 (用于选择成员)。
	ListExcept(ctx context.Context, excludeID string) ([]domain.User, error)
}

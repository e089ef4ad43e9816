package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"
)

// GormUserRepository 是 UserRepository 接口的 GORM 实现
type GormUserRepository struct {
	db *gorm.DB // 依赖 GORM DB 连接
}

// NewGormUserRepository 创建 GormUserRepository 实例
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	if db == nil {
		panic("database connection cannot be nil for GormUserRepository")
	}
	return &GormUserRepository{db: db}
}

// FindByEmail 根据邮箱查找用户
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if err = notFoundOr(err, repository.ErrUserNotFound); passThrough(err) {
			return nil, err
		}
		return nil, fmt.Errorf("gorm: find user by email '%s': %w", email, err)
	}
	return &user, nil
}

// FindByID 根据用户 ID 查找用户
func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if err = notFoundOr(err, repository.ErrUserNotFound); passThrough(err) {
			return nil, err
		}
		return nil, fmt.Errorf("gorm: find user by id %s: %w", id, err)
	}
	return &user, nil
}

// Save 保存用户信息（创建或更新）
func (r *GormUserRepository) Save(ctx context.Context, user *domain.User) error {
	var err error
	if user.ID == "" {
		err = r.db.WithContext(ctx).Create(user).Error
	} else {
		err = r.db.WithContext(ctx).Save(user).Error
	}
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save user (id: %s, username: %s): %w", user.ID, user.Username, err)
	}
	return nil
}

// ListExcept 返回除指定用户外的全部用户，按用户名排序
func (r *GormUserRepository) ListExcept(ctx context.Context, excludeID string) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).Where("id <> ?", excludeID).Order("username ASC").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list users: %w", err)
	}
	return users, nil
}

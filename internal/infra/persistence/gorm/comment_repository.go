package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"collaborative-kanban/internal/domain"
)

// GormCommentRepository 是 CommentRepository 接口的 GORM 实现
type GormCommentRepository struct {
	db *gorm.DB
}

// NewGormCommentRepository 创建 GormCommentRepository 实例
func NewGormCommentRepository(db *gorm.DB) *GormCommentRepository {
	if db == nil {
		panic("database connection cannot be nil for GormCommentRepository")
	}
	return &GormCommentRepository{db: db}
}

// Create 保存评论并加载作者信息
func (r *GormCommentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit("User").Create(comment).Error; err != nil {
		return fmt.Errorf("gorm: create comment on task %s: %w", comment.TaskID, err)
	}
	if err := db.Preload("User").Where("id = ?", comment.ID).First(comment).Error; err != nil {
		return fmt.Errorf("gorm: reload comment %s: %w", comment.ID, err)
	}
	return nil
}

// ListByTask 按时间倒序返回任务的评论
func (r *GormCommentRepository) ListByTask(ctx context.Context, taskID string) ([]domain.Comment, error) {
	var comments []domain.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("task_id = ?", taskID).
		Order("created_at DESC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list comments for task %s: %w", taskID, err)
	}
	return comments, nil
}

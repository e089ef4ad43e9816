package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"
)

// GormActivityRepository 是 ActivityRepository 接口的 GORM 实现
type GormActivityRepository struct {
	db *gorm.DB
}

// NewGormActivityRepository 创建 GormActivityRepository 实例
func NewGormActivityRepository(db *gorm.DB) *GormActivityRepository {
	if db == nil {
		panic("database connection cannot be nil for GormActivityRepository")
	}
	return &GormActivityRepository{db: db}
}

// Save 追加一条活动记录
func (r *GormActivityRepository) Save(ctx context.Context, activity *domain.Activity) error {
	if len(activity.Metadata) == 0 {
		activity.Metadata = datatypes.JSON("{}")
	}
	if err := r.db.WithContext(ctx).Omit("User").Create(activity).Error; err != nil {
		if isDuplicateEntryError(err) {
			return fmt.Errorf("gorm: save activity %s: %w", activity.ID, repository.ErrDuplicateEntry)
		}
		return fmt.Errorf("gorm: save activity (board %s, %s %s): %w", activity.BoardID, activity.EntityType, activity.ActionType, err)
	}
	return nil
}

// ListByBoard 按时间倒序分页返回看板活动
func (r *GormActivityRepository) ListByBoard(ctx context.Context, boardID string, offset, limit int) ([]domain.Activity, int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&domain.Activity{}).Where("board_id = ?", boardID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("gorm: count activities for board %s: %w", boardID, err)
	}

	var activities []domain.Activity
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("board_id = ?", boardID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&activities).Error
	if err != nil {
		return nil, 0, fmt.Errorf("gorm: list activities for board %s: %w", boardID, err)
	}
	return activities, total, nil
}

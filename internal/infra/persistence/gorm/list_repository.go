package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/position"
	"collaborative-kanban/internal/repository"
)

var listTable = positionTable{model: &domain.List{}, scopeCol: "board_id"}

// GormListRepository 是 ListRepository 接口的 GORM 实现
type GormListRepository struct {
	db *gorm.DB
}

// NewGormListRepository 创建 GormListRepository 实例
func NewGormListRepository(db *gorm.DB) *GormListRepository {
	if db == nil {
		panic("database connection cannot be nil for GormListRepository")
	}
	return &GormListRepository{db: db}
}

// FindByID 根据 ID 查找列表
func (r *GormListRepository) FindByID(ctx context.Context, id string) (*domain.List, error) {
	return findList(r.db.WithContext(ctx), id)
}

func findList(db *gorm.DB, id string) (*domain.List, error) {
	var list domain.List
	if err := db.Where("id = ?", id).First(&list).Error; err != nil {
		if err = notFoundOr(err, repository.ErrListNotFound); passThrough(err) {
			return nil, err
		}
		return nil, fmt.Errorf("gorm: find list by id %s: %w", id, err)
	}
	return &list, nil
}

// ListByBoard 按位置返回看板内的列表，任务同样按位置排序
func (r *GormListRepository) ListByBoard(ctx context.Context, boardID string) ([]domain.List, error) {
	var lists []domain.List
	err := r.db.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Tasks.Assignees.User").
		Where("board_id = ?", boardID).
		Order("position ASC").
		Find(&lists).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list lists of board %s: %w", boardID, err)
	}
	return lists, nil
}

// Create 在看板中插入列表，其后的列表整体后移
func (r *GormListRepository) Create(ctx context.Context, list *domain.List, pos *int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRows(tx, &domain.Board{}, list.BoardID); err != nil {
			if err = notFoundOr(err, repository.ErrBoardNotFound); passThrough(err) {
				return err
			}
			return fmt.Errorf("gorm: lock board %s: %w", list.BoardID, err)
		}
		n, err := countIn(tx, listTable, list.BoardID)
		if err != nil {
			return err
		}
		plan, err := position.Insert(list.BoardID, n, pos)
		if err != nil {
			return err
		}
		list.Position = plan.Target
		return applyPlan(tx, listTable, plan, func(tx *gorm.DB) error {
			if err := tx.Omit("Tasks").Create(list).Error; err != nil {
				return fmt.Errorf("gorm: create list in board %s: %w", list.BoardID, err)
			}
			return nil
		})
	})
}

// Update 修改列表名称和/或位置
func (r *GormListRepository) Update(ctx context.Context, id string, name *string, pos *int) (*domain.List, error) {
	var updated *domain.List
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		list, err := r.lockedList(tx, id)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{}
		if name != nil {
			fields["name"] = *name
		}
		plan := position.Plan{Target: list.Position}
		if pos != nil {
			n, err := countIn(tx, listTable, list.BoardID)
			if err != nil {
				return err
			}
			if plan, err = position.Move(list.BoardID, list.ID, n, list.Position, *pos); err != nil {
				return err
			}
			fields["position"] = plan.Target
		}
		if len(fields) == 0 {
			updated = list
			return nil
		}

		err = applyPlan(tx, listTable, plan, func(tx *gorm.DB) error {
			if err := tx.Model(&domain.List{}).Where("id = ?", list.ID).Updates(fields).Error; err != nil {
				return fmt.Errorf("gorm: update list %s: %w", list.ID, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated, err = findList(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete 删除列表及其任务，并压缩看板内剩余列表的位置
func (r *GormListRepository) Delete(ctx context.Context, id string) (*domain.List, error) {
	var deleted *domain.List
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		list, err := r.lockedList(tx, id)
		if err != nil {
			return err
		}
		deleted = list

		plan := position.Delete(list.BoardID, list.ID, list.Position)
		return applyPlan(tx, listTable, plan, func(tx *gorm.DB) error {
			taskIDs := tx.Model(&domain.Task{}).Select("id").Where("list_id = ?", id)
			if err := tx.Where("task_id IN (?)", taskIDs).Delete(&domain.Comment{}).Error; err != nil {
				return fmt.Errorf("gorm: delete comments of list %s: %w", id, err)
			}
			if err := tx.Where("task_id IN (?)", taskIDs).Delete(&domain.TaskAssignment{}).Error; err != nil {
				return fmt.Errorf("gorm: delete assignments of list %s: %w", id, err)
			}
			if err := tx.Where("list_id = ?", id).Delete(&domain.Task{}).Error; err != nil {
				return fmt.Errorf("gorm: delete tasks of list %s: %w", id, err)
			}
			if err := tx.Where("id = ?", id).Delete(&domain.List{}).Error; err != nil {
				return fmt.Errorf("gorm: delete list %s: %w", id, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// lockedList 锁定列表所属看板后重新读取列表，保证读到的位置是最新的
func (r *GormListRepository) lockedList(tx *gorm.DB, id string) (*domain.List, error) {
	list, err := findList(tx, id)
	if err != nil {
		return nil, err
	}
	if err := lockRows(tx, &domain.Board{}, list.BoardID); err != nil {
		if err = notFoundOr(err, repository.ErrBoardNotFound); passThrough(err) {
			return nil, err
		}
		return nil, fmt.Errorf("gorm: lock board %s: %w", list.BoardID, err)
	}
	return findList(tx, id)
}

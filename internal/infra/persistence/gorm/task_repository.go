package gormpersistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/position"
	"collaborative-kanban/internal/repository"
)

var taskTable = positionTable{model: &domain.Task{}, scopeCol: "list_id"}

// GormTaskRepository 是 TaskRepository 接口的 GORM 实现
type GormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository 创建 GormTaskRepository 实例
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	if db == nil {
		panic("database connection cannot be nil for GormTaskRepository")
	}
	return &GormTaskRepository{db: db}
}

// FindByID 查找任务并预加载负责人
func (r *GormTaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	return findTask(r.db.WithContext(ctx), id, true)
}

func findTask(db *gorm.DB, id string, preload bool) (*domain.Task, error) {
	var task domain.Task
	if preload {
		db = db.Preload("Creator").Preload("Assignees.User")
	}
	if err := db.Where("id = ?", id).First(&task).Error; err != nil {
		if err = notFoundOr(err, repository.ErrTaskNotFound); passThrough(err) {
			return nil, err
		}
		return nil, fmt.Errorf("gorm: find task by id %s: %w", id, err)
	}
	if task.Assignees == nil {
		task.Assignees = []domain.TaskAssignment{}
	}
	return &task, nil
}

// BoardIDOf 通过任务所在列表解析看板 ID
func (r *GormTaskRepository) BoardIDOf(ctx context.Context, taskID string) (string, error) {
	var row struct{ BoardID string }
	result := r.db.WithContext(ctx).Table("tasks").
		Select("lists.board_id AS board_id").
		Joins("JOIN lists ON lists.id = tasks.list_id").
		Where("tasks.id = ?", taskID).
		Limit(1).
		Scan(&row)
	if result.Error != nil {
		return "", fmt.Errorf("gorm: resolve board of task %s: %w", taskID, result.Error)
	}
	if result.RowsAffected == 0 || row.BoardID == "" {
		return "", repository.ErrTaskNotFound
	}
	return row.BoardID, nil
}

// ListByList 按位置分页返回列表中的任务
func (r *GormTaskRepository) ListByList(ctx context.Context, listID string, offset, limit int) ([]domain.Task, int64, error) {
	db := r.db.WithContext(ctx)
	var total int64
	if err := db.Model(&domain.Task{}).Where("list_id = ?", listID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("gorm: count tasks of list %s: %w", listID, err)
	}
	var tasks []domain.Task
	err := db.Preload("Assignees.User").
		Where("list_id = ?", listID).
		Order("position ASC").
		Offset(offset).
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, fmt.Errorf("gorm: list tasks of list %s: %w", listID, err)
	}
	return tasks, total, nil
}

// Create 在列表中插入任务，其后的任务整体后移
func (r *GormTaskRepository) Create(ctx context.Context, task *domain.Task, pos *int) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockList(tx, task.ListID); err != nil {
			return err
		}
		n, err := countIn(tx, taskTable, task.ListID)
		if err != nil {
			return err
		}
		plan, err := position.Insert(task.ListID, n, pos)
		if err != nil {
			return err
		}
		task.Position = plan.Target
		return applyPlan(tx, taskTable, plan, func(tx *gorm.DB) error {
			if err := tx.Omit("Creator", "Assignees").Create(task).Error; err != nil {
				return fmt.Errorf("gorm: create task in list %s: %w", task.ListID, err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	reloaded, err := r.FindByID(ctx, task.ID)
	if err != nil {
		return err
	}
	*task = *reloaded
	return nil
}

// Update 应用字段修改，Position 非 nil 时在列表内重新排序
func (r *GormTaskRepository) Update(ctx context.Context, id string, changes repository.TaskChanges) (*domain.Task, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := lockedTask(tx, id)
		if err != nil {
			return err
		}

		fields := taskFields(changes)
		plan := position.Plan{Target: task.Position}
		if changes.Position != nil {
			n, err := countIn(tx, taskTable, task.ListID)
			if err != nil {
				return err
			}
			if plan, err = position.Move(task.ListID, task.ID, n, task.Position, *changes.Position); err != nil {
				return err
			}
			fields["position"] = plan.Target
		}
		if len(fields) == 0 {
			return nil
		}
		fields["updated_at"] = time.Now()

		return applyPlan(tx, taskTable, plan, func(tx *gorm.DB) error {
			if err := tx.Model(&domain.Task{}).Where("id = ?", id).Updates(fields).Error; err != nil {
				return fmt.Errorf("gorm: update task %s: %w", id, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func taskFields(c repository.TaskChanges) map[string]interface{} {
	fields := map[string]interface{}{}
	if c.Title != nil {
		fields["title"] = *c.Title
	}
	if c.Description != nil {
		fields["description"] = *c.Description
	}
	if c.Priority != nil {
		fields["priority"] = *c.Priority
	}
	if c.Status != nil {
		fields["status"] = *c.Status
	}
	if c.ClearDue {
		fields["due_date"] = nil
	} else if c.DueDate != nil {
		fields["due_date"] = *c.DueDate
	}
	return fields
}

// Move 把任务移动到 toListID 的指定位置。
// 同一列表内为重新排序；跨列表时源列表补位、目标列表让位和任务重新挂载在同一事务中完成。
func (r *GormTaskRepository) Move(ctx context.Context, id, toListID string, pos *int) (*domain.Task, string, error) {
	var oldListID string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := findTask(tx, id, false)
		if err != nil {
			return err
		}
		// 两个列表按 ID 顺序加锁，避免相向移动时死锁
		if err := lockList(tx, current.ListID, toListID); err != nil {
			return err
		}
		task, err := findTask(tx, id, false)
		if err != nil {
			return err
		}
		if task.ListID != current.ListID {
			// 加锁前任务已被其他请求移到别的列表
			return repository.ErrConcurrentModification
		}
		oldListID = task.ListID

		if task.ListID == toListID {
			n, err := countIn(tx, taskTable, task.ListID)
			if err != nil {
				return err
			}
			target := task.Position
			if pos != nil {
				target = *pos
			}
			plan, err := position.Move(task.ListID, task.ID, n, task.Position, target)
			if err != nil {
				return err
			}
			return applyPlan(tx, taskTable, plan, relocateTask(id, toListID, plan.Target))
		}

		destCount, err := countIn(tx, taskTable, toListID)
		if err != nil {
			return err
		}
		plan, err := position.MoveAcross(task.ListID, toListID, task.ID, task.Position, destCount, pos)
		if err != nil {
			return err
		}
		return applyPlan(tx, taskTable, plan, relocateTask(id, toListID, plan.Target))
	})
	if err != nil {
		return nil, "", err
	}
	moved, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return moved, oldListID, nil
}

func relocateTask(id, listID string, target int) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		err := tx.Model(&domain.Task{}).Where("id = ?", id).Updates(map[string]interface{}{
			"list_id":    listID,
			"position":   target,
			"updated_at": time.Now(),
		}).Error
		if err != nil {
			return fmt.Errorf("gorm: relocate task %s to list %s: %w", id, listID, err)
		}
		return nil
	}
}

// Delete 删除任务并压缩同列表剩余任务的位置
func (r *GormTaskRepository) Delete(ctx context.Context, id string) (*domain.Task, error) {
	var deleted *domain.Task
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := lockedTask(tx, id)
		if err != nil {
			return err
		}
		deleted = task

		plan := position.Delete(task.ListID, task.ID, task.Position)
		return applyPlan(tx, taskTable, plan, func(tx *gorm.DB) error {
			if err := tx.Where("task_id = ?", id).Delete(&domain.Comment{}).Error; err != nil {
				return fmt.Errorf("gorm: delete comments of task %s: %w", id, err)
			}
			if err := tx.Where("task_id = ?", id).Delete(&domain.TaskAssignment{}).Error; err != nil {
				return fmt.Errorf("gorm: delete assignments of task %s: %w", id, err)
			}
			if err := tx.Where("id = ?", id).Delete(&domain.Task{}).Error; err != nil {
				return fmt.Errorf("gorm: delete task %s: %w", id, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// Assign 添加负责人
func (r *GormTaskRepository) Assign(ctx context.Context, taskID, userID string) (*domain.TaskAssignment, error) {
	db := r.db.WithContext(ctx)
	assignment := &domain.TaskAssignment{TaskID: taskID, UserID: userID}
	if err := db.Omit("User").Create(assignment).Error; err != nil {
		if isDuplicateEntryError(err) {
			return nil, repository.ErrDuplicateEntry
		}
		return nil, fmt.Errorf("gorm: assign user %s to task %s: %w", userID, taskID, err)
	}
	err := db.Preload("User").Where("task_id = ? AND user_id = ?", taskID, userID).First(assignment).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: reload assignment %s/%s: %w", taskID, userID, err)
	}
	return assignment, nil
}

// Unassign 移除负责人
func (r *GormTaskRepository) Unassign(ctx context.Context, taskID, userID string) error {
	result := r.db.WithContext(ctx).Where("task_id = ? AND user_id = ?", taskID, userID).Delete(&domain.TaskAssignment{})
	if result.Error != nil {
		return fmt.Errorf("gorm: unassign user %s from task %s: %w", userID, taskID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Search 在看板内按标题或描述搜索任务
func (r *GormTaskRepository) Search(ctx context.Context, boardID, query string, limit int) ([]domain.Task, error) {
	pattern := likePattern(query)
	var tasks []domain.Task
	err := r.db.WithContext(ctx).
		Select("tasks.*").
		Preload("Assignees.User").
		Joins("JOIN lists ON lists.id = tasks.list_id").
		Where("lists.board_id = ?", boardID).
		Where("(tasks.title LIKE ? ESCAPE '!' OR tasks.description LIKE ? ESCAPE '!')", pattern, pattern).
		Order("tasks.updated_at DESC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: search tasks in board %s: %w", boardID, err)
	}
	return tasks, nil
}

// lockList 锁定一个或多个列表行，列表不存在时返回 ErrListNotFound
func lockList(tx *gorm.DB, ids ...string) error {
	if err := lockRows(tx, &domain.List{}, ids...); err != nil {
		if err = notFoundOr(err, repository.ErrListNotFound); passThrough(err) {
			return err
		}
		return fmt.Errorf("gorm: lock lists %v: %w", ids, err)
	}
	return nil
}

// lockedTask 锁定任务所在列表后重新读取任务。
// 加锁前任务已被移到别的列表时返回 ErrConcurrentModification。
func lockedTask(tx *gorm.DB, id string) (*domain.Task, error) {
	current, err := findTask(tx, id, false)
	if err != nil {
		return nil, err
	}
	if err := lockList(tx, current.ListID); err != nil {
		return nil, err
	}
	task, err := findTask(tx, id, false)
	if err != nil {
		return nil, err
	}
	if task.ListID != current.ListID {
		return nil, repository.ErrConcurrentModification
	}
	return task, nil
}

package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"
)

// GormBoardRepository 是 BoardRepository 接口的 GORM 实现
type GormBoardRepository struct {
	db *gorm.DB
}

// NewGormBoardRepository 创建 GormBoardRepository 实例
func NewGormBoardRepository(db *gorm.DB) *GormBoardRepository {
	if db == nil {
		panic("database connection cannot be nil for GormBoardRepository")
	}
	return &GormBoardRepository{db: db}
}

// Create 在一个事务内创建看板和成员关系。所有者总是以 owner 角色加入。
func (r *GormBoardRepository) Create(ctx context.Context, board *domain.Board, memberIDs []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Owner", "Members", "Lists").Create(board).Error; err != nil {
			return fmt.Errorf("gorm: create board: %w", err)
		}

		members := []domain.BoardMember{{BoardID: board.ID, UserID: board.OwnerID, Role: domain.RoleOwner}}
		seen := map[string]bool{board.OwnerID: true}
		for _, id := range memberIDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			members = append(members, domain.BoardMember{BoardID: board.ID, UserID: id, Role: domain.RoleMember})
		}
		if err := tx.Omit("User").Create(&members).Error; err != nil {
			if isDuplicateEntryError(err) {
				return repository.ErrDuplicateEntry
			}
			return fmt.Errorf("gorm: create board members: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	reloaded, err := r.FindByID(ctx, board.ID)
	if err != nil {
		return err
	}
	*board = *reloaded
	return nil
}

// FindByID 查找看板并预加载所有者和成员
func (r *GormBoardRepository) FindByID(ctx context.Context, id string) (*domain.Board, error) {
	var board domain.Board
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Preload("Members.User").
		Where("id = ?", id).
		First(&board).Error
	if err != nil {
		if err = notFoundOr(err, repository.ErrBoardNotFound); passThrough(err) {
			return nil, err
		}
		return nil, fmt.Errorf("gorm: find board by id %s: %w", id, err)
	}
	return &board, nil
}

// FindDetail 查找看板并预加载成员、列表、任务及负责人，列表和任务均按位置排序
func (r *GormBoardRepository) FindDetail(ctx context.Context, id string) (*domain.Board, error) {
	var board domain.Board
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC") }).
		Preload("Members.User").
		Preload("Lists", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Lists.Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Lists.Tasks.Assignees.User").
		Where("id = ?", id).
		First(&board).Error
	if err != nil {
		if err = notFoundOr(err, repository.ErrBoardNotFound); passThrough(err) {
			return nil, err
		}
		return nil, fmt.Errorf("gorm: find board detail %s: %w", id, err)
	}
	return &board, nil
}

// Update 按字段更新看板
func (r *GormBoardRepository) Update(ctx context.Context, id string, fields map[string]interface{}) (*domain.Board, error) {
	if len(fields) > 0 {
		result := r.db.WithContext(ctx).Model(&domain.Board{}).Where("id = ?", id).Updates(fields)
		if result.Error != nil {
			return nil, fmt.Errorf("gorm: update board %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, repository.ErrBoardNotFound
		}
	}
	return r.FindByID(ctx, id)
}

// Delete 在一个事务内删除看板及其全部从属数据
func (r *GormBoardRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockRows(tx, &domain.Board{}, id); err != nil {
			if err = notFoundOr(err, repository.ErrBoardNotFound); passThrough(err) {
				return err
			}
			return fmt.Errorf("gorm: lock board %s: %w", id, err)
		}

		listIDs := tx.Model(&domain.List{}).Select("id").Where("board_id = ?", id)
		taskIDs := tx.Model(&domain.Task{}).Select("id").Where("list_id IN (?)", listIDs)

		steps := []struct {
			name  string
			model interface{}
			query string
			arg   interface{}
		}{
			{"comments", &domain.Comment{}, "task_id IN (?)", taskIDs},
			{"assignments", &domain.TaskAssignment{}, "task_id IN (?)", taskIDs},
			{"tasks", &domain.Task{}, "list_id IN (?)", listIDs},
			{"lists", &domain.List{}, "board_id = ?", id},
			{"activities", &domain.Activity{}, "board_id = ?", id},
			{"members", &domain.BoardMember{}, "board_id = ?", id},
			{"board", &domain.Board{}, "id = ?", id},
		}
		for _, step := range steps {
			if err := tx.Where(step.query, step.arg).Delete(step.model).Error; err != nil {
				return fmt.Errorf("gorm: delete %s of board %s: %w", step.name, id, err)
			}
		}
		return nil
	})
}

type boardCount struct {
	BoardID string
	N       int64
}

// ListForUser 分页返回用户参与的看板 (可按名称或描述搜索)，附带成员、列表和任务数量
func (r *GormBoardRepository) ListForUser(ctx context.Context, q repository.BoardQuery) ([]domain.BoardSummary, int64, error) {
	db := r.db.WithContext(ctx)
	scope := func(tx *gorm.DB) *gorm.DB {
		tx = tx.Where("id IN (?)", db.Model(&domain.BoardMember{}).Select("board_id").Where("user_id = ?", q.UserID))
		if q.Search != "" {
			pattern := likePattern(q.Search)
			tx = tx.Where("(name LIKE ? ESCAPE '!' OR description LIKE ? ESCAPE '!')", pattern, pattern)
		}
		return tx
	}

	var total int64
	if err := db.Model(&domain.Board{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("gorm: count boards for user %s: %w", q.UserID, err)
	}

	var boards []domain.Board
	err := db.Preload("Owner").
		Scopes(scope).
		Order("updated_at DESC").
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&boards).Error
	if err != nil {
		return nil, 0, fmt.Errorf("gorm: list boards for user %s: %w", q.UserID, err)
	}
	if len(boards) == 0 {
		return []domain.BoardSummary{}, total, nil
	}

	ids := make([]string, len(boards))
	for i, b := range boards {
		ids[i] = b.ID
	}
	memberCounts, err := r.countBy(db.Model(&domain.BoardMember{}).Select("board_id, COUNT(*) AS n").Where("board_id IN ?", ids).Group("board_id"))
	if err != nil {
		return nil, 0, err
	}
	listCounts, err := r.countBy(db.Model(&domain.List{}).Select("board_id, COUNT(*) AS n").Where("board_id IN ?", ids).Group("board_id"))
	if err != nil {
		return nil, 0, err
	}
	taskCounts, err := r.countBy(db.Table("tasks").
		Select("lists.board_id AS board_id, COUNT(*) AS n").
		Joins("JOIN lists ON lists.id = tasks.list_id").
		Where("lists.board_id IN ?", ids).
		Group("lists.board_id"))
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]domain.BoardSummary, len(boards))
	for i, b := range boards {
		summaries[i] = domain.BoardSummary{
			Board:       b,
			MemberCount: memberCounts[b.ID],
			ListCount:   listCounts[b.ID],
			TaskCount:   taskCounts[b.ID],
		}
	}
	return summaries, total, nil
}

func (r *GormBoardRepository) countBy(query *gorm.DB) (map[string]int64, error) {
	var rows []boardCount
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("gorm: count board children: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.BoardID] = row.N
	}
	return out, nil
}

// FindMember 查找成员关系
func (r *GormBoardRepository) FindMember(ctx context.Context, boardID, userID string) (*domain.BoardMember, error) {
	var member domain.BoardMember
	err := r.db.WithContext(ctx).Where("board_id = ? AND user_id = ?", boardID, userID).First(&member).Error
	if err != nil {
		if err = notFoundOr(err, repository.ErrMemberNotFound); passThrough(err) {
			return nil, err
		}
		return nil, fmt.Errorf("gorm: find member %s of board %s: %w", userID, boardID, err)
	}
	return &member, nil
}

// ListMembers 返回看板成员 (按加入时间排序)
func (r *GormBoardRepository) ListMembers(ctx context.Context, boardID string) ([]domain.BoardMember, error) {
	var members []domain.BoardMember
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("board_id = ?", boardID).
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list members of board %s: %w", boardID, err)
	}
	return members, nil
}

// AddMember 添加成员并加载用户信息
func (r *GormBoardRepository) AddMember(ctx context.Context, member *domain.BoardMember) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit("User").Create(member).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: add member %s to board %s: %w", member.UserID, member.BoardID, err)
	}
	if err := db.Preload("User").Where("id = ?", member.ID).First(member).Error; err != nil {
		return fmt.Errorf("gorm: reload member %s: %w", member.ID, err)
	}
	return nil
}

// RemoveMember 移除成员
func (r *GormBoardRepository) RemoveMember(ctx context.Context, boardID, userID string) error {
	result := r.db.WithContext(ctx).Where("board_id = ? AND user_id = ?", boardID, userID).Delete(&domain.BoardMember{})
	if result.Error != nil {
		return fmt.Errorf("gorm: remove member %s from board %s: %w", userID, boardID, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrMemberNotFound
	}
	return nil
}

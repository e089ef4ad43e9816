package gormpersistence_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"collaborative-kanban/internal/domain"
	gormpersistence "collaborative-kanban/internal/infra/persistence/gorm"
	"collaborative-kanban/internal/infra/setup"
)

type fixture struct {
	db       *gorm.DB
	users    *gormpersistence.GormUserRepository
	boards   *gormpersistence.GormBoardRepository
	lists    *gormpersistence.GormListRepository
	tasks    *gormpersistence.GormTaskRepository
	comments *gormpersistence.GormCommentRepository
	acts     *gormpersistence.GormActivityRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := setup.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, setup.MigrateDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &fixture{
		db:       db,
		users:    gormpersistence.NewGormUserRepository(db),
		boards:   gormpersistence.NewGormBoardRepository(db),
		lists:    gormpersistence.NewGormListRepository(db),
		tasks:    gormpersistence.NewGormTaskRepository(db),
		comments: gormpersistence.NewGormCommentRepository(db),
		acts:     gormpersistence.NewGormActivityRepository(db),
	}
}

func (f *fixture) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u := &domain.User{Username: name, Email: name + "@example.com", Password: "hash"}
	require.NoError(t, f.users.Save(context.Background(), u))
	return u
}

func (f *fixture) board(t *testing.T, owner *domain.User, members ...string) *domain.Board {
	t.Helper()
	b := &domain.Board{Name: "Board", Color: domain.DefaultBoardColor, OwnerID: owner.ID}
	require.NoError(t, f.boards.Create(context.Background(), b, members))
	return b
}

func (f *fixture) list(t *testing.T, boardID, name string) *domain.List {
	t.Helper()
	l := &domain.List{BoardID: boardID, Name: name}
	require.NoError(t, f.lists.Create(context.Background(), l, nil))
	return l
}

func (f *fixture) task(t *testing.T, listID, creatorID, title string) *domain.Task {
	t.Helper()
	task := &domain.Task{ListID: listID, CreatorID: creatorID, Title: title}
	require.NoError(t, f.tasks.Create(context.Background(), task, nil))
	return task
}

// taskPositions 返回列表中 标题 -> 位置
func (f *fixture) taskPositions(t *testing.T, listID string) map[string]int {
	t.Helper()
	var tasks []domain.Task
	require.NoError(t, f.db.Where("list_id = ?", listID).Find(&tasks).Error)
	out := make(map[string]int, len(tasks))
	for _, task := range tasks {
		out[task.Title] = task.Position
	}
	return out
}

// listPositions 返回看板中 名称 -> 位置
func (f *fixture) listPositions(t *testing.T, boardID string) map[string]int {
	t.Helper()
	var lists []domain.List
	require.NoError(t, f.db.Where("board_id = ?", boardID).Find(&lists).Error)
	out := make(map[string]int, len(lists))
	for _, l := range lists {
		out[l.Name] = l.Position
	}
	return out
}

func intPtr(v int) *int { return &v }

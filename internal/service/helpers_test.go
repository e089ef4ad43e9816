package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"collaborative-kanban/internal/domain"
	gormpersistence "collaborative-kanban/internal/infra/persistence/gorm"
	"collaborative-kanban/internal/infra/setup"
	"collaborative-kanban/internal/repository"
	"collaborative-kanban/internal/service"
)

type sentEvent struct {
	BoardID string
	Event   string
	Payload interface{}
}

// recordingBroadcaster 记录所有广播，fail 非 nil 时返回该错误
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []sentEvent
	fail   error
}

func (b *recordingBroadcaster) BroadcastToBoard(boardID, event string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, sentEvent{BoardID: boardID, Event: event, Payload: payload})
	return b.fail
}

func (b *recordingBroadcaster) named(event string) []sentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentEvent
	for _, e := range b.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type env struct {
	users      repository.UserRepository
	boardRepo  *gormpersistence.GormBoardRepository
	activities *service.ActivityService
	guard      *service.AccessGuard
	boards     *service.BoardService
	lists      *service.ListService
	tasks      *service.TaskService
	comments   *service.CommentService
	hub        *recordingBroadcaster
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithCache(t, nil)
}

func newEnvWithCache(t *testing.T, cache repository.BoardCache) *env {
	t.Helper()
	db, err := setup.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, setup.MigrateDB(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	userRepo := gormpersistence.NewGormUserRepository(db)
	boardRepo := gormpersistence.NewGormBoardRepository(db)
	listRepo := gormpersistence.NewGormListRepository(db)
	taskRepo := gormpersistence.NewGormTaskRepository(db)
	commentRepo := gormpersistence.NewGormCommentRepository(db)
	activityRepo := gormpersistence.NewGormActivityRepository(db)

	hub := &recordingBroadcaster{}
	guard := service.NewAccessGuard(boardRepo, listRepo, taskRepo)
	activities := service.NewActivityService(activityRepo, guard)
	return &env{
		users:      userRepo,
		boardRepo:  boardRepo,
		activities: activities,
		guard:      guard,
		boards:     service.NewBoardService(boardRepo, userRepo, guard, activities, cache, 0, hub),
		lists:      service.NewListService(listRepo, guard, activities, cache, hub),
		tasks:      service.NewTaskService(taskRepo, guard, activities, cache, hub),
		comments:   service.NewCommentService(commentRepo, guard, activities, hub),
		hub:        hub,
	}
}

func (e *env) user(t *testing.T, name string) *domain.User {
	t.Helper()
	u := &domain.User{Username: name, Email: name + "@example.com", Password: "hash"}
	require.NoError(t, e.users.Save(context.Background(), u))
	return u
}

func (e *env) board(t *testing.T, owner *domain.User, members ...*domain.User) *domain.Board {
	t.Helper()
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	b, err := e.boards.CreateBoard(context.Background(), owner.ID, service.CreateBoardInput{Name: "Sprint", MemberIDs: ids})
	require.NoError(t, err)
	return b
}

func (e *env) list(t *testing.T, userID, boardID, name string) *domain.List {
	t.Helper()
	l, err := e.lists.CreateList(context.Background(), userID, boardID, name, nil)
	require.NoError(t, err)
	return l
}

func (e *env) task(t *testing.T, userID, listID, title string) *domain.Task {
	t.Helper()
	task, err := e.tasks.CreateTask(context.Background(), userID, listID, service.CreateTaskInput{Title: title})
	require.NoError(t, err)
	return task
}

// taskPositions 返回列表中 任务ID -> 位置 的映射
func (e *env) taskPositions(t *testing.T, userID, listID string) map[string]int {
	t.Helper()
	page, err := e.tasks.ListTasks(context.Background(), userID, listID, service.NewPage(1, 100, service.DefaultTaskPageSize))
	require.NoError(t, err)
	out := make(map[string]int, len(page.Tasks))
	for _, task := range page.Tasks {
		out[task.ID] = task.Position
	}
	return out
}

func isKind(err, kind error) bool { return errors.Is(err, kind) }

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

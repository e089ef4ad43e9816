package gormpersistence_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/position"
	"collaborative-kanban/internal/repository"
)

func positionsOf(t *testing.T, f *fixture, listID string) []int {
	t.Helper()
	var tasks []domain.Task
	require.NoError(t, f.db.Where("list_id = ?", listID).Find(&tasks).Error)
	out := make([]int, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, task.Position)
	}
	return out
}

func TestTaskRepository_ConcurrentInsertsAndMovesStayDense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	board := f.board(t, owner)
	a := f.list(t, board.ID, "A")
	b := f.list(t, board.ID, "B")

	var fromA, fromB []*domain.Task
	for i := 0; i < 5; i++ {
		fromA = append(fromA, f.task(t, a.ID, owner.ID, fmt.Sprintf("a%d", i)))
	}
	for i := 0; i < 10; i++ {
		fromB = append(fromB, f.task(t, b.ID, owner.ID, fmt.Sprintf("b%d", i)))
	}

	const inserts = 20
	var wg sync.WaitGroup
	errs := make(chan error, inserts+len(fromA)+len(fromB))
	for i := 0; i < inserts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task := &domain.Task{ListID: a.ID, CreatorID: owner.ID, Title: fmt.Sprintf("new%d", i)}
			errs <- f.tasks.Create(ctx, task, intPtr(0))
		}(i)
	}
	for _, task := range fromB {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _, err := f.tasks.Move(ctx, id, a.ID, intPtr(0))
			errs <- err
		}(task.ID)
	}
	for _, task := range fromA {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _, err := f.tasks.Move(ctx, id, b.ID, intPtr(0))
			errs <- err
		}(task.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	inA := positionsOf(t, f, a.ID)
	inB := positionsOf(t, f, b.ID)
	assert.Len(t, inA, inserts+len(fromB))
	assert.Len(t, inB, len(fromA))
	assert.Truef(t, position.Dense(inA), "list A positions not dense: %v", inA)
	assert.Truef(t, position.Dense(inB), "list B positions not dense: %v", inB)
}

// moveDuringLock 在事务第一次读取任务后把任务改挂到 toListID，模拟加锁前的并发移动
func moveDuringLock(t *testing.T, f *fixture, taskID, toListID string) {
	t.Helper()
	armed := true
	name := "test:concurrent_move_" + taskID
	require.NoError(t, f.db.Callback().Query().After("gorm:query").Register(name, func(tx *gorm.DB) {
		if !armed || tx.Statement.Table != "tasks" {
			return
		}
		armed = false
		_ = tx.AddError(tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE tasks SET list_id = ? WHERE id = ?", toListID, taskID).Error)
	}))
	t.Cleanup(func() { _ = f.db.Callback().Query().Remove(name) })
}

func TestTaskRepository_DeleteDetectsConcurrentMove(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	board := f.board(t, owner)
	a := f.list(t, board.ID, "A")
	b := f.list(t, board.ID, "B")
	task := f.task(t, a.ID, owner.ID, "x")
	f.task(t, a.ID, owner.ID, "y")

	moveDuringLock(t, f, task.ID, b.ID)

	_, err := f.tasks.Delete(context.Background(), task.ID)
	assert.ErrorIs(t, err, repository.ErrConcurrentModification)
	assert.Equal(t, map[string]int{"x": 0, "y": 1}, f.taskPositions(t, a.ID))
	assert.Empty(t, f.taskPositions(t, b.ID))
}

func TestTaskRepository_UpdateDetectsConcurrentMove(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	board := f.board(t, owner)
	a := f.list(t, board.ID, "A")
	b := f.list(t, board.ID, "B")
	task := f.task(t, a.ID, owner.ID, "x")
	f.task(t, a.ID, owner.ID, "y")

	moveDuringLock(t, f, task.ID, b.ID)

	_, err := f.tasks.Update(context.Background(), task.ID, repository.TaskChanges{Position: intPtr(1)})
	assert.ErrorIs(t, err, repository.ErrConcurrentModification)
	assert.Equal(t, map[string]int{"x": 0, "y": 1}, f.taskPositions(t, a.ID))
}

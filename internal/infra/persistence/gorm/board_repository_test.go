package gormpersistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"
)

func TestBoardRepository_CreateAddsOwnerAndMembers(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	alice := f.user(t, "alice")

	board := f.board(t, owner, alice.ID, owner.ID, alice.ID)

	require.Len(t, board.Members, 2, "重复的成员和所有者不应重复写入")
	roles := map[string]string{}
	for _, m := range board.Members {
		roles[m.UserID] = m.Role
	}
	assert.Equal(t, domain.RoleOwner, roles[owner.ID])
	assert.Equal(t, domain.RoleMember, roles[alice.ID])
	require.NotNil(t, board.Owner)
	assert.Equal(t, "owner", board.Owner.Username)
}

func TestBoardRepository_FindDetailOrdersListsAndTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	board := f.board(t, owner)
	f.list(t, board.ID, "B")
	first := &domain.List{BoardID: board.ID, Name: "A"}
	require.NoError(t, f.lists.Create(ctx, first, intPtr(0)))
	f.task(t, first.ID, owner.ID, "t1")
	top := &domain.Task{ListID: first.ID, CreatorID: owner.ID, Title: "t0"}
	require.NoError(t, f.tasks.Create(ctx, top, intPtr(0)))

	detail, err := f.boards.FindDetail(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, detail.Lists, 2)
	assert.Equal(t, "A", detail.Lists[0].Name)
	assert.Equal(t, "B", detail.Lists[1].Name)
	require.Len(t, detail.Lists[0].Tasks, 2)
	assert.Equal(t, "t0", detail.Lists[0].Tasks[0].Title)
	assert.Equal(t, "t1", detail.Lists[0].Tasks[1].Title)
}

func TestBoardRepository_ListForUserSearchAndCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	outsider := f.user(t, "outsider")

	roadmap := &domain.Board{Name: "Roadmap 2025", Color: domain.DefaultBoardColor, OwnerID: owner.ID}
	require.NoError(t, f.boards.Create(ctx, roadmap, []string{outsider.ID}))
	list := f.list(t, roadmap.ID, "L")
	f.task(t, list.ID, owner.ID, "x")
	f.task(t, list.ID, owner.ID, "y")
	require.NoError(t, f.boards.Create(ctx, &domain.Board{Name: "Personal", Color: domain.DefaultBoardColor, OwnerID: owner.ID}, nil))
	require.NoError(t, f.boards.Create(ctx, &domain.Board{Name: "Other's", Color: domain.DefaultBoardColor, OwnerID: outsider.ID}, nil))

	all, total, err := f.boards.ListForUser(ctx, repository.BoardQuery{UserID: owner.ID, Limit: 20})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	found, total, err := f.boards.ListForUser(ctx, repository.BoardQuery{UserID: owner.ID, Search: "road", Limit: 20})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, roadmap.ID, found[0].ID)
	assert.EqualValues(t, 2, found[0].MemberCount)
	assert.EqualValues(t, 1, found[0].ListCount)
	assert.EqualValues(t, 2, found[0].TaskCount)

	page, total, err := f.boards.ListForUser(ctx, repository.BoardQuery{UserID: owner.ID, Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, page, 1)
}

func TestBoardRepository_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	board := f.board(t, owner)
	keep := f.board(t, owner)
	list := f.list(t, board.ID, "L")
	task := f.task(t, list.ID, owner.ID, "x")
	f.task(t, f.list(t, keep.ID, "K").ID, owner.ID, "kept")
	require.NoError(t, f.comments.Create(ctx, &domain.Comment{TaskID: task.ID, UserID: owner.ID, Content: "c"}))
	require.NoError(t, f.acts.Save(ctx, &domain.Activity{BoardID: board.ID, UserID: owner.ID, ActionType: domain.ActionCreated, EntityType: domain.EntityTask, EntityID: task.ID}))

	require.NoError(t, f.boards.Delete(ctx, board.ID))

	_, err := f.boards.FindByID(ctx, board.ID)
	assert.ErrorIs(t, err, repository.ErrBoardNotFound)
	counts := map[string]interface{}{
		"lists":      &domain.List{},
		"tasks":      &domain.Task{},
		"comments":   &domain.Comment{},
		"members":    &domain.BoardMember{},
		"activities": &domain.Activity{},
	}
	want := map[string]int64{"lists": 1, "tasks": 1, "comments": 0, "members": 1, "activities": 0}
	for name, model := range counts {
		var n int64
		require.NoError(t, f.db.Model(model).Count(&n).Error)
		assert.Equalf(t, want[name], n, "%s 数量不符", name)
	}

	assert.ErrorIs(t, f.boards.Delete(ctx, board.ID), repository.ErrBoardNotFound)
}

func TestBoardRepository_Members(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	bob := f.user(t, "bob")
	board := f.board(t, owner)

	member := &domain.BoardMember{BoardID: board.ID, UserID: bob.ID, Role: domain.RoleMember}
	require.NoError(t, f.boards.AddMember(ctx, member))
	require.NotNil(t, member.User)
	assert.Equal(t, "bob", member.User.Username)

	dup := &domain.BoardMember{BoardID: board.ID, UserID: bob.ID, Role: domain.RoleMember}
	assert.ErrorIs(t, f.boards.AddMember(ctx, dup), repository.ErrDuplicateEntry)

	members, err := f.boards.ListMembers(ctx, board.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	require.NoError(t, f.boards.RemoveMember(ctx, board.ID, bob.ID))
	assert.ErrorIs(t, f.boards.RemoveMember(ctx, board.ID, bob.ID), repository.ErrMemberNotFound)
	_, err = f.boards.FindMember(ctx, board.ID, bob.ID)
	assert.ErrorIs(t, err, repository.ErrMemberNotFound)
}

func TestActivityRepository_ListNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	board := f.board(t, owner)
	base := time.Now().Add(-time.Hour)
	for i, action := range []string{domain.ActionCreated, domain.ActionUpdated, domain.ActionDeleted} {
		require.NoError(t, f.acts.Save(ctx, &domain.Activity{
			BoardID: board.ID, UserID: owner.ID, ActionType: action,
			EntityType: domain.EntityTask, EntityID: "t", CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, total, err := f.acts.ListByBoard(ctx, board.ID, 0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, domain.ActionDeleted, page[0].ActionType)
	assert.Equal(t, domain.ActionUpdated, page[1].ActionType)
	require.NotNil(t, page[0].User)
}

func TestActivityRepository_SaveSameIDIsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	board := f.board(t, owner)
	activity := domain.Activity{ID: uuid.NewString(), BoardID: board.ID, UserID: owner.ID, ActionType: domain.ActionCreated, EntityType: domain.EntityBoard, EntityID: board.ID}

	first := activity
	require.NoError(t, f.acts.Save(ctx, &first))
	retry := activity
	assert.ErrorIs(t, f.acts.Save(ctx, &retry), repository.ErrDuplicateEntry)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, "taken")

	err := f.users.Save(ctx, &domain.User{Username: "other", Email: "taken@example.com", Password: "h"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEntry)

	found, err := f.users.FindByEmail(ctx, "taken@example.com")
	require.NoError(t, err)
	assert.Equal(t, "taken", found.Username)

	_, err = f.users.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

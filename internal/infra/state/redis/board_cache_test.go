package redisstate_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collaborative-kanban/internal/domain"
	redisstate "collaborative-kanban/internal/infra/state/redis"
	"collaborative-kanban/internal/repository"
)

func newCache(t *testing.T) (*redisstate.RedisBoardCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisstate.NewRedisBoardCache(client, "test:"), mr
}

func TestBoardCache_MissThenHit(t *testing.T) {
	cache, mr := newCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "b1")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	board := &domain.Board{
		ID:      "b1",
		Name:    "Roadmap",
		Color:   domain.DefaultBoardColor,
		OwnerID: "u1",
		Lists:   []domain.List{{ID: "l1", Name: "To Do", BoardID: "b1", Position: 0}},
	}
	require.NoError(t, cache.Set(ctx, board, time.Minute))
	assert.True(t, mr.Exists("test:board:b1:detail"))

	got, err := cache.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Roadmap", got.Name)
	require.Len(t, got.Lists, 1)
	assert.Equal(t, "To Do", got.Lists[0].Name)
}

func TestBoardCache_ExpiresAfterTTL(t *testing.T) {
	cache, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &domain.Board{ID: "b2", Name: "x"}, 10*time.Second))
	mr.FastForward(11 * time.Second)

	_, err := cache.Get(ctx, "b2")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}

func TestBoardCache_Invalidate(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &domain.Board{ID: "b3", Name: "x"}, 0))
	require.NoError(t, cache.Invalidate(ctx, "b3"))
	require.NoError(t, cache.Invalidate(ctx, "b3"), "删除不存在的键不应报错")

	_, err := cache.Get(ctx, "b3")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)
}

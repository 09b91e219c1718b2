package users

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/notematic/internal/common"
	"github.com/dmitrijs2005/notematic/internal/logging"
	"github.com/dmitrijs2005/notematic/internal/server/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	mu     sync.Mutex
	users  map[string]*models.User
	finds  int
	failOn error
}

func (c *countingRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finds++
	if c.failOn != nil {
		return nil, c.failOn
	}
	u, ok := c.users[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (c *countingRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.users[user.Username]; ok {
		return nil, common.ErrStoreConflict
	}
	cp := *user
	cp.ID = "id-" + user.Username
	cp.Rev = "1"
	c.users[user.Username] = &cp
	out := cp
	return &out, nil
}

func newCached(t *testing.T) (*CachedRepository, *countingRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	inner := &countingRepo{users: map[string]*models.User{
		"alice": {ID: "u-1", Username: "alice", Email: "a@x.io", PasswordHash: "h"},
	}}
	return NewCachedRepository(inner, rdb, time.Minute, logging.Nop()), inner, mr
}

func TestCached_ReadThrough(t *testing.T) {
	repo, inner, mr := newCached(t)
	ctx := context.Background()

	u, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.True(t, mr.Exists(cacheKey("alice")))

	u, err = repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, 1, inner.finds)

	mr.FastForward(2 * time.Minute)
	_, err = repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.finds)
}

func TestCached_NegativeNotCached(t *testing.T) {
	repo, inner, mr := newCached(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := repo.FindByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	}
	assert.Equal(t, 2, inner.finds)
	assert.False(t, mr.Exists(cacheKey("ghost")))
}

func TestCached_StoreErrorNotCached(t *testing.T) {
	repo, inner, mr := newCached(t)
	inner.failOn = common.ErrStoreUnavailable

	_, err := repo.FindByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.False(t, mr.Exists(cacheKey("alice")))
}

func TestCached_RedisDownFallsThrough(t *testing.T) {
	repo, inner, mr := newCached(t)
	mr.Close()

	u, err := repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, 1, inner.finds)
}

func TestCached_CorruptEntryIgnored(t *testing.T) {
	repo, inner, mr := newCached(t)
	require.NoError(t, mr.Set(cacheKey("alice"), "{not json"))

	u, err := repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, 1, inner.finds)
}

func TestCached_CreatePopulatesCache(t *testing.T) {
	repo, inner, mr := newCached(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.User{Username: "bob", Email: "b@x.io"})
	require.NoError(t, err)

	raw, err := mr.Get(cacheKey("bob"))
	require.NoError(t, err)
	var cached models.User
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, created.ID, cached.ID)

	_, err = repo.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, inner.finds)

	_, err = repo.Create(ctx, &models.User{Username: "bob"})
	assert.ErrorIs(t, err, common.ErrStoreConflict)
}

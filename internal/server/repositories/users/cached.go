package users

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/notematic/internal/logging"
	"github.com/dmitrijs2005/notematic/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "notematic:user:"

// CachedRepository is a read-through cache in front of another Repository.
// Only successful lookups are cached; Redis failures fall through to the
// underlying store.
type CachedRepository struct {
	next   Repository
	client redis.UniversalClient
	ttl    time.Duration
	logger logging.Logger
}

func NewCachedRepository(next Repository, client redis.UniversalClient, ttl time.Duration, logger logging.Logger) *CachedRepository {
	return &CachedRepository{next: next, client: client, ttl: ttl, logger: logger}
}

func cacheKey(username string) string {
	return cacheKeyPrefix + username
}

func (r *CachedRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	key := cacheKey(username)

	data, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var u models.User
		jerr := json.Unmarshal(data, &u)
		if jerr == nil {
			return &u, nil
		}
		r.logger.Warn(ctx, "discarding corrupt cached user", "key", key, "error", jerr)
	case !errors.Is(err, redis.Nil):
		r.logger.Warn(ctx, "user cache read failed", "key", key, "error", err)
	}

	u, err := r.next.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	r.store(ctx, u)
	return u, nil
}

func (r *CachedRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	u, err := r.next.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	r.store(ctx, u)
	return u, nil
}

func (r *CachedRepository) store(ctx context.Context, u *models.User) {
	data, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, cacheKey(u.Username), data, r.ttl).Err(); err != nil {
		r.logger.Warn(ctx, "user cache write failed", "username", u.Username, "error", err)
	}
}

var _ Repository = (*CachedRepository)(nil)

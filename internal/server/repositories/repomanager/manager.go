// Package repomanager builds the user store selected by configuration:
// the CouchDB gateway or the PostgreSQL store (with goose migrations),
// optionally fronted by the Redis read-through cache.
package repomanager

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notematic/internal/logging"
	"github.com/dmitrijs2005/notematic/internal/server/config"
	"github.com/dmitrijs2005/notematic/internal/server/repositories/users"
	"github.com/redis/go-redis/v9"
)

// Store is the opened user store together with the resources behind it.
type Store struct {
	Users   users.Repository
	ping    func(context.Context) error
	closers []func() error
}

// Ping checks the backing store.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases connections in reverse order of acquisition.
func (s *Store) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Open builds the store for cfg.StoreBackend and prepares its schema.
func Open(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Store, error) {
	var (
		s   *Store
		err error
	)
	switch cfg.StoreBackend {
	case config.StoreCouchDB:
		s, err = openCouchDB(ctx, cfg)
	case config.StorePostgres:
		s, err = openPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn(ctx, "redis unreachable, user cache disabled", "addr", cfg.RedisAddr, "error", err)
			_ = rdb.Close()
		} else {
			s.Users = users.NewCachedRepository(s.Users, rdb, cfg.UserCacheTTL, logger.With("component", "user_cache"))
			s.closers = append(s.closers, rdb.Close)
			logger.Info(ctx, "user cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.UserCacheTTL)
		}
	}

	logger.Info(ctx, "user store ready", "backend", cfg.StoreBackend)
	return s, nil
}

func openCouchDB(ctx context.Context, cfg *config.Config) (*Store, error) {
	repo := users.NewCouchDBRepository(cfg.CouchDBURL, cfg.CouchDBDatabase, cfg.CouchDBUser, cfg.CouchDBPassword, cfg.StoreTimeout)

	if err := repo.EnsureDatabase(ctx); err != nil {
		return nil, fmt.Errorf("couchdb database: %w", err)
	}
	if err := repo.EnsureDesignDoc(ctx); err != nil {
		return nil, fmt.Errorf("couchdb design doc: %w", err)
	}
	return &Store{Users: repo, ping: repo.Ping}, nil
}

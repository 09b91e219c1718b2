package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/notematic/internal/logging"
	"github.com/dmitrijs2005/notematic/internal/server/config"
	"github.com/dmitrijs2005/notematic/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func couchServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/users":
			w.WriteHeader(http.StatusPreconditionFailed)
		case r.Method == http.MethodGet && r.URL.Path == "/users/_design/users":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"_id":"_design/users"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/":
			_, _ = w.Write([]byte(`{"couchdb":"Welcome"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func couchConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.CouchDBURL = url
	cfg.StoreTimeout = time.Second
	return cfg
}

func TestOpen_CouchDB(t *testing.T) {
	srv := couchServer(t)

	s, err := Open(context.Background(), couchConfig(srv.URL), logging.Nop())
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Users.(*users.CouchDBRepository)
	assert.True(t, ok, "expected CouchDB repository, got %T", s.Users)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpen_CouchDBUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := Open(context.Background(), couchConfig(srv.URL), logging.Nop())
	assert.Error(t, err)
}

func TestOpen_WithRedisCache(t *testing.T) {
	srv := couchServer(t)
	mr := miniredis.RunT(t)

	cfg := couchConfig(srv.URL)
	cfg.RedisAddr = mr.Addr()

	s, err := Open(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Users.(*users.CachedRepository)
	assert.True(t, ok, "expected cached repository, got %T", s.Users)
}

func TestOpen_RedisDownDisablesCache(t *testing.T) {
	srv := couchServer(t)
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := couchConfig(srv.URL)
	cfg.RedisAddr = addr

	s, err := Open(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Users.(*users.CouchDBRepository)
	assert.True(t, ok)
}

func TestOpen_UnknownBackend(t *testing.T) {
	cfg := couchConfig("http://127.0.0.1:1")
	cfg.StoreBackend = "mongo"

	_, err := Open(context.Background(), cfg, logging.Nop())
	assert.Error(t, err)
}

func withSeams(t *testing.T, db *sql.DB, up func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error) {
	t.Helper()
	origOpen, origUp := sqlOpen, gooseUpContext
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		if driver != "pgx" {
			return nil, errors.New("unexpected driver " + driver)
		}
		return db, nil
	}
	gooseUpContext = up
	t.Cleanup(func() { sqlOpen, gooseUpContext = origOpen, origUp })
}

func TestOpen_Postgres(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	mock.ExpectClose()

	migrated := false
	withSeams(t, db, func(ctx context.Context, _ *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		migrated = dir == "."
		return nil
	})

	cfg := couchConfig("")
	cfg.StoreBackend = config.StorePostgres

	s, err := Open(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	assert.True(t, migrated)
	_, ok := s.Users.(*users.PostgresRepository)
	assert.True(t, ok)

	require.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_PostgresMigrationError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	mock.ExpectClose()

	withSeams(t, db, func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	})

	cfg := couchConfig("")
	cfg.StoreBackend = config.StorePostgres

	_, err = Open(context.Background(), cfg, logging.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_PostgresPingError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("refused"))
	mock.ExpectClose()

	withSeams(t, db, func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		t.Error("migrations must not run")
		return nil
	})

	cfg := couchConfig("")
	cfg.StoreBackend = config.StorePostgres

	_, err = Open(context.Background(), cfg, logging.Nop())
	assert.ErrorContains(t, err, "refused")
}

func TestStore_CloseOrder(t *testing.T) {
	var order []int
	s := &Store{closers: []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return errors.New("x") },
	}}

	err := s.Close()
	assert.Error(t, err)
	assert.Equal(t, []int{2, 1}, order)
	assert.NoError(t, s.Close())
}

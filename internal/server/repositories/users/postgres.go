package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/notematic/internal/common"
	"github.com/dmitrijs2005/notematic/internal/dbx"
	"github.com/dmitrijs2005/notematic/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolationCode = "23505"

// PostgresRepository stores users in the users table. Uniqueness of
// usernames is enforced by the users_username_key index.
type PostgresRepository struct {
	db    dbx.DBTX
	newID func() string
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, newID: uuid.NewString}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING rev
		 `

	out := *user
	out.ID = r.newID()
	out.Type = models.UserDocType

	var rev int64
	err := r.db.QueryRowContext(ctx, query,
		out.ID, out.Username, out.Email, out.PasswordHash, out.CreatedAt, out.UpdatedAt).Scan(&rev)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			return nil, fmt.Errorf("%w: %w", common.ErrStoreConflict, err)
		}
		return nil, fmt.Errorf("%w: db error: %w", common.ErrStoreUnavailable, err)
	}

	out.Rev = strconv.FormatInt(rev, 10)
	return &out, nil
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query :=
		`SELECT id, rev, username, email, password_hash, created_at, updated_at FROM users
		 WHERE username = $1
		 `

	var rev int64
	u := &models.User{Type: models.UserDocType}
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&u.ID, &rev, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: db error: %w", common.ErrStoreUnavailable, err)
	}

	u.Rev = strconv.FormatInt(rev, 10)
	return u, nil
}

var _ Repository = (*PostgresRepository)(nil)

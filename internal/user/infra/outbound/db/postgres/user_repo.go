package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	userDomain "github.com/davicafu/postmesh/internal/user/domain"
)

const uniqueViolation = "23505"

type UserRepoPostgres struct {
	db *sql.DB
}

var (
	_ userDomain.UserRepository         = (*UserRepoPostgres)(nil)
	_ userDomain.RefreshTokenRepository = (*UserRepoPostgres)(nil)
)

func NewUserRepoPostgres(db *sql.DB) *UserRepoPostgres {
	return &UserRepoPostgres{db: db}
}

// InitPostgres crea las tablas si no existen.
func InitPostgres(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS refresh_tokens (
		token TEXT PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id);`
	_, err := db.Exec(schema)
	return err
}

// ------------------ Usuarios ------------------

func (r *UserRepoPostgres) Create(ctx context.Context, u *userDomain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return userDomain.ErrUserAlreadyExists
	}
	return err
}

func (r *UserRepoPostgres) GetByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *UserRepoPostgres) GetByUsername(ctx context.Context, username string) (*userDomain.User, error) {
	return r.getOne(ctx, `WHERE username = $1`, username)
}

func (r *UserRepoPostgres) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 OR username = $2)`,
		strings.ToLower(email), username,
	).Scan(&exists)
	return exists, err
}

func (r *UserRepoPostgres) getOne(ctx context.Context, where string, arg interface{}) (*userDomain.User, error) {
	var u userDomain.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, userDomain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ------------------ Refresh tokens ------------------

func (r *UserRepoPostgres) Save(ctx context.Context, t *userDomain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, user_id, expires_at) VALUES ($1, $2, $3)`,
		t.Token, t.UserID, t.ExpiresAt,
	)
	return err
}

func (r *UserRepoPostgres) Get(ctx context.Context, token string) (*userDomain.RefreshToken, error) {
	var t userDomain.RefreshToken
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at FROM refresh_tokens WHERE token = $1`, token,
	).Scan(&t.Token, &t.UserID, &t.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, userDomain.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *UserRepoPostgres) Delete(ctx context.Context, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (r *UserRepoPostgres) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	return err
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"

	userDomain "github.com/davicafu/postmesh/internal/user/domain"
)

type UserRepoSQLite struct {
	db *sql.DB
}

var (
	_ userDomain.UserRepository         = (*UserRepoSQLite)(nil)
	_ userDomain.RefreshTokenRepository = (*UserRepoSQLite)(nil)
)

func NewUserRepoSQLite(db *sql.DB) *UserRepoSQLite {
	return &UserRepoSQLite{db: db}
}

// ------------------ Inicialización de DB ------------------

// InitSQLite crea las tablas users y refresh_tokens si no existen
func InitSQLite(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            username TEXT UNIQUE NOT NULL,
            email TEXT UNIQUE NOT NULL,
            password_hash TEXT NOT NULL,
            created_at DATETIME NOT NULL
        )
    `)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS refresh_tokens (
            token TEXT PRIMARY KEY,
            user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            expires_at DATETIME NOT NULL
        )
    `)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id)`)
	return err
}

// ------------------ Usuarios ------------------

func (r *UserRepoSQLite) Create(ctx context.Context, u *userDomain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id,username,email,password_hash,created_at) VALUES (?,?,?,?,?)`,
		u.ID.String(), u.Username, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return userDomain.ErrUserAlreadyExists
	}
	return err
}

func (r *UserRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	return r.getOne(ctx, `WHERE id = ?`, id.String())
}

func (r *UserRepoSQLite) GetByUsername(ctx context.Context, username string) (*userDomain.User, error) {
	return r.getOne(ctx, `WHERE username = ?`, username)
}

func (r *UserRepoSQLite) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ? OR username = ?`,
		strings.ToLower(email), username,
	).Scan(&n)
	return n > 0, err
}

func (r *UserRepoSQLite) getOne(ctx context.Context, where string, arg interface{}) (*userDomain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users `+where, arg)

	var u userDomain.User
	var idStr string
	if err := row.Scan(&idStr, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, userDomain.ErrUserNotFound
		}
		return nil, err
	}

	parsedID, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	u.ID = parsedID
	return &u, nil
}

// ------------------ Refresh tokens ------------------

func (r *UserRepoSQLite) Save(ctx context.Context, t *userDomain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token,user_id,expires_at) VALUES (?,?,?)`,
		t.Token, t.UserID.String(), t.ExpiresAt,
	)
	return err
}

func (r *UserRepoSQLite) Get(ctx context.Context, token string) (*userDomain.RefreshToken, error) {
	var t userDomain.RefreshToken
	var userID string
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at FROM refresh_tokens WHERE token = ?`, token,
	).Scan(&t.Token, &userID, &t.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, userDomain.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}

	parsedID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in refresh token row: %w", err)
	}
	t.UserID = parsedID
	return &t, nil
}

func (r *UserRepoSQLite) Delete(ctx context.Context, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, token)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *UserRepoSQLite) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID.String())
	return err
}

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ---------- Errores de dominio ----------
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

// ---------- Interfaces (Ports) ----------

// UserRepository persiste cuentas. Username y email son únicos.
type UserRepository interface {
	// Debe devolver ErrUserAlreadyExists si choca con otro username o email.
	Create(ctx context.Context, u *User) error

	// Debe devolver ErrUserNotFound si no existe.
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// Debe devolver ErrUserNotFound si no existe.
	GetByUsername(ctx context.Context, username string) (*User, error)

	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
}

// RefreshTokenRepository guarda los refresh tokens emitidos.
type RefreshTokenRepository interface {
	Save(ctx context.Context, t *RefreshToken) error

	// Debe devolver ErrInvalidRefreshToken si no existe.
	Get(ctx context.Context, token string) (*RefreshToken, error)

	// Delete informa de si el token existía.
	Delete(ctx context.Context, token string) (bool, error)

	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare devuelve error si no coincide.
	Compare(hash, password string) error
}

// AccessTokenIssuer firma el token que valida el gateway.
type AccessTokenIssuer interface {
	Issue(u *User, ttl time.Duration) (string, error)
}

package domain

import "errors"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Identity es lo que el gateway extrae de un token válido.
type Identity struct {
	UserID   string
	Username string
}

type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

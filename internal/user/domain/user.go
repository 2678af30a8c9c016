package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User es una cuenta del servicio de identidad. El hash nunca sale por JSON.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewUser normaliza username y email. La validación de formato la hace el handler.
func NewUser(username, email, passwordHash string, now time.Time) *User {
	return &User{
		ID:           uuid.New(),
		Username:     strings.TrimSpace(username),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		CreatedAt:    now.UTC(),
	}
}

// RefreshToken es opaco para el cliente; sólo vale mientras esté guardado y no haya caducado.
type RefreshToken struct {
	Token     string    `json:"token"`
	UserID    uuid.UUID `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Tokens es la respuesta de register, login y refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	UserID       uuid.UUID
}

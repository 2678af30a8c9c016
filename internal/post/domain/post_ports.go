package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrInvalidPost  = errors.New("invalid post")
	ErrNotOwner     = errors.New("post belongs to another user")
)

type ValidationError struct {
	Field string
	Min   int
	Max   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%q length must be between %d and %d characters", e.Field, e.Min, e.Max)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidPost }

// --- Repositorio de Posts (fuente de verdad) ---
type PostRepository interface {
	Create(ctx context.Context, p *Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*Post, error)
	// List devuelve la página ordenada por createdAt descendente y el total de posts.
	List(ctx context.Context, page, limit int) ([]*Post, int64, error)
	Update(ctx context.Context, p *Post) error
	// DeleteOwned borra sólo si el post pertenece a userID; devuelve lo borrado.
	DeleteOwned(ctx context.Context, id uuid.UUID, userID string) (*Post, error)
}

type PostPage struct {
	Posts       []*Post `json:"posts"`
	CurrentPage int     `json:"currentPage"`
	Limit       int     `json:"limit"`
	TotalPages  int     `json:"totalPages"`
	TotalPosts  int64   `json:"totalPosts"`
}

// ---------- Helpers comunes (cache keys, etc.) ----------

const ListCachePrefix = "posts:"

func PostCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("post:%s", id.String())
}

func ListCacheKey(page, limit int) string {
	return fmt.Sprintf("%s%d:%d", ListCachePrefix, page, limit)
}

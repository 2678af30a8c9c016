package domain

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
)

var (
	// ErrSearchRecordExists lo devuelve Insert cuando ya hay proyección para ese postId.
	ErrSearchRecordExists = errors.New("search record already exists")
	ErrEmptyQuery         = errors.New("query needed")
	ErrInvalidEvent       = errors.New("event without postId")
)

// MaxResults es el tope de resultados de una búsqueda.
const MaxResults = 10

// SearchPost es la copia desnormalizada de un post que mantiene el servicio de búsqueda.
type SearchPost struct {
	PostID      string    `json:"postId"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SearchRepository es el store de la proyección. Los tombstones recuerdan posts borrados
// para que un post.created que llegue tarde no los resucite.
type SearchRepository interface {
	// Insert falla con ErrSearchRecordExists si el postId ya está proyectado.
	Insert(ctx context.Context, p *SearchPost) error
	// Upsert reemplaza el contenido y conserva CreatedAt si el registro ya existía.
	Upsert(ctx context.Context, p *SearchPost) error
	// DeleteByPostID no falla si no existe.
	DeleteByPostID(ctx context.Context, postID string) error
	// Search devuelve como mucho limit registros ordenados por relevancia.
	Search(ctx context.Context, query string, limit int) ([]*SearchPost, error)

	WriteTombstone(ctx context.Context, postID string, expiresAt time.Time) error
	IsTombstoned(ctx context.Context, postID string, now time.Time) (bool, error)
}

// ---------- Cache keys ----------

const CachePrefix = "search:"

func SearchCacheKey(query string) string {
	return CachePrefix + query
}

// NormalizeQuery recorta espacios; una query vacía no es válida.
func NormalizeQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", ErrEmptyQuery
	}
	return q, nil
}

// Terms parte un texto en términos en minúsculas cortando por todo lo que no sea letra o dígito,
// como hace el índice de texto. Se usa igual para la query y para los documentos.
func Terms(q string) []string {
	return strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

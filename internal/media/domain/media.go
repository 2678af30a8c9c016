package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMediaNotFound = errors.New("media not found")
	ErrNoFile        = errors.New("no file found to upload")
	ErrFileTooLarge  = errors.New("file exceeds upload limit")
)

// MaxUploadSize es el límite de un fichero subido (5 MB).
const MaxUploadSize int64 = 5 << 20

// Media es el registro de un fichero subido por un usuario. El binario vive en BlobStorage bajo StorageKey.
type Media struct {
	ID           uuid.UUID `json:"id"`
	UserID       string    `json:"userId"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	StorageKey   string    `json:"storageKey"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"createdAt"`
}

func NewMedia(userID, originalName, mimeType string, size int64) (*Media, error) {
	if size <= 0 {
		return nil, ErrNoFile
	}
	if size > MaxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, size)
	}
	id := uuid.New()
	return &Media{
		ID:           id,
		UserID:       userID,
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         size,
		StorageKey:   id.String(),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (m *Media) OwnedBy(userID string) bool {
	return m.UserID == userID
}

// --- Puertos ---

type MediaRepository interface {
	Create(ctx context.Context, m *Media) error
	ListByUser(ctx context.Context, userID string) ([]*Media, error)
	// FindByIDs ignora los ids que no existen.
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Media, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// BlobStorage guarda los binarios. Put devuelve la URL pública del fichero.
type BlobStorage interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	// Delete no falla si la clave no existe.
	Delete(ctx context.Context, key string) error
}

// ---------- Cache keys ----------

const CachePrefix = "medias:"

func UserCacheKey(userID string) string {
	return CachePrefix + userID
}

// ParseIDs descarta lo que no es un uuid y devuelve también los descartados.
func ParseIDs(raw []string) (ids []uuid.UUID, invalid []string) {
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			invalid = append(invalid, s)
			continue
		}
		ids = append(ids, id)
	}
	return ids, invalid
}

package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	mediaDomain "github.com/davicafu/postmesh/internal/media/domain"
)

// FSBlobStorage es un adaptador outbound que guarda cada binario como un fichero en dir.
type FSBlobStorage struct {
	dir     string
	baseURL string
}

var _ mediaDomain.BlobStorage = (*FSBlobStorage)(nil)

// NewFSBlobStorage crea el directorio si no existe.
func NewFSBlobStorage(dir, baseURL string) (*FSBlobStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create blob dir: %w", err)
	}
	return &FSBlobStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// path: la clave nunca puede salir de dir.
func (s *FSBlobStorage) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}

// Put escribe en un temporal y lo renombra, así nunca queda un fichero a medias con el nombre final.
func (s *FSBlobStorage) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return "", err
	}
	return s.baseURL + "/" + filepath.Base(key), nil
}

func (s *FSBlobStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

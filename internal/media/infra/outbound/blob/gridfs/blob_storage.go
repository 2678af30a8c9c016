package gridfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	mediaDomain "github.com/davicafu/postmesh/internal/media/domain"
)

// GridFSBlobStorage guarda los binarios en un bucket GridFS; el id del fichero es la StorageKey.
type GridFSBlobStorage struct {
	bucket  *gridfs.Bucket
	baseURL string
}

var _ mediaDomain.BlobStorage = (*GridFSBlobStorage)(nil)

func NewGridFSBlobStorage(db *mongo.Database, bucketName, baseURL string) (*GridFSBlobStorage, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("could not open gridfs bucket: %w", err)
	}
	return &GridFSBlobStorage{bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put sube el contenido. La API de subida de GridFS no acepta contexto, así que sólo se comprueba antes.
func (s *GridFSBlobStorage) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
	if err := s.bucket.UploadFromStreamWithID(key, key, r, opts); err != nil {
		return "", err
	}
	return s.baseURL + "/" + key, nil
}

func (s *GridFSBlobStorage) Delete(ctx context.Context, key string) error {
	err := s.bucket.DeleteContext(ctx, key)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil
	}
	return err
}

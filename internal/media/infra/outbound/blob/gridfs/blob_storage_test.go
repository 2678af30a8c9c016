package gridfs

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestIntegration_GridFSBlobStorage(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	db := client.Database("media_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	store, err := NewGridFSBlobStorage(db, "media", "http://localhost:3003/files/")
	require.NoError(t, err)
	key := uuid.NewString()

	url, err := store.Put(ctx, key, "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3003/files/"+key, url)

	var buf bytes.Buffer
	_, err = store.bucket.DownloadToStream(key, &buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", buf.String())

	require.NoError(t, store.Delete(ctx, key))
	// Borrar otra vez no es un error.
	assert.NoError(t, store.Delete(ctx, key))
}

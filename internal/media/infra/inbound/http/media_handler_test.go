package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/postmesh/internal/media/application"
	"github.com/davicafu/postmesh/internal/media/infra/outbound/blob/filesystem"
	"github.com/davicafu/postmesh/internal/media/infra/outbound/db/memory"
	sharedCache "github.com/davicafu/postmesh/internal/shared/infra/platform/cache"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	blobs, err := filesystem.NewFSBlobStorage(t.TempDir(), "http://media/files")
	require.NoError(t, err)
	rt := sharedCache.NewReadThrough(sharedCache.NewInMemoryCache(time.Minute, 0), time.Second, false, log)
	svc := application.NewMediaService(memory.NewInMemoryMediaRepo(), blobs, rt, 300, time.Second, log)

	r := gin.New()
	RegisterMediaRoutes(r, NewMediaHandler(svc, log), log)
	return r
}

func uploadRequest(t *testing.T, userID string, withFile bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if withFile {
		fw, err := mw.CreateFormFile("file", "photo.png")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("fake png"))
	} else {
		require.NoError(t, mw.WriteField("other", "x"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/media/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if userID != "" {
		req.Header.Set("x-user-id", userID)
	}
	return req
}

func TestUploadThenList(t *testing.T) {
	// Arrange
	r := setupRouter(t)

	// Act
	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "u1", true))

	// Assert
	require.Equal(t, http.StatusCreated, w.Code)
	var body struct {
		Success bool   `json:"success"`
		MediaID string `json:"mediaId"`
		URL     string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "http://media/files/"+body.MediaID, body.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/media/get", nil)
	req.Header.Set("x-user-id", "u1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), body.MediaID)
}

func TestUpload_WithoutFile(t *testing.T) {
	r := setupRouter(t)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, uploadRequest(t, "u1", false))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_WithoutIdentity(t *testing.T) {
	r := setupRouter(t)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, uploadRequest(t, "", true))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

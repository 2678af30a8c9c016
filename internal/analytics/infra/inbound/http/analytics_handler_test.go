package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/postmesh/internal/analytics/application"
	analyticsDomain "github.com/davicafu/postmesh/internal/analytics/domain"
	"github.com/davicafu/postmesh/internal/analytics/infra/outbound/analytics/memory"
	"github.com/davicafu/postmesh/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/postmesh/internal/shared/infra/platform/cache"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	rt := sharedCache.NewReadThrough(sharedCache.NewInMemoryCache(time.Minute, 0), time.Second, false, log)
	svc := application.NewAnalyticsService(memory.NewInMemoryActivityRepo(), rt, 300, time.Second, log)

	now := time.Now().UTC()
	for _, m := range []bus.Message{
		{RoutingKey: "post.created", Body: []byte(`{"postId":"p1","userId":"u1"}`), PublishedAt: now},
		{RoutingKey: "post.created", Body: []byte(`{"postId":"p2","userId":"u1"}`), PublishedAt: now},
		{RoutingKey: "post.deleted", Body: []byte(`{"postId":"p1","userId":"u1"}`), PublishedAt: now},
	} {
		require.NoError(t, svc.HandleEvent(context.Background(), m))
	}

	r := gin.New()
	RegisterAnalyticsRoutes(r, NewAnalyticsHandler(svc, log), log)
	return r
}

func get(r *gin.Engine, path, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if userID != "" {
		req.Header.Set("x-user-id", userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetSummary(t *testing.T) {
	r := setupRouter(t)

	w := get(r, "/api/analytics/summary", "u1")

	require.Equal(t, http.StatusOK, w.Code)
	var s analyticsDomain.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, uint64(3), s.Total)
	assert.Equal(t, uint64(2), s.Counts["post.created"])
}

func TestGetTrend_TodayHasActivity(t *testing.T) {
	r := setupRouter(t)

	w := get(r, "/api/analytics/trend?days=1", "u1")

	require.Equal(t, http.StatusOK, w.Code)
	var trend []analyticsDomain.DailyActivity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trend))
	require.Len(t, trend, 1)
	assert.Equal(t, uint64(2), trend[0].Created)
	assert.Equal(t, uint64(1), trend[0].Deleted)
}

func TestAnalyticsRoutes_RequireUser(t *testing.T) {
	r := setupRouter(t)

	w := get(r, "/api/analytics/summary", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

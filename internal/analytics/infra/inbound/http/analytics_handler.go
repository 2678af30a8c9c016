package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/postmesh/internal/analytics/application"
	sharedHTTP "github.com/davicafu/postmesh/internal/shared/infra/inbound/http"
	"github.com/davicafu/postmesh/pkg/utils"
)

type AnalyticsHandler struct {
	service *application.AnalyticsService
	log     *zap.Logger
}

func NewAnalyticsHandler(service *application.AnalyticsService, log *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{service: service, log: log}
}

// GetSummary endpoint GET /api/analytics/summary
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		h.log.Error("Error fetching analytics summary", zap.Error(err))
		utils.SendInternalServerError(c, "Error fetching analytics summary")
		return
	}
	utils.SendSuccess(c, http.StatusOK, summary)
}

// GetTrend endpoint GET /api/analytics/trend?days=
func (h *AnalyticsHandler) GetTrend(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))
	trend, err := h.service.DailyTrend(c.Request.Context(), days)
	if err != nil {
		h.log.Error("Error fetching analytics trend", zap.Error(err))
		utils.SendInternalServerError(c, "Error fetching analytics trend")
		return
	}
	utils.SendSuccess(c, http.StatusOK, trend)
}

func RegisterAnalyticsRoutes(r gin.IRouter, handler *AnalyticsHandler, log *zap.Logger) {
	analytics := r.Group("/api/analytics", sharedHTTP.RequireUser(log))
	{
		analytics.GET("/summary", handler.GetSummary)
		analytics.GET("/trend", handler.GetTrend)
	}
}

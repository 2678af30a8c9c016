package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/postmesh/internal/search/application"
	searchDomain "github.com/davicafu/postmesh/internal/search/domain"
	sharedHTTP "github.com/davicafu/postmesh/internal/shared/infra/inbound/http"
	"github.com/davicafu/postmesh/pkg/utils"
)

type SearchHandler struct {
	service *application.SearchService
	log     *zap.Logger
}

func NewSearchHandler(service *application.SearchService, log *zap.Logger) *SearchHandler {
	return &SearchHandler{service: service, log: log}
}

// SearchPosts endpoint GET /api/search/posts?query=
func (h *SearchHandler) SearchPosts(c *gin.Context) {
	results, err := h.service.Search(c.Request.Context(), c.Query("query"))
	if err != nil {
		if errors.Is(err, searchDomain.ErrEmptyQuery) {
			utils.SendBadRequest(c, "query needed")
			return
		}
		h.log.Error("Error searching posts", zap.Error(err))
		utils.SendInternalServerError(c, "error searching post")
		return
	}
	utils.SendSuccess(c, http.StatusOK, results)
}

// RegisterSearchRoutes monta /api/search detrás del gate de identidad.
func RegisterSearchRoutes(r gin.IRouter, handler *SearchHandler, log *zap.Logger) {
	search := r.Group("/api/search", sharedHTTP.RequireUser(log))
	search.GET("/posts", handler.SearchPosts)
}

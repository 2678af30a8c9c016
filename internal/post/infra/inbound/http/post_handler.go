package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/postmesh/internal/post/application"
	"github.com/davicafu/postmesh/internal/post/domain"
	sharedHTTP "github.com/davicafu/postmesh/internal/shared/infra/inbound/http"
	"github.com/davicafu/postmesh/pkg/utils"
)

// PostHandler encapsula los endpoints HTTP relacionados con Post
type PostHandler struct {
	service *application.PostService
	log     *zap.Logger
}

func NewPostHandler(service *application.PostService, log *zap.Logger) *PostHandler {
	return &PostHandler{service: service, log: log}
}

type postRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	MediaIDs    []string `json:"mediaIds"`
}

// CreatePost endpoint POST /api/posts/create-post
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, "title and description are required")
		return
	}

	post, err := h.service.CreatePost(c.Request.Context(), sharedHTTP.UserID(c), req.Title, req.Description, req.MediaIDs)
	if err != nil {
		h.writeError(c, err, "Internal Server error")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Post created successfully",
		"postId":  post.ID,
	})
}

// GetAllPosts endpoint GET /api/posts/all-posts?page=&limit=
func (h *PostHandler) GetAllPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.service.ListPosts(c.Request.Context(), page, limit)
	if err != nil {
		h.writeError(c, err, "Error fetching all posts")
		return
	}
	utils.SendSuccess(c, http.StatusOK, result)
}

// GetPost endpoint GET /api/posts/:id
func (h *PostHandler) GetPost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	post, err := h.service.GetPost(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "Error fetching post")
		return
	}
	utils.SendSuccess(c, http.StatusOK, post)
}

// UpdatePost endpoint PUT /api/posts/:id
func (h *PostHandler) UpdatePost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, "title and description are required")
		return
	}

	post, err := h.service.UpdatePost(c.Request.Context(), id, sharedHTTP.UserID(c), req.Title, req.Description)
	if err != nil {
		h.writeError(c, err, "Error updating post")
		return
	}
	utils.SendSuccess(c, http.StatusOK, post)
}

// DeletePost endpoint DELETE /api/posts/:id
func (h *PostHandler) DeletePost(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.DeletePost(c.Request.Context(), id, sharedHTTP.UserID(c)); err != nil {
		h.writeError(c, err, "Error deleting post")
		return
	}
	utils.SendMessage(c, http.StatusOK, "Post deleted!")
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid post id")
		return uuid.Nil, false
	}
	return id, true
}

// writeError traduce errores de dominio a códigos HTTP. Lo inesperado sale como mensaje genérico.
func (h *PostHandler) writeError(c *gin.Context, err error, internalMsg string) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		utils.SendBadRequest(c, vErr.Error())
	case errors.Is(err, domain.ErrInvalidPost):
		utils.SendBadRequest(c, "invalid post")
	case errors.Is(err, domain.ErrPostNotFound):
		utils.SendNotFound(c, "Post not found")
	case errors.Is(err, domain.ErrNotOwner):
		utils.SendError(c, http.StatusForbidden, "You can only modify your own posts")
	default:
		h.log.Error("Post request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		utils.SendInternalServerError(c, internalMsg)
	}
}

package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	sharedHTTP "github.com/davicafu/postmesh/internal/shared/infra/inbound/http"
)

// RegisterPostRoutes: todas las rutas exigen la identidad que reenvía el gateway.
func RegisterPostRoutes(r gin.IRouter, handler *PostHandler, log *zap.Logger) {
	posts := r.Group("/api/posts", sharedHTTP.RequireUser(log))
	{
		posts.POST("/create-post", handler.CreatePost)
		posts.GET("/all-posts", handler.GetAllPosts)
		posts.GET("/:id", handler.GetPost)
		posts.PUT("/:id", handler.UpdatePost)
		posts.DELETE("/:id", handler.DeletePost)
	}
}

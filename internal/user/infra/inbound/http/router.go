package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	sharedHTTP "github.com/davicafu/postmesh/internal/shared/infra/inbound/http"
	"github.com/davicafu/postmesh/internal/shared/infra/platform/ratelimit"
)

// RegisterUserRoutes monta /api/auth. Son rutas públicas; register lleva además su propio límite.
func RegisterUserRoutes(r gin.IRouter, handler *UserHandler, registerLimiter ratelimit.Limiter, log *zap.Logger) {
	auth := r.Group("/api/auth")
	{
		if registerLimiter != nil {
			auth.POST("/register", sharedHTTP.RateLimit(registerLimiter, log), handler.Register)
		} else {
			auth.POST("/register", handler.Register)
		}
		auth.POST("/login", handler.Login)
		auth.POST("/refresh-token", handler.RefreshToken)
		auth.POST("/logout", handler.Logout)
	}
}

package http

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/postmesh/internal/shared/infra/platform/ratelimit"
	"github.com/davicafu/postmesh/pkg/utils"
)

const (
	// UserIDHeader es la identidad que pone el gateway tras validar el token. Nadie la re-verifica.
	UserIDHeader = "x-user-id"
	userIDKey    = "userId"
)

// RequireUser rechaza la petición si no llega la identidad del gateway.
func RequireUser(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			log.Warn("Access attempted without user id", zap.String("path", c.Request.URL.Path))
			utils.SendUnauthorized(c, "Authentication required! Please login to continue")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID devuelve la identidad guardada por RequireUser.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// RequestLogger registra una línea por petición.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// RateLimit limita por IP de cliente. Si el limitador falla se deja pasar la petición.
func RateLimit(l ratelimit.Limiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		ok, remaining, err := l.Allow(c.Request.Context(), ip)
		if err != nil {
			log.Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		c.Header("RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			log.Warn("Rate limit reached", zap.String("path", c.Request.URL.Path), zap.String("client_ip", ip))
			utils.SendTooManyRequests(c, "Too many requests")
			return
		}
		c.Next()
	}
}

// Timeout acota el contexto de la petición; los stores y la caché lo heredan.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

package http

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	gatewayDomain "github.com/davicafu/postmesh/internal/gateway/domain"
	sharedHTTP "github.com/davicafu/postmesh/internal/shared/infra/inbound/http"
	"github.com/davicafu/postmesh/pkg/utils"
)

// StripIdentity borra cualquier x-user-id que mande el cliente: sólo el gateway puede ponerlo.
func StripIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Header.Del(sharedHTTP.UserIDHeader)
		c.Next()
	}
}

// ValidateToken exige un bearer válido y reenvía la identidad verificada aguas abajo.
func ValidateToken(verifier gatewayDomain.TokenVerifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			log.Warn("No token found", zap.String("path", c.Request.URL.Path))
			utils.SendUnauthorized(c, "Authentication required")
			return
		}

		id, err := verifier.Verify(token)
		if err != nil {
			log.Warn("Invalid or expired token", zap.String("path", c.Request.URL.Path), zap.Error(err))
			utils.SendUnauthorized(c, "Invalid or Expired Token!")
			return
		}

		c.Request.Header.Set(sharedHTTP.UserIDHeader, id.UserID)
		c.Set("userId", id.UserID)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

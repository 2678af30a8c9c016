package http

import (
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	gatewayDomain "github.com/davicafu/postmesh/internal/gateway/domain"
)

// Upstreams son las URLs base de cada servicio interno.
type Upstreams struct {
	User      string
	Post      string
	Media     string
	Search    string
	Analytics string
}

// RegisterGatewayRoutes monta el proxy público. /v1/auth no pasa por la validación del token.
func RegisterGatewayRoutes(r gin.IRouter, up Upstreams, verifier gatewayDomain.TokenVerifier, log *zap.Logger) error {
	routes := []struct {
		prefix string
		name   string
		raw    string
		authed bool
	}{
		{"/v1/auth", "user", up.User, false},
		{"/v1/posts", "post", up.Post, true},
		{"/v1/media", "media", up.Media, true},
		{"/v1/search", "search", up.Search, true},
		{"/v1/analytics", "analytics", up.Analytics, true},
	}

	public := r.Group("/", StripIdentity())
	for _, rt := range routes {
		target, err := url.Parse(rt.raw)
		if err != nil || target.Host == "" {
			return fmt.Errorf("invalid %s service url %q", rt.name, rt.raw)
		}

		handlers := []gin.HandlerFunc{}
		if rt.authed {
			handlers = append(handlers, ValidateToken(verifier, log))
		}
		handlers = append(handlers, NewServiceProxy(rt.name, target, log))

		public.Any(rt.prefix+"/*path", handlers...)
		log.Info("Proxy route registered", zap.String("prefix", rt.prefix), zap.String("target", target.String()))
	}
	return nil
}

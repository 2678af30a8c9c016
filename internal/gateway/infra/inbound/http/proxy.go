package http

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/postmesh/pkg/utils"
)

const (
	publicPrefix   = "/v1"
	internalPrefix = "/api"
)

// RewritePath traduce /v1/... a /api/...; lo demás pasa tal cual.
func RewritePath(p string) string {
	if p == publicPrefix || strings.HasPrefix(p, publicPrefix+"/") {
		return internalPrefix + strings.TrimPrefix(p, publicPrefix)
	}
	return p
}

// NewServiceProxy devuelve un handler que reenvía la petición a target con la ruta reescrita.
// Las cabeceras llegan ya saneadas por StripIdentity/ValidateToken.
func NewServiceProxy(name string, target *url.URL, log *zap.Logger) gin.HandlerFunc {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.URL.Path = strings.TrimRight(target.Path, "/") + RewritePath(pr.In.URL.Path)
			pr.Out.URL.RawPath = ""
			pr.Out.Host = target.Host
			pr.SetXForwarded()
		},
		ModifyResponse: func(res *http.Response) error {
			log.Info("Response received from service",
				zap.String("service", name),
				zap.Int("status", res.StatusCode))
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error("Proxy error", zap.String("service", name), zap.String("path", r.URL.Path), zap.Error(err))
			utils.WriteJSONError(w, http.StatusInternalServerError, "Internal Server error")
		},
	}

	return func(c *gin.Context) {
		proxy.ServeHTTP(c.Writer, c.Request)
	}
}

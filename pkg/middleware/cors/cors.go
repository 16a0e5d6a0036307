package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const allowedHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID, Upload-Length"

// New returns a CORS middleware that honors a list of allowed origins.
// Entries may use a leading wildcard label, e.g. https://*.example.edu.vn.
func New(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	exact := make(map[string]struct{}, len(allowedOrigins))
	var suffixes []string
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(origin, "/")
		if origin == "*" {
			allowAll = true
			continue
		}
		if scheme, host, ok := strings.Cut(origin, "://*."); ok {
			suffixes = append(suffixes, scheme+"://|."+host)
			continue
		}
		exact[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if allowAll || matches(exact, suffixes, origin) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		} else if allowAll {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Vary", "Origin")
		c.Writer.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")
		c.Writer.Header().Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func matches(exact map[string]struct{}, suffixes []string, origin string) bool {
	origin = strings.TrimRight(origin, "/")
	if _, ok := exact[origin]; ok {
		return true
	}
	for _, pattern := range suffixes {
		scheme, suffix, _ := strings.Cut(pattern, "|")
		if strings.HasPrefix(origin, scheme) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}

package paas

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"updown/internal/auth"
)

// AuditWriteMiddleware records every non-read request under /api/.
func AuditWriteMiddleware(p *Client) gin.HandlerFunc {
	if !p.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		method := strings.ToUpper(c.Request.Method)
		if !strings.HasPrefix(path, "/api/") {
			return
		}
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return
		}
		details := map[string]any{
			"method":   method,
			"path":     path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}
		if claims, ok := auth.ClaimsFromContext(c); ok {
			details["subject"] = claims.UserID()
			details["role"] = claims.Role
		}
		p.Record("updown_http_write", LevelFromStatus(c.Writer.Status()), details)
	}
}

func LevelFromStatus(status int) string {
	if status >= 500 {
		return "error"
	}
	if status >= 400 {
		return "warn"
	}
	return "info"
}

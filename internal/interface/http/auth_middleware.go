package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/efficiencynow/efficiencynow/internal/domain/auth"
)

// sessionMiddleware resolves the caller's session into an identity or aborts
// with 401.
func sessionMiddleware(svc auth.Service, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := sessionToken(c, cookieName)
		if !ok {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
			return
		}
		user, err := svc.ResolveIdentity(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, fromServiceError(err))
			return
		}
		setIdentity(c, user)
		c.Next()
	}
}

// sessionToken reads the session cookie, falling back to a Bearer header.
func sessionToken(c *gin.Context, cookieName string) (string, bool) {
	if value, err := c.Cookie(cookieName); err == nil && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

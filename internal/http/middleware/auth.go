// README: Session middleware; verifies bearer tokens and exposes the caller to handlers.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"laundry/internal/infra"
)

const (
	ctxCallerUID  = "caller_uid"
	ctxCallerRole = "caller_role"
)

// Auth rejects requests without a valid bearer token.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		id, err := verifier.VerifyIDToken(c.Request.Context(), token)
		if err != nil || id == nil || id.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}
		setCaller(c, id)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present and lets
// the request through either way.
func OptionalAuth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if id, err := verifier.VerifyIDToken(c.Request.Context(), token); err == nil && id != nil && id.UID != "" {
				setCaller(c, id)
			}
		}
		c.Next()
	}
}

func setCaller(c *gin.Context, id *infra.Identity) {
	c.Set(ctxCallerUID, id.UID)
	c.Set(ctxCallerRole, id.Role)
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// CallerUID is the verified caller, or "" when the request has no session.
func CallerUID(c *gin.Context) string {
	return c.GetString(ctxCallerUID)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxCallerRole)
}

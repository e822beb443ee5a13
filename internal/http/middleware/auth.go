package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// AdminPrincipal is the principal recorded for requests authenticated with
// the admin bearer token.
const AdminPrincipal = "admin"

// AdminAuth guards the inspection API with a static bearer token. An empty
// token disables the check. On success the principal is stored in the Gin
// context for logging and rate-limit keying.
func AdminAuth(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got, ok := bearer(c.GetHeader("Authorization"))
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="agent"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "missing or invalid bearer token",
			})
			return
		}
		c.Set(principalKey, AdminPrincipal)
		c.Next()
	}
}

// Principal returns the authenticated principal, or "" when anonymous.
func Principal(c *gin.Context) string { return asString(c.Value(principalKey)) }

func bearer(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

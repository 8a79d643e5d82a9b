package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/foliobase/foliobase/internal/auth"
	"github.com/foliobase/foliobase/internal/models"
)

const principalContextName = "principal"

// BearerAuth validates the bearer token and sets the principal in the Gin
// context. Missing, invalid or expired tokens short-circuit the handler.
func BearerAuth(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		principal, err := tokens.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(principalContextName, principal)
		c.Next()
	}
}

// GetPrincipal retrieves the authenticated principal from the Gin context.
func GetPrincipal(c *gin.Context) (*auth.Principal, bool) {
	val, ok := c.Get(principalContextName)
	if !ok {
		return nil, false
	}
	principal, ok := val.(*auth.Principal)
	return principal, ok
}

// RequirePrincipal checks authentication, writing an error response if absent.
func RequirePrincipal(c *gin.Context) (*auth.Principal, bool) {
	principal, ok := GetPrincipal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	return principal, true
}

// RequireAdmin checks for an authenticated admin, writing an error response
// otherwise.
func RequireAdmin(c *gin.Context) (*auth.Principal, bool) {
	principal, ok := RequirePrincipal(c)
	if !ok {
		return nil, false
	}
	if principal.Role != models.RoleAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return nil, false
	}
	return principal, true
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/agoralabs/agora/internal/identity"
)

const identityKey = "participant_identity"

// AuthRequired returns a Gin middleware that requires a valid participant
// bearer token and stores the verified identity on the request context.
func AuthRequired(issuer *identity.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		ident, err := issuer.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			return
		}

		c.Set(identityKey, ident)
		c.Next()
	}
}

// CallerIdentity returns the verified participant identity set by
// AuthRequired, or "" on unauthenticated routes.
func CallerIdentity(c *gin.Context) string {
	return c.GetString(identityKey)
}

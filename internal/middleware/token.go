// token.go provides Gin middleware that rejects requests whose Entra ID bearer token
// fails validation before any directory call is made.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/team-roster/team-roster/internal/auth"
	"github.com/team-roster/team-roster/internal/auth/azuread"
)

// PrincipalKey is the gin.Context key holding the principal name of a validated caller.
const PrincipalKey = "principal"

// TokenValidator validates a raw bearer token.
type TokenValidator interface {
	Validate(ctx context.Context, token string) azuread.ValidationResult
}

// RequireValidToken aborts with 401 unless the request carries an
// "Authorization: Bearer" token the validator accepts. On success the
// caller's principal name is stored under PrincipalKey.
func RequireValidToken(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authorization bearer token is required"})
			return
		}

		res := validator.Validate(c.Request.Context(), token)
		if !res.Valid {
			slog.Info("rejected bearer token",
				"request_id", c.GetString(RequestIDKey),
				"path", c.FullPath(),
				"reason", res.ErrorMessage,
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token: " + res.ErrorMessage})
			return
		}

		if upn := auth.PrincipalName(token); upn != "" {
			c.Set(PrincipalKey, upn)
		}
		c.Next()
	}
}

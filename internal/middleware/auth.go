package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ragchat/internal/auth"
	"ragchat/internal/domain"
)

const (
	// ContextUserKey holds the authenticated *domain.User on the gin context.
	ContextUserKey = "auth_user"
	// ContextUserIDKey holds the authenticated user id.
	ContextUserIDKey = "user_id"
)

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// JwtAuth rejects requests without a valid bearer token for an active
// account.
func JwtAuth(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "missing or malformed Authorization header",
			})
			c.Abort()
			return
		}

		user, err := authService.ResolveIdentity(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrForbidden) {
				c.JSON(http.StatusForbidden, gin.H{"error": "account is disabled"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			}
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextUserIDKey, user.ID)
		c.Next()
	}
}

// OptionalAuth resolves the bearer token when one is present but never
// rejects; unauthenticated callers proceed as anonymous.
func OptionalAuth(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if user, err := authService.ResolveIdentity(c.Request.Context(), token); err == nil {
				c.Set(ContextUserKey, user)
				c.Set(ContextUserIDKey, user.ID)
			}
		}
		c.Next()
	}
}

// CallerIdentity maps the request to the quota identity: the account when
// authenticated, otherwise the client address.
func CallerIdentity(c *gin.Context) domain.Identity {
	if id := c.GetString(ContextUserIDKey); id != "" {
		return domain.RegisteredIdentity(id)
	}
	return domain.AnonymousIdentity(c.ClientIP())
}

// CurrentUser returns the authenticated user, or nil for anonymous callers.
func CurrentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*domain.User)
	return user
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pr0br0/cyboard/internal/auth"
	"github.com/pr0br0/cyboard/internal/models"
	"github.com/pr0br0/cyboard/internal/services"
)

const (
	// ContextKeyUser holds the authenticated *models.User in the Gin context.
	ContextKeyUser = "user"
	// ContextKeyTokenError holds why an optional token was ignored.
	ContextKeyTokenError = "tokenError"
)

// Authenticator resolves a bearer token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// authMessage distinguishes expired from otherwise unusable tokens.
func authMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, services.ErrAccountDisabled):
		return "Account is not active"
	default:
		return "Invalid token"
	}
}

// Authenticate rejects requests without a valid bearer token.
func Authenticate(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "No token, authorization denied")
			return
		}
		user, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			abort(c, http.StatusUnauthorized, authMessage(err))
			return
		}
		c.Set(ContextKeyUser, user)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is present and otherwise continues anonymously.
func OptionalAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			user, err := a.Authenticate(c.Request.Context(), token)
			if err == nil {
				c.Set(ContextKeyUser, user)
			} else {
				c.Set(ContextKeyTokenError, err)
			}
		}
		c.Next()
	}
}

// RequireCapability must run after Authenticate.
func RequireCapability(capability models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Actor(c).Can(capability) {
			abort(c, http.StatusForbidden, "Access denied")
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextKeyUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// Actor converts the request's user into a service actor. Anonymous requests yield the zero Actor.
func Actor(c *gin.Context) services.Actor {
	user := CurrentUser(c)
	if user == nil {
		return services.Actor{}
	}
	return services.Actor{UserID: user.ID, Role: user.Role}
}

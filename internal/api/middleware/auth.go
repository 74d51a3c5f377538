package middleware

import (
	"context"

	"auctionhouse/internal/api/respond"
	"auctionhouse/internal/model"
	"auctionhouse/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	// AccessCookie carries the access token.
	AccessCookie = "accessToken"
	// RefreshCookie carries the refresh token.
	RefreshCookie = "refreshToken"

	userKey   = "user"
	userIDKey = "userID"
	roleKey   = "role"
)

// Authenticator resolves an access token to the live user record.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.User, error)
}

// AuthMiddleware reads the access token from its cookie and stores the resolved user
// in the context. The stored record, not the token claims, is the request identity.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(AccessCookie)
		if err != nil || raw == "" {
			respond.Error(c, service.ErrUnauthenticated)
			return
		}
		user, err := auth.Authenticate(c.Request.Context(), raw)
		if err != nil {
			respond.Error(c, err)
			return
		}

		c.Set(userKey, user)
		c.Set(userIDKey, user.ID)
		c.Set(roleKey, user.Role)
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}

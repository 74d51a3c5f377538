package middleware

import (
	"auctionhouse/internal/api/respond"
	"auctionhouse/internal/model"
	"auctionhouse/internal/service"

	"github.com/gin-gonic/gin"
)

// RoleAllowed reports whether role is one of allowed.
func RoleAllowed(role model.Role, allowed []model.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// RequireRoles rejects requests whose authenticated user holds none of roles.
// It must run after AuthMiddleware.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			respond.Error(c, service.ErrUnauthenticated)
			return
		}
		if !RoleAllowed(user.Role, roles) {
			respond.Error(c, service.ErrForbidden)
			return
		}
		c.Next()
	}
}

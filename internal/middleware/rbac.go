package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dept-portal-api/internal/models"
	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/response"
)

// RBAC enforces role-based access control for routes. "SELF" lets a caller
// through when the :id parameter is their own id.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{})
	for _, a := range allowed {
		if a == "SELF" {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

// RequireManagement admits TCM and TP.
func RequireManagement() gin.HandlerFunc {
	return RequireRoles(models.RoleTCM, models.RoleTP)
}

// RequireMainAdmin admits callers whose token carries the admin flag.
func RequireMainAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !claims.Admin {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "main admin only"))
			c.Abort()
			return
		}
		c.Next()
	}
}

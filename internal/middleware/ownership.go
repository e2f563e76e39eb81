package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/careview/backend/pkg/errors"
	"github.com/careview/backend/pkg/response"
)

// RoleAdmin bypasses every ownership check.
const RoleAdmin = "ADMIN"

// Ownership rejects requests whose route parameter does not name the
// authenticated user. paramName is the route parameter to compare; userIDField
// selects which identity attribute it is matched against ("id", "userId" or
// "email"). Administrators pass unconditionally.
func Ownership(paramName, userIDField string) gin.HandlerFunc {
	if paramName == "" {
		paramName = "id"
	}
	if userIDField == "" {
		userIDField = "id"
	}

	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			response.Error(c, errors.ErrAuthRequired)
			c.Abort()
			return
		}

		if identity.User.Role == RoleAdmin {
			c.Next()
			return
		}

		var owner string
		switch userIDField {
		case "email":
			owner = identity.User.Email
		default: // "id", "userId"
			owner = identity.User.UserID
		}

		if owner == "" || c.Param(paramName) != owner {
			response.Error(c, errors.ErrResourceAccessDenied)
			c.Abort()
			return
		}

		c.Next()
	}
}

package middleware

import (
	"net/http"
	"slices"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// HasPermission reports whether user was granted permission. Admins without
// explicit permissions already carry allPermissions from userFromClaims.
func HasPermission(user *AppUser, permission string) bool {
	if user == nil {
		return false
	}
	return slices.Contains(user.Permissions, permission)
}

// RequirePermission guards a route with one of PermModelSnapshot,
// PermModelSolve, PermExportCreate or PermExportView. It panics on any other
// name so a typo fails at route registration.
func RequirePermission(permission string) echo.MiddlewareFunc {
	if !slices.Contains(allPermissions, permission) {
		panic("middleware: unknown permission " + permission)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}

			if !HasPermission(user, permission) {
				logger.Debug("[Auth] Permission denied", "user_id", user.UserID, "permission", permission, "path", c.Path())
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: missing permission " + permission})
			}

			return next(c)
		}
	}
}

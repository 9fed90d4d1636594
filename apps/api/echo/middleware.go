package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
)

// roleMiddleware only lets principals with the given role through.
func roleMiddleware(role account.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := getContextIdentity(ctx)
			if err != nil {
				return err
			}
			if id.Role != role {
				return core.NewPermissionError("only " + roleName(role) + "s can perform this action")
			}
			return next(ctx)
		}
	}
}

func roleName(role account.Role) string {
	switch role {
	case account.RoleStudent:
		return "student"
	case account.RoleLecturer:
		return "lecturer"
	}
	return string(role)
}

package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/doctorsportal/portal/internal/platform/apperr"
)

const identityKey = "auth_identity"

// RequireIdentity authenticates the Authorization header and stores the
// verified Identity on the echo context.
func RequireIdentity(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, err := v.Authenticate(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return apperr.HTTP(err)
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by RequireIdentity.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok && id.Email != ""
}

// RequireAdmin rejects callers whose standing is not admin. It must be
// mounted after RequireIdentity.
func RequireAdmin(g *Gate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return apperr.HTTP(apperr.ErrUnauthenticated)
			}
			if err := g.Authorize(c.Request().Context(), id); err != nil {
				return apperr.HTTP(err)
			}
			return next(c)
		}
	}
}

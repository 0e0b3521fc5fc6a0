package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/session"
)

// SessionKey is the echo context key holding the resolved *session.Session.
const SessionKey = "session"

// Resolver turns a bearer token into a session.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
}

// SessionAuth requires a valid session token and stores the session in the
// context.
func SessionAuth(r Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
			}

			// Expecting "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
			}

			s, err := r.Resolve(c.Request().Context(), parts[1])
			if err != nil {
				if errors.Is(err, session.ErrUnauthenticated) {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
				}
				return err
			}

			c.Set(SessionKey, s)
			return next(c)
		}
	}
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/middleware"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/session"
)

// currentSession returns the session stored by middleware.SessionAuth.
func currentSession(c echo.Context) (*session.Session, error) {
	s, ok := c.Get(middleware.SessionKey).(*session.Session)
	if !ok || s == nil || s.Profile == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return s, nil
}

// currentUser is the signed-in user's profile as of this request.
func currentUser(c echo.Context) (models.User, error) {
	s, err := currentSession(c)
	if err != nil {
		return models.User{}, err
	}
	return *s.Profile, nil
}

func queryLimit(c echo.Context, def, maxLimit int) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 1 {
		return def
	}
	return min(limit, maxLimit)
}

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

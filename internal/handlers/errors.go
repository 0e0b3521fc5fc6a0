package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/media"
	"github.com/anonto42/nano-midea/socialgraph/internal/models"
	"github.com/anonto42/nano-midea/socialgraph/internal/profile"
	"github.com/anonto42/nano-midea/socialgraph/internal/session"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// toHTTPError maps a service error onto a status code. Errors that are
// already *echo.HTTPError pass through.
func toHTTPError(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var (
		verr     *models.ValidationError
		selfErr  *models.SelfActionError
		cooldown *profile.CooldownActiveError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &selfErr):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.As(err, &cooldown):
		return echo.NewHTTPError(http.StatusTooManyRequests, echo.Map{
			"message":        cooldown.Error(),
			"remaining_days": cooldown.RemainingDays,
			"retry_after":    cooldown.Until,
		}).SetInternal(err)
	case errors.Is(err, session.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token").SetInternal(err)
	case errors.Is(err, models.ErrNotPermitted), errors.Is(err, store.ErrPermissionDenied):
		return echo.NewHTTPError(http.StatusForbidden, "Not permitted").SetInternal(err)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, profile.ErrNoPendingChange):
		return echo.NewHTTPError(http.StatusNotFound, "Not found").SetInternal(err)
	case errors.Is(err, store.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "Conflicting update, try again").SetInternal(err)
	case errors.Is(err, store.ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request").SetInternal(err)
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, media.ErrDisabled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Service unavailable").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal error").SetInternal(err)
}

// ErrorHandler maps service errors, logs server-side failures and renders
// the result with echo's default handler.
func ErrorHandler(e *echo.Echo, logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		mapped := toHTTPError(err)
		var he *echo.HTTPError
		if errors.As(mapped, &he) && he.Code >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Int("status", he.Code),
				zap.Error(err))
		}
		e.DefaultHTTPErrorHandler(mapped, c)
	}
}

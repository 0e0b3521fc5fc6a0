package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// HealthCheck reports whether the document store answers a read.
func HealthCheck(s store.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if _, err := s.Get(ctx, store.Path("health/ping")); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "socialgraph",
				"error":   err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "socialgraph",
		})
	}
}

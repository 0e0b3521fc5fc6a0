package router

import (
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/feed"
	"github.com/anonto42/nano-midea/socialgraph/internal/graph"
	"github.com/anonto42/nano-midea/socialgraph/internal/handlers"
	"github.com/anonto42/nano-midea/socialgraph/internal/metrics"
	"github.com/anonto42/nano-midea/socialgraph/internal/middleware"
	"github.com/anonto42/nano-midea/socialgraph/internal/notify"
	"github.com/anonto42/nano-midea/socialgraph/internal/profile"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
	"github.com/anonto42/nano-midea/socialgraph/internal/session"
	"github.com/anonto42/nano-midea/socialgraph/internal/store"
	"github.com/anonto42/nano-midea/socialgraph/validators"
)

// SetupMiddleware configures global Echo middleware, the validator and the
// error handler
func SetupMiddleware(e *echo.Echo, logger *zap.Logger) {
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = handlers.ErrorHandler(e, logger)

	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	e.Use(eMiddleware.RequestLoggerWithConfig(eMiddleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v eMiddleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				logger.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
}

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Store    store.Store
	Engine   *graph.Engine
	Profiles *profile.Guard
	Feed     *feed.Assembler
	Inbox    *notify.Inbox
	Sessions *session.Manager
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// SetupRoutes configures all application routes
func SetupRoutes(e *echo.Echo, d Deps) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e.GET("/health", handlers.HealthCheck(d.Store))
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	// --- Unprotected routes for authentication ---
	authHandler := handlers.NewAuthHandler(d.Sessions)
	authHandler.RegisterAuthRoutes(e.Group("/api/v1/auth"))

	// --- Protected routes ---
	api := e.Group("/api/v1")
	api.Use(middleware.SessionAuth(d.Sessions))

	authHandler.RegisterSessionRoutes(api)

	userRepo := repositories.NewStoreUserRepository(d.Store)
	handlers.NewUserHandler(d.Profiles, userRepo).RegisterProfileRoutes(api)
	handlers.NewFollowHandler(d.Engine).RegisterFollowRoutes(api)
	handlers.NewPostHandler(d.Engine, d.Feed).RegisterPostRoutes(api)
	handlers.NewLikeHandler(d.Engine).RegisterLikeRoutes(api)
	handlers.NewCommentHandler(d.Engine, d.Feed, logger).RegisterCommentRoutes(api)
	handlers.NewFeedHandler(d.Feed).RegisterFeedRoutes(api)
	handlers.NewNotificationHandler(d.Inbox, logger).RegisterNotificationRoutes(api)

	logger.Info("routes configured", zap.Int("count", len(e.Routes())))
}

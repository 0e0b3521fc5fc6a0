package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/anonto42/nano-midea/socialgraph/internal/feed"
	"github.com/anonto42/nano-midea/socialgraph/internal/graph"
	"github.com/anonto42/nano-midea/socialgraph/internal/media"
	"github.com/anonto42/nano-midea/socialgraph/internal/metrics"
	"github.com/anonto42/nano-midea/socialgraph/internal/notify"
	"github.com/anonto42/nano-midea/socialgraph/internal/profile"
	"github.com/anonto42/nano-midea/socialgraph/internal/repositories"
	"github.com/anonto42/nano-midea/socialgraph/internal/router"
	"github.com/anonto42/nano-midea/socialgraph/internal/session"
	"github.com/anonto42/nano-midea/socialgraph/pkg/config"
	"github.com/anonto42/nano-midea/socialgraph/pkg/firebase"
	"github.com/anonto42/nano-midea/socialgraph/pkg/logging"
)

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "socialgraph",
		Short: "Social graph and engagement API",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.StringVar(&envFile, "env-file", ".env", "Path to a .env file")
	flags.String("port", defaults.GetString("port"), "HTTP port")
	flags.String("log-level", defaults.GetString("log_level"), "Log level (debug, info, warn, error)")
	flags.String("store-backend", defaults.GetString("store_backend"), "Document store (firestore, mongo, postgres, sqlite, memory)")
	flags.String("media-backend", defaults.GetString("media_backend"), "Media storage (firebase, s3, none)")
	flags.Duration("handle-cooldown", defaults.GetDuration("handle_cooldown"), "Minimum time between handle changes")
	flags.Int("feed-following-cap", defaults.GetInt("feed_following_cap"), "Most followed authors a following feed reads")

	bindFlag(cmd, "port", "port")
	bindFlag(cmd, "log_level", "log-level")
	bindFlag(cmd, "store_backend", "store-backend")
	bindFlag(cmd, "media_backend", "media-backend")
	bindFlag(cmd, "handle_cooldown", "handle-cooldown")
	bindFlag(cmd, "feed_following_cap", "feed-following-cap")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	if cfgFile == "" {
		return nil
	}
	viper.SetConfigFile(cfgFile)
	return viper.ReadInConfig()
}

func runServer(ctx context.Context) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	var fb *firebase.App
	var firestoreClient *firestore.Client
	if cfg.NeedsFirebase() {
		fb, err = firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseStorageBucket, logger)
		if err != nil {
			return err
		}
		if cfg.StoreBackend == config.BackendFirestore {
			firestoreClient, err = fb.Firestore(ctx)
			if err != nil {
				return err
			}
		}
	}

	s, closeStore, err := config.OpenStore(ctx, cfg, firestoreClient, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	uploader, err := openMedia(ctx, cfg, fb)
	if err != nil {
		return err
	}

	m := metrics.New()
	users := repositories.NewStoreUserRepository(s)
	posts := repositories.NewStorePostRepository(s)
	comments := repositories.NewStoreCommentRepository(s)
	follows := repositories.NewStoreFollowRepository(s)
	notifications := repositories.NewStoreNotificationRepository(s)

	engine, err := graph.NewEngine(graph.Config{
		Store:    s,
		Users:    users,
		Posts:    posts,
		Comments: comments,
		Follows:  follows,
		Notifier: notify.NewNotifier(notify.Config{
			Repository: notifications,
			Logger:     logger.Named("notify"),
			Metrics:    m,
		}),
		Media:   uploader,
		Metrics: m,
		Logger:  logger.Named("graph"),
	})
	if err != nil {
		return err
	}

	guard, err := profile.NewGuard(profile.Config{
		Store:    s,
		Users:    users,
		Posts:    posts,
		Media:    uploader,
		Metrics:  m,
		Logger:   logger.Named("profile"),
		Cooldown: cfg.HandleCooldown,
	})
	if err != nil {
		return err
	}

	var verifier session.Verifier = session.NoVerifier{}
	if fb != nil {
		verifier = session.FirebaseVerifier{Client: fb.AuthClient}
	} else {
		logger.Warn("firebase not configured, sign-in is disabled")
	}
	sessions, err := session.NewManager(session.Config{
		Verifier: verifier,
		Profiles: guard,
		Users:    users,
		Secret:   cfg.JWTSecret,
		TTL:      cfg.SessionTTL,
		Logger:   logger.Named("session"),
	})
	if err != nil {
		return err
	}

	e := echo.New()
	router.SetupMiddleware(e, logger)
	router.SetupRoutes(e, router.Deps{
		Store:    s,
		Engine:   engine,
		Profiles: guard,
		Feed: feed.NewAssembler(feed.Config{
			Posts:        posts,
			Comments:     comments,
			Follows:      follows,
			Logger:       logger.Named("feed"),
			FollowingCap: cfg.FeedFollowingCap,
			Limit:        cfg.FeedLimit,
		}),
		Inbox:    notify.NewInbox(notifications, nil),
		Sessions: sessions,
		Metrics:  m,
		Logger:   logger,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", httpServer.Addr),
			zap.String("store", cfg.StoreBackend),
			zap.String("media", cfg.MediaBackend))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func openMedia(ctx context.Context, cfg *config.Config, fb *firebase.App) (media.Uploader, error) {
	switch cfg.MediaBackend {
	case config.MediaFirebase:
		bucket, err := fb.Bucket(ctx)
		if err != nil {
			return nil, err
		}
		return media.NewFirebaseStorage(bucket, cfg.FirebaseStorageBucket), nil
	case config.MediaS3:
		return media.NewS3(ctx, cfg.S3Bucket, cfg.AWSRegion)
	}
	return media.Disabled{}, nil
}

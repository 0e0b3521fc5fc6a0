package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/glebarez/sqlite"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/anonto42/nano-midea/socialgraph/internal/store"
)

// Closer releases a backend's connections.
type Closer func()

// OpenStore connects the configured document store backend. firestoreClient
// is only used by the firestore backend.
func OpenStore(ctx context.Context, cfg *Config, firestoreClient *firestore.Client, logger *zap.Logger) (store.Store, Closer, error) {
	switch cfg.StoreBackend {
	case BackendMemory:
		logger.Warn("using the in-memory store, data is lost on restart")
		s := store.NewMemory()
		return s, func() { _ = s.Close(context.Background()) }, nil

	case BackendFirestore:
		if firestoreClient == nil {
			return nil, nil, errors.New("firestore backend needs a firestore client")
		}
		s, err := store.NewFirestore(firestoreClient, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close(context.Background()) }, nil

	case BackendMongo:
		client, err := initMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))
		s, err := store.NewMongo(ctx, client, cfg.MongoDatabase, store.MongoOptions{
			PollInterval: cfg.PollInterval,
			Logger:       logger,
		})
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		return s, func() {
			_ = s.Close(context.Background())
			closeMongo(client, logger)
		}, nil

	case BackendPostgres, BackendSQLite:
		var dialector gorm.Dialector
		if cfg.StoreBackend == BackendPostgres {
			dialector = postgres.Open(cfg.PostgresURL)
		} else {
			dialector = sqlite.Open(cfg.SQLitePath)
		}
		db, err := initGorm(dialector)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.StoreBackend, err)
		}
		logger.Info("connected to SQL database", zap.String("backend", cfg.StoreBackend))
		s, err := store.NewSQL(db, store.SQLOptions{PollInterval: cfg.PollInterval, Logger: logger})
		if err != nil {
			closeGorm(db, logger)
			return nil, nil, err
		}
		return s, func() {
			_ = s.Close(context.Background())
			closeGorm(db, logger)
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// initGorm opens the database and pings it
func initGorm(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// initMongo connects and pings the primary
func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func closeGorm(db *gorm.DB, logger *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Warn("get sql db from gorm", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("close SQL connection", zap.Error(err))
		return
	}
	logger.Info("SQL connection closed")
}

func closeMongo(client *mongo.Client, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.Warn("close MongoDB connection", zap.Error(err))
		return
	}
	logger.Info("MongoDB connection closed")
}

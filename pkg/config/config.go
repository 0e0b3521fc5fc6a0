// Package config loads runtime settings from .env, the environment and
// command line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
	BackendMemory    = "memory"
)

// Media backends.
const (
	MediaFirebase = "firebase"
	MediaS3       = "s3"
	MediaNone     = "none"
)

// Config holds the runtime settings of the server.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	StoreBackend string
	PollInterval time.Duration

	FirebaseCredentialsPath string
	FirebaseStorageBucket   string

	MongoURI      string
	MongoDatabase string
	PostgresURL   string
	SQLitePath    string

	JWTSecret  string
	SessionTTL time.Duration

	HandleCooldown   time.Duration
	FeedFollowingCap int
	FeedLimit        int

	MediaBackend string
	S3Bucket     string
	AWSRegion    string
}

// ApplyDefaults binds environment keys and sets defaults on v.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("store_backend", BackendMemory)
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("firebase_credentials_path", "")
	v.SetDefault("firebase_storage_bucket", "")
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_database", "socialmedia")
	v.SetDefault("postgres_url", "")
	v.SetDefault("sqlite_path", "socialgraph.db")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("session_ttl", 72*time.Hour)
	v.SetDefault("handle_cooldown", 15*24*time.Hour)
	v.SetDefault("feed_following_cap", 10)
	v.SetDefault("feed_limit", 50)
	v.SetDefault("media_backend", MediaNone)
	v.SetDefault("s3_bucket", "")
	v.SetDefault("aws_region", "us-east-1")
}

// NewViper returns a viper instance with defaults and env bindings.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// LoadDotEnv reads .env files into the process environment. A missing file
// is not an error.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:                    v.GetString("port"),
		Env:                     v.GetString("env"),
		LogLevel:                v.GetString("log_level"),
		StoreBackend:            strings.ToLower(v.GetString("store_backend")),
		PollInterval:            v.GetDuration("poll_interval"),
		FirebaseCredentialsPath: v.GetString("firebase_credentials_path"),
		FirebaseStorageBucket:   v.GetString("firebase_storage_bucket"),
		MongoURI:                v.GetString("mongo_uri"),
		MongoDatabase:           v.GetString("mongo_database"),
		PostgresURL:             v.GetString("postgres_url"),
		SQLitePath:              v.GetString("sqlite_path"),
		JWTSecret:               v.GetString("jwt_secret"),
		SessionTTL:              v.GetDuration("session_ttl"),
		HandleCooldown:          v.GetDuration("handle_cooldown"),
		FeedFollowingCap:        v.GetInt("feed_following_cap"),
		FeedLimit:               v.GetInt("feed_limit"),
		MediaBackend:            strings.ToLower(v.GetString("media_backend")),
		S3Bucket:                v.GetString("s3_bucket"),
		AWSRegion:               v.GetString("aws_region"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NeedsFirebase reports whether any configured component talks to Firebase.
func (c *Config) NeedsFirebase() bool {
	return c.StoreBackend == BackendFirestore || c.MediaBackend == MediaFirebase || c.FirebaseCredentialsPath != ""
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	switch c.StoreBackend {
	case BackendFirestore:
		if c.FirebaseCredentialsPath == "" {
			return fmt.Errorf("firebase_credentials_path is required for the firestore backend")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("mongo_uri is required for the mongo backend")
		}
	case BackendPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres_url is required for the postgres backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required for the sqlite backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store_backend %q", c.StoreBackend)
	}
	switch c.MediaBackend {
	case MediaFirebase:
		if c.FirebaseStorageBucket == "" || c.FirebaseCredentialsPath == "" {
			return fmt.Errorf("firebase media needs firebase_credentials_path and firebase_storage_bucket")
		}
	case MediaS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3_bucket is required for s3 media")
		}
	case MediaNone:
	default:
		return fmt.Errorf("unknown media_backend %q", c.MediaBackend)
	}
	if c.HandleCooldown <= 0 {
		return fmt.Errorf("handle_cooldown must be positive")
	}
	return nil
}

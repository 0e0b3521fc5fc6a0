// Package firebase boots the Firebase Admin SDK clients the service uses.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// App holds the initialized Firebase app and its clients.
type App struct {
	FirebaseApp   *firebase.App
	AuthClient    *auth.Client
	StorageBucket string
}

// InitFirebase initializes the Firebase application and authentication client
func InitFirebase(ctx context.Context, credentialsPath, storageBucket string, logger *zap.Logger) (*App, error) {
	if credentialsPath == "" {
		return nil, errors.New("firebase credentials path not provided")
	}
	if _, err := os.Stat(credentialsPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("firebase credentials file not found at %s", credentialsPath)
	}

	var conf *firebase.Config
	if storageBucket != "" {
		conf = &firebase.Config{StorageBucket: storageBucket}
	}
	firebaseApp, err := firebase.NewApp(ctx, conf, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	logger.Info("firebase initialized", zap.String("storage_bucket", storageBucket))
	return &App{FirebaseApp: firebaseApp, AuthClient: authClient, StorageBucket: storageBucket}, nil
}

// Firestore opens a Firestore client. The caller closes it.
func (a *App) Firestore(ctx context.Context) (*firestore.Client, error) {
	client, err := a.FirebaseApp.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}
	return client, nil
}

// Bucket returns the configured default storage bucket.
func (a *App) Bucket(ctx context.Context) (*gcs.BucketHandle, error) {
	if a.StorageBucket == "" {
		return nil, errors.New("firebase storage bucket not configured")
	}
	client, err := a.FirebaseApp.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting storage client: %w", err)
	}
	return client.DefaultBucket()
}

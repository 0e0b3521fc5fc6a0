package media

import (
	"context"
	"fmt"
	"io"
	"net/url"

	gcs "cloud.google.com/go/storage"
)

// FirebaseStorage writes objects to the project's Cloud Storage bucket.
type FirebaseStorage struct {
	bucket     *gcs.BucketHandle
	bucketName string
}

// NewFirebaseStorage uploads into bucket, named bucketName in URLs.
func NewFirebaseStorage(bucket *gcs.BucketHandle, bucketName string) *FirebaseStorage {
	return &FirebaseStorage{bucket: bucket, bucketName: bucketName}
}

func (f *FirebaseStorage) Upload(ctx context.Context, key string, u Upload) (string, error) {
	w := f.bucket.Object(key).NewWriter(ctx)
	w.ContentType = u.ContentType
	if _, err := io.Copy(w, u.Body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return FirebaseDownloadURL(f.bucketName, key), nil
}

// FirebaseDownloadURL is the public download URL of an object.
func FirebaseDownloadURL(bucket, key string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media", bucket, url.PathEscape(key))
}

// Package media stores post images and profile photos in object storage and
// returns the URL that is written into documents.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ErrDisabled is returned when no object storage is configured.
var ErrDisabled = errors.New("media uploads are disabled")

// Upload is a file received from a client.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Uploader stores an object under key and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, u Upload) (string, error)
}

// Disabled rejects every upload.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, Upload) (string, error) {
	return "", ErrDisabled
}

// ProfilePhotoKey is the object key of a user's profile photo.
func ProfilePhotoKey(uid, name string) string {
	return fmt.Sprintf("profile_pictures/%s/%s", uid, cleanName(name))
}

// PostImageKey is the object key of a post image; the millisecond timestamp
// keeps repeated uploads of the same file name apart.
func PostImageKey(uid, name string, at time.Time) string {
	return fmt.Sprintf("posts/%s/%s_%d", uid, cleanName(name), at.UnixMilli())
}

func cleanName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "upload"
	}
	return base
}

// Package storage keeps the raw bytes of uploaded media. Metadata lives in the database;
// a MediaAsset only holds the key returned by Put.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FolderMedia is the key prefix for uploaded media objects.
const FolderMedia = "media"

// ErrNotFound is returned by Open and Delete when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// Object is an opened blob. Body may also implement io.ReadSeeker (local files),
// in which case callers can serve byte ranges. Caller must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
	ModTime     time.Time
}

// Blob is a byte store for media files.
type Blob interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Open(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// MediaKey returns a fresh object key: media/{uuid}{ext}. ext comes from the uploaded
// filename and is lowercased; it never carries path components.
func MediaKey(filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	return FolderMedia + "/" + strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}

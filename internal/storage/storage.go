package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrPresignUnsupported = errors.New("presigned uploads are not supported by this storage driver")
)

// ObjectStore keeps image bytes under opaque keys.
type ObjectStore interface {
	// Put stores data under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	// Get returns the object's bytes and content type.
	Get(ctx context.Context, key string) ([]byte, string, error)
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns the public URL for key without touching the backend.
	URL(key string) string
}

// Presigner issues URLs clients can PUT an object to directly.
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
}

// PresignedUpload is the response to a presign request.
type PresignedUpload struct {
	UploadURL string    `json:"uploadUrl"`
	Key       string    `json:"key"`
	PublicURL string    `json:"publicUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Presign issues a presigned PUT when the store supports it.
func Presign(ctx context.Context, store ObjectStore, key, contentType string, expires time.Duration) (*PresignedUpload, error) {
	p, ok := store.(Presigner)
	if !ok {
		return nil, ErrPresignUnsupported
	}
	uploadURL, err := p.PresignPut(ctx, key, contentType, expires)
	if err != nil {
		return nil, err
	}
	return &PresignedUpload{
		UploadURL: uploadURL,
		Key:       key,
		PublicURL: store.URL(key),
		ExpiresAt: time.Now().Add(expires),
	}, nil
}

// ObjectKey builds a unique key such as "listings/<owner>/<uuid>.jpg".
func ObjectKey(prefix, owner, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		ext = ""
	}
	return path.Join(prefix, owner, uuid.NewString()+ext)
}

// ValidKey rejects keys that could escape the store root.
func ValidKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, `\`) {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

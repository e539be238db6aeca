package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeImage(t *testing.T) {
	t.Run("shrinks oversized images keeping aspect", func(t *testing.T) {
		out, err := NormalizeImage(pngBytes(t, 400, 100), 200)
		require.NoError(t, err)
		assert.True(t, out.Resized)
		assert.Equal(t, "image/png", out.ContentType)
		assert.Equal(t, 200, out.Width)
		assert.Equal(t, 50, out.Height)
	})

	t.Run("leaves small images untouched", func(t *testing.T) {
		data := pngBytes(t, 10, 10)
		out, err := NormalizeImage(data, 200)
		require.NoError(t, err)
		assert.False(t, out.Resized)
		assert.Equal(t, data, out.Data)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := NormalizeImage([]byte("not an image"), 200)
		assert.ErrorIs(t, err, ErrUnsupportedImage)
	})
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("listings", "0123456780", "Photo.JPG")
	assert.True(t, strings.HasPrefix(key, "listings/0123456780/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.NotEqual(t, key, ObjectKey("listings", "0123456780", "Photo.JPG"))

	assert.False(t, strings.Contains(ObjectKey("listings", "u", "evil.sh"), ".sh"))
}

func TestValidKey(t *testing.T) {
	assert.NoError(t, ValidKey("listings/a/b.jpg"))
	for _, bad := range []string{"", "/etc/passwd", "../x", `a\b`} {
		assert.Error(t, ValidKey(bad), bad)
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	url, err := s.Put(ctx, "listings/u/a.png", "image/png", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/listings/u/a.png", url)

	data, ct, err := s.Get(ctx, "listings/u/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)
	assert.Equal(t, "image/png", ct)

	require.NoError(t, s.Delete(ctx, "listings/u/a.png"))
	require.NoError(t, s.Delete(ctx, "listings/u/a.png"), "deleting twice is fine")
	_, _, err = s.Get(ctx, "listings/u/a.png")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = s.Put(ctx, "../escape", "image/png", nil)
	assert.Error(t, err)
}

func TestPresign_Unsupported(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "/uploads")
	require.NoError(t, err)
	_, err = Presign(context.Background(), s, "k", "image/png", time.Minute)
	assert.ErrorIs(t, err, ErrPresignUnsupported)
}

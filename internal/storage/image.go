package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
)

var ErrUnsupportedImage = errors.New("unsupported image format or corrupt image")

// NormalizedImage is the output of NormalizeImage.
type NormalizedImage struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	Resized     bool
}

// NormalizeImage decodes data and shrinks it to fit maxDimension on both sides.
// PNG stays PNG; everything else is re-encoded as JPEG. Images already within
// bounds are returned untouched.
func NormalizeImage(data []byte, maxDimension int) (*NormalizedImage, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	bounds := img.Bounds()
	contentType := "image/jpeg"
	if format == "png" {
		contentType = "image/png"
	}

	needsResize := maxDimension > 0 && (bounds.Dx() > maxDimension || bounds.Dy() > maxDimension)
	if !needsResize && (format == "jpeg" || format == "png") {
		return &NormalizedImage{Data: data, ContentType: contentType, Width: bounds.Dx(), Height: bounds.Dy()}, nil
	}

	out := img
	if needsResize {
		out = resize.Thumbnail(uint(maxDimension), uint(maxDimension), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if format == "png" {
		err = png.Encode(&buf, out)
	} else {
		err = jpeg.Encode(&buf, out, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode image: %w", err)
	}
	return &NormalizedImage{
		Data:        buf.Bytes(),
		ContentType: contentType,
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
		Resized:     needsResize,
	}, nil
}

package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/pr0br0/cyboard/internal/config"
	"github.com/pr0br0/cyboard/internal/storage"
	"github.com/pr0br0/cyboard/internal/utils"
)

const PresignExpiry = 15 * time.Minute

// presignableTypes maps accepted content types to the key extension.
var presignableTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// UploadedImage is what clients attach to a listing after uploading.
type UploadedImage struct {
	URL         string `json:"url"`
	StorageKey  string `json:"storageKey"`
	ContentType string `json:"contentType"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

type IUploadService interface {
	// Upload normalizes and stores an image sent through the API.
	Upload(ctx context.Context, owner utils.SixID, filename string, data []byte) (*UploadedImage, error)
	// Presign issues a direct-to-storage PUT under the incoming prefix.
	Presign(ctx context.Context, owner utils.SixID, filename, contentType string) (*storage.PresignedUpload, error)
}

type uploadService struct {
	objects      storage.ObjectStore
	maxBytes     int64
	maxDimension int
	logger       *zap.Logger
}

func NewUploadService(objects storage.ObjectStore, cfg config.StorageConfig, logger *zap.Logger) IUploadService {
	return &uploadService{
		objects:      objects,
		maxBytes:     int64(cfg.MaxSizeMB) << 20,
		maxDimension: cfg.MaxDimension,
		logger:       logger,
	}
}

func (s *uploadService) Upload(ctx context.Context, owner utils.SixID, filename string, data []byte) (*UploadedImage, error) {
	if len(data) == 0 {
		return nil, NewValidationError("image", "No image provided")
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, ErrImageTooLarge
	}
	img, err := storage.NormalizeImage(data, s.maxDimension)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImage) {
			return nil, NewValidationError("image", "Only JPEG, PNG and GIF images are allowed")
		}
		return nil, err
	}
	ext := ".jpg"
	if img.ContentType == "image/png" {
		ext = ".png"
	}
	key := storage.ObjectKey(ListingImagePrefix, owner.String(), "image"+ext)
	url, err := s.objects.Put(ctx, key, img.ContentType, img.Data)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Image uploaded", zap.String("user_id", owner.String()), zap.String("key", key),
		zap.String("filename", filename), zap.Int("bytes", len(img.Data)), zap.Bool("resized", img.Resized))
	return &UploadedImage{
		URL:         url,
		StorageKey:  key,
		ContentType: img.ContentType,
		Width:       img.Width,
		Height:      img.Height,
	}, nil
}

func (s *uploadService) Presign(ctx context.Context, owner utils.SixID, filename, contentType string) (*storage.PresignedUpload, error) {
	ext, ok := presignableTypes[contentType]
	if !ok {
		return nil, NewValidationError("contentType", "Only JPEG, PNG and GIF images are allowed")
	}
	key := storage.ObjectKey(IncomingPrefix, owner.String(), "upload"+ext)
	upload, err := storage.Presign(ctx, s.objects, key, contentType, PresignExpiry)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Presigned upload issued", zap.String("user_id", owner.String()), zap.String("key", key), zap.String("filename", filename))
	return upload, nil
}

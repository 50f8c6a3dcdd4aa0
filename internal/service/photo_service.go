package service

import (
	"context"
	"log/slog"
	"time"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/photo"
	"ozzus/pm-tracker/internal/storage"
)

type PhotoUpload struct {
	Ref         string `json:"ref"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

type PhotoService struct {
	store    storage.BlobStore
	log      *slog.Logger
	maxBytes int64
	timeout  time.Duration
	now      func() time.Time
}

func NewPhotoService(store storage.BlobStore, maxBytes int64, timeout time.Duration, log *slog.Logger) *PhotoService {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PhotoService{store: store, log: log, maxBytes: maxBytes, timeout: timeout, now: time.Now}
}

func (s *PhotoService) MaxBytes() int64 { return s.maxBytes }

// Upload stores one evidence photo and returns its reference. Nothing about
// any wizard changes here, so a failed upload can simply be repeated.
func (s *PhotoService) Upload(ctx context.Context, fileName string, data []byte) (*PhotoUpload, error) {
	if len(data) == 0 {
		return nil, domain.NewValidationError("photo is empty")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, domain.NewValidationError("photo is %d bytes, limit is %d", len(data), s.maxBytes)
	}
	format, err := photo.Detect(data)
	if err != nil {
		return nil, domain.NewValidationError("photo %q must be a JPEG or PNG image: %v", fileName, err)
	}

	name := storage.PhotoName(fileName, s.now())

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ref, err := s.store.Put(ctx, name, format.ContentType(), data)
	if err != nil {
		return nil, domain.NewUploadError(err, "upload photo "+name)
	}

	s.log.Info("photo uploaded", slog.String("name", name), slog.Int("size", len(data)))
	return &PhotoUpload{Ref: ref, Name: name, ContentType: format.ContentType(), Size: len(data)}, nil
}

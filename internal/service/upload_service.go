package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sigap-app/sigap-api/internal/dto"
	"github.com/sigap-app/sigap-api/internal/models"
	"github.com/sigap-app/sigap-api/internal/observability"
	"github.com/sigap-app/sigap-api/internal/repository"
	"github.com/sigap-app/sigap-api/pkg/cloudinary"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the payload is not an image.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrUploadInvalidDataURL indicates the data URL could not be decoded.
	ErrUploadInvalidDataURL = errors.New("invalid data url")
)

// MediaStorage abstracts the external image store.
type MediaStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (cloudinary.Asset, error)
	Destroy(ctx context.Context, publicID string) (string, error)
}

// UploadService handles validation, forwarding, and bookkeeping of report
// images.
type UploadService interface {
	Upload(ctx context.Context, file *multipart.FileHeader, userID *uint) (dto.UploadResponse, error)
	UploadDataURL(ctx context.Context, req dto.UploadDataURLRequest, userID *uint) (dto.UploadResponse, error)
	Delete(ctx context.Context, publicID string) (dto.UploadDeleteResponse, error)
}

type uploadService struct {
	storage MediaStorage
	repo    repository.UploadRepository
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewUploadService constructs an upload service.
func NewUploadService(storage MediaStorage, repo repository.UploadRepository, maxSizeMB int, logger zerolog.Logger) UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 8
	}
	return &uploadService{
		storage: storage,
		repo:    repo,
		logger:  logger.With().Str("component", "upload_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/sigap-app/sigap-api/internal/service/upload"),
	}
}

func (s *uploadService) Upload(ctx context.Context, file *multipart.FileHeader, userID *uint) (dto.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	span.SetAttributes(attribute.Int64("upload.max_bytes", s.maxSize))
	if file == nil {
		err := errors.New("file is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.UploadResponse{}, err
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload_too_large")
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open_failed")
		return dto.UploadResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read_failed")
		return dto.UploadResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload_too_large")
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	return s.store(ctx, span, sanitizeFileName(file.Filename), buf.Bytes(), userID)
}

// UploadDataURL accepts a base64 data: URL, the capture path used by the field
// app when no multipart form is available.
func (s *uploadService) UploadDataURL(ctx context.Context, req dto.UploadDataURLRequest, userID *uint) (dto.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store_data_url")
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	span.SetAttributes(attribute.Int64("upload.max_bytes", s.maxSize))

	payload, err := s.decodeDataURL(req.DataURL)
	if err != nil {
		if errors.Is(err, ErrUploadTooLarge) {
			observability.UploadRejected().WithLabelValues("size").Inc()
			span.SetStatus(codes.Error, "payload_too_large")
		} else {
			observability.UploadRejected().WithLabelValues("data_url").Inc()
			span.SetStatus(codes.Error, "decode_failed")
		}
		span.RecordError(err)
		return dto.UploadResponse{}, err
	}

	name := strings.TrimSpace(req.FileName)
	if name == "" {
		name = "capture"
	}
	if filepath.Ext(name) == "" {
		name += mimetype.Detect(payload).Extension()
	}

	return s.store(ctx, span, sanitizeFileName(name), payload, userID)
}

// store runs the shared validation tail: sniff the MIME, forward to the media
// store, and persist the bookkeeping row.
func (s *uploadService) store(ctx context.Context, span trace.Span, name string, payload []byte, userID *uint) (dto.UploadResponse, error) {
	mime := mimetype.Detect(payload)
	span.SetAttributes(attribute.String("upload.detected_mime", mime.String()))
	if !strings.HasPrefix(mime.String(), "image/") {
		observability.UploadRejected().WithLabelValues("type").Inc()
		span.RecordError(ErrUploadTypeNotAllowed)
		span.SetStatus(codes.Error, "type_not_allowed")
		return dto.UploadResponse{}, ErrUploadTypeNotAllowed
	}

	checksum := sha256.Sum256(payload)
	span.SetAttributes(
		attribute.String("upload.sanitized_name", name),
		attribute.Int64("upload.size_bytes", int64(len(payload))),
	)

	asset, err := s.storage.Upload(ctx, name, bytes.NewReader(payload))
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage_failed")
		return dto.UploadResponse{}, err
	}

	sizeBytes := asset.Bytes
	if sizeBytes <= 0 {
		sizeBytes = int64(len(payload))
	}

	record := models.UploadRecord{
		FileName:  name,
		URL:       asset.URL,
		PublicID:  asset.PublicID,
		MimeType:  mime.String(),
		SizeBytes: sizeBytes,
		Checksum:  hex.EncodeToString(checksum[:]),
	}
	if userID != nil {
		record.UserID = userID
		span.SetAttributes(attribute.Int("upload.user_id", int(*userID)))
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence_failed")
		return dto.UploadResponse{}, err
	}

	observability.UploadRequests().WithLabelValues(mime.String()).Inc()
	span.SetStatus(codes.Ok, "stored")

	return dto.UploadResponse{
		URL:       asset.URL,
		PublicID:  asset.PublicID,
		FileName:  record.FileName,
		MimeType:  record.MimeType,
		SizeBytes: record.SizeBytes,
		Checksum:  record.Checksum,
		Width:     asset.Width,
		Height:    asset.Height,
		CreatedAt: record.CreatedAt,
	}, nil
}

// Delete forwards the destroy to the media store. "ok", "not found", and
// "queued" all count as success; the metadata row goes away best-effort.
func (s *uploadService) Delete(ctx context.Context, publicID string) (dto.UploadDeleteResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.destroy", trace.WithAttributes(
		attribute.String("upload.public_id", publicID),
	))
	defer span.End()

	result, err := s.storage.Destroy(ctx, publicID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "destroy_failed")
		return dto.UploadDeleteResponse{}, err
	}

	switch result {
	case "ok", "not found", "queued":
	default:
		err := fmt.Errorf("unexpected destroy result %q", result)
		span.RecordError(err)
		span.SetStatus(codes.Error, "destroy_rejected")
		return dto.UploadDeleteResponse{}, err
	}

	if _, err := s.repo.DeleteByPublicID(ctx, publicID); err != nil {
		s.logger.Warn().Err(err).Str("public_id", publicID).Msg("failed to remove upload record")
	}

	span.SetStatus(codes.Ok, "destroyed")
	return dto.UploadDeleteResponse{PublicID: publicID, Result: result}, nil
}

// decodeDataURL parses a base64 data: URL, bounding the encoded form before
// decoding so an oversized payload never gets allocated.
func (s *uploadService) decodeDataURL(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "data:") {
		return nil, fmt.Errorf("%w: missing data: prefix", ErrUploadInvalidDataURL)
	}

	meta, encoded, ok := strings.Cut(raw[len("data:"):], ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing payload separator", ErrUploadInvalidDataURL)
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrUploadInvalidDataURL)
	}

	// 4 base64 characters encode 3 bytes.
	if int64(len(encoded)) > (s.maxSize*4)/3+4 {
		return nil, ErrUploadTooLarge
	}

	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadInvalidDataURL, err)
	}
	if int64(len(payload)) > s.maxSize {
		return nil, ErrUploadTooLarge
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUploadInvalidDataURL)
	}

	return payload, nil
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

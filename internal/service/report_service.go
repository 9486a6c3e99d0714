package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/sigap-app/sigap-api/internal/dto"
	"github.com/sigap-app/sigap-api/internal/models"
	"github.com/sigap-app/sigap-api/internal/observability"
	"github.com/sigap-app/sigap-api/internal/repository"
)

var (
	// ErrReportInvalid indicates the upsert payload failed validation.
	ErrReportInvalid = errors.New("invalid report payload")
	// ErrReportNotFound indicates the requested report does not exist.
	ErrReportNotFound = errors.New("report not found")
	// ErrUpsertConflict indicates the bounded retry also lost its race; the
	// caller may retry the whole upsert.
	ErrUpsertConflict = errors.New("report upsert conflict")
)

// Branches an upsert can resolve to.
const (
	UpsertBranchCreated = "created"
	UpsertBranchUpdated = "updated"
)

// ReportService exposes the report store: upsert by natural key, reads,
// listings, and deletes.
type ReportService interface {
	Upsert(ctx context.Context, req dto.ReportUpsertRequest) (dto.ReportUpsertResponse, error)
	Get(ctx context.Context, id uint) (dto.ReportResponse, error)
	Lookup(ctx context.Context, kind, date string) (dto.ReportResponse, error)
	List(ctx context.Context, kind string, limit int, lite bool) (dto.ReportListResponse, error)
	DeleteByID(ctx context.Context, id uint) error
	DeleteByNaturalKey(ctx context.Context, kind, date string) (dto.ReportDeleteResponse, error)
}

type reportService struct {
	repo      repository.ReportRepository
	validator *validator.Validate
	events    EventPublisher
	logger    zerolog.Logger
}

// NewReportService constructs the report service.
func NewReportService(repo repository.ReportRepository, validate *validator.Validate, events EventPublisher, logger zerolog.Logger) ReportService {
	return &reportService{
		repo:      repo,
		validator: validate,
		events:    events,
		logger:    logger.With().Str("component", "report_service").Logger(),
	}
}

// Upsert writes the single report row for (kind, natural key): update the
// existing row, insert when none matched, and recover a racing insert's
// duplicate-key failure with exactly one retried update.
func (s *reportService) Upsert(ctx context.Context, req dto.ReportUpsertRequest) (dto.ReportUpsertResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ReportUpsertResponse{}, err
	}

	kind := strings.TrimSpace(req.Kind)
	if kind == "" {
		return dto.ReportUpsertResponse{}, fmt.Errorf("%w: kind is required", ErrReportInvalid)
	}
	if len(req.Body) == 0 {
		return dto.ReportUpsertResponse{}, fmt.Errorf("%w: body must be a non-empty JSON object", ErrReportInvalid)
	}

	key, err := naturalKeyOf(req.Body, req.Date)
	if err != nil {
		return dto.ReportUpsertResponse{}, err
	}
	owner := strings.TrimSpace(req.Owner)

	report := models.Report{
		Kind:       kind,
		ReportDate: &key,
		Owner:      owner,
	}
	if err := report.SetBody(req.Body); err != nil {
		return dto.ReportUpsertResponse{}, fmt.Errorf("%w: body is not serializable", ErrReportInvalid)
	}

	branch := UpsertBranchUpdated

	rows, err := s.repo.UpdateByNaturalKey(ctx, kind, &key, owner, report.Body)
	if err != nil {
		return dto.ReportUpsertResponse{}, err
	}

	if rows == 0 {
		err := s.repo.Create(ctx, &report)
		switch {
		case err == nil:
			branch = UpsertBranchCreated
		case errors.Is(err, gorm.ErrDuplicatedKey):
			// A concurrent insert won between our update and insert. One
			// bounded retry resolves it to an update.
			s.logger.Info().Str("kind", kind).Str("key", key).Msg("upsert insert lost race, retrying as update")
			retried, retryErr := s.repo.UpdateByNaturalKey(ctx, kind, &key, owner, report.Body)
			if retryErr != nil {
				return dto.ReportUpsertResponse{}, retryErr
			}
			if retried == 0 {
				return dto.ReportUpsertResponse{}, fmt.Errorf("%w: kind=%s key=%s", ErrUpsertConflict, kind, key)
			}
		default:
			return dto.ReportUpsertResponse{}, err
		}
	}

	stored, err := s.repo.FindByNaturalKey(ctx, kind, &key)
	if err != nil {
		return dto.ReportUpsertResponse{}, err
	}

	observability.ReportUpserts().WithLabelValues(branch).Inc()
	if s.events != nil {
		s.events.Publish(ctx, "reports."+branch, dto.NewReportLite(stored))
	}

	return dto.ReportUpsertResponse{Report: dto.NewReportResponse(stored), Branch: branch}, nil
}

func (s *reportService) Get(ctx context.Context, id uint) (dto.ReportResponse, error) {
	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReportResponse{}, ErrReportNotFound
		}
		return dto.ReportResponse{}, err
	}
	return dto.NewReportResponse(report), nil
}

func (s *reportService) Lookup(ctx context.Context, kind, date string) (dto.ReportResponse, error) {
	kind = strings.TrimSpace(kind)
	date = strings.TrimSpace(date)
	if kind == "" || date == "" {
		return dto.ReportResponse{}, fmt.Errorf("%w: kind and date are required", ErrReportInvalid)
	}

	report, err := s.repo.FindByNaturalKey(ctx, kind, &date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReportResponse{}, ErrReportNotFound
		}
		return dto.ReportResponse{}, err
	}
	return dto.NewReportResponse(report), nil
}

func (s *reportService) List(ctx context.Context, kind string, limit int, lite bool) (dto.ReportListResponse, error) {
	limit = clampPageSize(limit)

	reports, err := s.repo.List(ctx, repository.ReportFilter{
		Kind:  strings.TrimSpace(kind),
		Limit: limit,
		Lite:  lite,
	})
	if err != nil {
		return dto.ReportListResponse{}, err
	}

	return dto.ReportListResponse{
		Items: dto.NewReportResponseSlice(reports),
		Count: len(reports),
		Limit: limit,
	}, nil
}

func (s *reportService) DeleteByID(ctx context.Context, id uint) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReportNotFound
		}
		return err
	}
	if s.events != nil {
		s.events.Publish(ctx, "reports.deleted", map[string]interface{}{"id": id})
	}
	return nil
}

// DeleteByNaturalKey removes the matching row and reports the count. A missing
// key removes zero rows and is not an error.
func (s *reportService) DeleteByNaturalKey(ctx context.Context, kind, date string) (dto.ReportDeleteResponse, error) {
	kind = strings.TrimSpace(kind)
	date = strings.TrimSpace(date)
	if kind == "" || date == "" {
		return dto.ReportDeleteResponse{}, fmt.Errorf("%w: kind and date are required", ErrReportInvalid)
	}

	removed, err := s.repo.DeleteByNaturalKey(ctx, kind, &date)
	if err != nil {
		return dto.ReportDeleteResponse{}, err
	}
	if removed > 0 && s.events != nil {
		s.events.Publish(ctx, "reports.deleted", map[string]interface{}{"kind": kind, "report_date": date})
	}
	return dto.ReportDeleteResponse{Removed: removed}, nil
}

// naturalKeyOf extracts the natural key from the body's convention field,
// falling back to the request-supplied date when the body lacks it.
func naturalKeyOf(body map[string]interface{}, fallback string) (string, error) {
	if raw, ok := body[models.NaturalKeyField]; ok && raw != nil {
		value, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s must be a string", ErrReportInvalid, models.NaturalKeyField)
		}
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed, nil
		}
	}
	if trimmed := strings.TrimSpace(fallback); trimmed != "" {
		return trimmed, nil
	}
	return "", fmt.Errorf("%w: natural key %s missing from body and no date provided", ErrReportInvalid, models.NaturalKeyField)
}

func clampPageSize(size int) int {
	if size <= 0 {
		return 20
	}
	if size > 100 {
		return 100
	}
	return size
}

package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sigap-app/sigap-api/internal/models"
)

// ReportFilter narrows report listings.
type ReportFilter struct {
	Kind  string
	Limit int
	Lite  bool
}

// ReportRepository manages report persistence operations. Reports are unique
// per (kind, report_date); a nil date is keyless and never collides.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	UpdateByNaturalKey(ctx context.Context, kind string, date *string, owner string, body datatypes.JSON) (int64, error)
	FindByNaturalKey(ctx context.Context, kind string, date *string) (models.Report, error)
	GetByID(ctx context.Context, id uint) (models.Report, error)
	List(ctx context.Context, filter ReportFilter) ([]models.Report, error)
	DeleteByID(ctx context.Context, id uint) error
	DeleteByNaturalKey(ctx context.Context, kind string, date *string) (int64, error)
	UpdateBodyLocked(ctx context.Context, id uint, mutate func(report *models.Report) error) (models.Report, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository constructs a report repository implementation.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

// liteColumns is the scalar projection used when listings omit bodies.
var liteColumns = []string{"id", "kind", "report_date", "owner", "created_at", "updated_at"}

func scopeNaturalKey(query *gorm.DB, kind string, date *string) *gorm.DB {
	query = query.Where("kind = ?", kind)
	if date == nil {
		return query.Where("report_date IS NULL")
	}
	return query.Where("report_date = ?", *date)
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *reportRepository) UpdateByNaturalKey(ctx context.Context, kind string, date *string, owner string, body datatypes.JSON) (int64, error) {
	query := scopeNaturalKey(r.db.WithContext(ctx).Model(&models.Report{}), kind, date)
	result := query.Updates(map[string]interface{}{
		"owner": owner,
		"body":  body,
	})
	return result.RowsAffected, result.Error
}

func (r *reportRepository) FindByNaturalKey(ctx context.Context, kind string, date *string) (models.Report, error) {
	var report models.Report
	err := scopeNaturalKey(r.db.WithContext(ctx), kind, date).First(&report).Error
	return report, err
}

func (r *reportRepository) GetByID(ctx context.Context, id uint) (models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).First(&report, id).Error
	return report, err
}

func (r *reportRepository) List(ctx context.Context, filter ReportFilter) ([]models.Report, error) {
	query := r.db.WithContext(ctx).Model(&models.Report{})

	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Lite {
		query = query.Select(liteColumns)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var reports []models.Report
	if err := query.Order("created_at DESC").Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *reportRepository) DeleteByID(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Report{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *reportRepository) DeleteByNaturalKey(ctx context.Context, kind string, date *string) (int64, error) {
	result := scopeNaturalKey(r.db.WithContext(ctx), kind, date).Delete(&models.Report{})
	return result.RowsAffected, result.Error
}

// UpdateBodyLocked loads the report under an exclusive row lock, applies the
// mutation, and persists the body before releasing the lock. A mutate error
// rolls the transaction back and surfaces unchanged.
func (r *reportRepository) UpdateBodyLocked(ctx context.Context, id uint, mutate func(report *models.Report) error) (models.Report, error) {
	var report models.Report
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&report, id).Error; err != nil {
			return err
		}
		if err := mutate(&report); err != nil {
			return err
		}
		return tx.Model(&report).Update("body", report.Body).Error
	})
	if err != nil {
		return models.Report{}, err
	}
	return report, nil
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sigap-app/sigap-api/internal/models"
)

// UploadRepository persists metadata about uploaded media assets.
type UploadRepository interface {
	Create(ctx context.Context, record *models.UploadRecord) error
	DeleteByPublicID(ctx context.Context, publicID string) (int64, error)
}

type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository constructs a repository for upload records.
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

func (r *uploadRepository) Create(ctx context.Context, record *models.UploadRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// DeleteByPublicID removes the metadata rows for a destroyed asset. Missing
// rows are not an error; the provider is the source of truth.
func (r *uploadRepository) DeleteByPublicID(ctx context.Context, publicID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("public_id = ?", publicID).Delete(&models.UploadRecord{})
	return result.RowsAffected, result.Error
}

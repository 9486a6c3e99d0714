package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sigap-app/sigap-api/internal/models"
)

// TrainingSessionRepository manages training session persistence.
type TrainingSessionRepository interface {
	Create(ctx context.Context, session *models.TrainingSession) error
	GetByToken(ctx context.Context, token string) (models.TrainingSession, error)
	List(ctx context.Context, limit int) ([]models.TrainingSession, error)
}

type trainingSessionRepository struct {
	db *gorm.DB
}

// NewTrainingSessionRepository constructs a training session repository implementation.
func NewTrainingSessionRepository(db *gorm.DB) TrainingSessionRepository {
	return &trainingSessionRepository{db: db}
}

func (r *trainingSessionRepository) Create(ctx context.Context, session *models.TrainingSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// GetByToken resolves a session and its owning report in one query.
func (r *trainingSessionRepository) GetByToken(ctx context.Context, token string) (models.TrainingSession, error) {
	var session models.TrainingSession
	err := r.db.WithContext(ctx).Preload("Report").Where("token = ?", token).First(&session).Error
	return session, err
}

func (r *trainingSessionRepository) List(ctx context.Context, limit int) ([]models.TrainingSession, error) {
	query := r.db.WithContext(ctx).Preload("Report")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var sessions []models.TrainingSession
	if err := query.Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

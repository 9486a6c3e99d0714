package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sigap-app/sigap-api/internal/models"
)

func TestTrainingSessionRepositoryGetByTokenPreloadsReport(t *testing.T) {
	db := setupTestDB(t, &models.Report{}, &models.TrainingSession{})
	repo := NewTrainingSessionRepository(db)

	report := models.Report{Kind: "training", ReportDate: strPtr("2026-06-01"), Body: datatypes.JSON(`{"title":"Safety Briefing"}`)}
	require.NoError(t, db.Create(&report).Error)

	expires := time.Now().Add(48 * time.Hour)
	session := models.TrainingSession{Token: "tok-briefing", ReportID: report.ID, ExpiresAt: &expires}
	require.NoError(t, repo.Create(context.Background(), &session))
	require.NotZero(t, session.ID)

	resolved, err := repo.GetByToken(context.Background(), "tok-briefing")
	require.NoError(t, err)
	require.Equal(t, report.ID, resolved.Report.ID)
	require.Equal(t, "training", resolved.Report.Kind)
	require.False(t, resolved.IsExpired(time.Now()))

	_, err = repo.GetByToken(context.Background(), "tok-unknown")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTrainingSessionRepositoryListNewestFirst(t *testing.T) {
	db := setupTestDB(t, &models.Report{}, &models.TrainingSession{})
	repo := NewTrainingSessionRepository(db)

	report := models.Report{Kind: "training", ReportDate: strPtr("2026-06-02"), Body: datatypes.JSON(`{}`)}
	require.NoError(t, db.Create(&report).Error)

	// Future timestamps keep these two on top of the shared test database.
	older := models.TrainingSession{Token: "tok-list-old", ReportID: report.ID, CreatedAt: time.Now().Add(time.Hour)}
	newer := models.TrainingSession{Token: "tok-list-new", ReportID: report.ID, CreatedAt: time.Now().Add(2 * time.Hour)}
	require.NoError(t, repo.Create(context.Background(), &older))
	require.NoError(t, repo.Create(context.Background(), &newer))

	sessions, err := repo.List(context.Background(), 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(sessions), 2)
	require.Equal(t, "tok-list-new", sessions[0].Token)
	require.Equal(t, report.ID, sessions[0].Report.ID, "listing should hydrate the owning report")

	limited, err := repo.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"matchwell/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingRepository always errors; stands in for a down Redis.
type failingRepository struct{}

func (f *failingRepository) GetSession(ctx context.Context, sessionID string) (*models.FormSession, error) {
	return nil, errors.New("primary down")
}

func (f *failingRepository) SetSession(ctx context.Context, session *models.FormSession) error {
	return errors.New("primary down")
}

func (f *failingRepository) ClearSession(ctx context.Context, sessionID string) error {
	return errors.New("primary down")
}

func (f *failingRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return false, errors.New("primary down")
}

func TestFailoverFallsBackToMemory(t *testing.T) {
	logger := zerolog.Nop()
	fallback := NewMemorySessionRepository(time.Hour)
	repo := NewFailoverSessionRepository(&failingRepository{}, fallback, &logger)
	ctx := context.Background()

	session := &models.FormSession{SessionID: "sess-1", Step: models.StepContact}
	require.NoError(t, repo.SetSession(ctx, session))

	got, err := repo.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StepContact, got.Step)

	// After the first failure the primary is marked down and skipped.
	assert.True(t, repo.isDown.Load())

	allowed, err := repo.CheckRateLimit(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestFailoverPrefersHealthyPrimary(t *testing.T) {
	logger := zerolog.Nop()
	primary := NewMemorySessionRepository(time.Hour)
	fallback := NewMemorySessionRepository(time.Hour)
	repo := NewFailoverSessionRepository(primary, fallback, &logger)
	ctx := context.Background()

	require.NoError(t, repo.SetSession(ctx, &models.FormSession{SessionID: "sess-1", Step: models.StepReview}))

	// The write landed in the primary, not the fallback.
	got, err := primary.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = fallback.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, repo.isDown.Load())
}

package service

import (
	"context"

	"matchwell/internal/domain"
	"matchwell/internal/models"

	"github.com/rs/zerolog"
)

// TherapistService manages the roster the matcher draws from.
type TherapistService struct {
	store  domain.Store
	logger *zerolog.Logger
}

func NewTherapistService(store domain.Store, logger *zerolog.Logger) *TherapistService {
	return &TherapistService{store: store, logger: logger}
}

func (s *TherapistService) Create(ctx context.Context, t *models.Therapist) error {
	if err := s.store.CreateTherapist(ctx, t); err != nil {
		return err
	}
	s.logger.Info().Int64("therapist_id", t.ID).Str("name", t.Name).Msg("therapist created")
	return nil
}

func (s *TherapistService) Update(ctx context.Context, t *models.Therapist) error {
	return s.store.UpdateTherapist(ctx, t)
}

// Deactivate hides a therapist from matching without touching history.
func (s *TherapistService) Deactivate(ctx context.Context, id int64) error {
	if err := s.store.DeactivateTherapist(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("therapist_id", id).Msg("therapist deactivated")
	return nil
}

func (s *TherapistService) Reorder(ctx context.Context, id, newOrder int64) error {
	return s.store.ReorderTherapist(ctx, id, newOrder)
}

func (s *TherapistService) GetByID(ctx context.Context, id int64) (*models.Therapist, error) {
	return s.store.GetTherapistByID(ctx, id)
}

// ListActive returns the public roster, sorted by display order.
func (s *TherapistService) ListActive(ctx context.Context) ([]*models.Therapist, error) {
	return s.store.GetActiveTherapists(ctx)
}

// ListAll returns the full cached roster including deactivated entries.
func (s *TherapistService) ListAll() []*models.Therapist {
	return s.store.GetTherapists()
}

package service

import (
	"context"

	"matchwell/internal/domain"
	"matchwell/internal/models"

	"github.com/rs/zerolog"
)

// LeadService is the staff-facing surface over people records.
type LeadService struct {
	store  domain.Store
	logger *zerolog.Logger
}

func NewLeadService(store domain.Store, logger *zerolog.Logger) *LeadService {
	return &LeadService{store: store, logger: logger}
}

func (s *LeadService) Get(ctx context.Context, id int64) (*models.Person, error) {
	return s.store.GetPerson(ctx, id)
}

// List pages through people, optionally filtered by status.
func (s *LeadService) List(ctx context.Context, status string, limit, offset int) ([]*models.Person, error) {
	if limit <= 0 || limit > 500 {
		limit = models.DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListPeople(ctx, status, limit, offset)
}

// SetStatus applies a status change after checking the transition table.
func (s *LeadService) SetStatus(ctx context.Context, id int64, status string) (*models.Person, error) {
	person, err := s.store.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransitionPerson(person.Status, status) {
		return nil, ErrInvalidTransition
	}
	if err := s.store.UpdatePersonStatus(ctx, id, status); err != nil {
		return nil, err
	}
	person.Status = status
	s.logger.Info().Int64("person_id", id).Str("status", status).Msg("person status changed")
	return person, nil
}

// Archive soft-removes a person from the active funnel. Allowed from any
// non-archived state.
func (s *LeadService) Archive(ctx context.Context, id int64) (*models.Person, error) {
	return s.SetStatus(ctx, id, models.PersonArchived)
}

// WithdrawConsent clears the consent flag without deleting the record.
func (s *LeadService) WithdrawConsent(ctx context.Context, id int64) error {
	if _, err := s.store.GetPerson(ctx, id); err != nil {
		return err
	}
	return s.store.SetPersonConsent(ctx, id, false)
}

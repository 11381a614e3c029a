package service

import (
	"context"
	"time"

	"matchwell/internal/domain"
	"matchwell/internal/events"
	"matchwell/internal/models"

	"github.com/rs/zerolog"
)

// MatchService proposes and resolves person↔therapist pairings.
type MatchService struct {
	store    domain.Store
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewMatchService(store domain.Store, eventBus domain.EventPublisher, logger *zerolog.Logger) *MatchService {
	return &MatchService{
		store:    store,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Propose picks the best available therapist for the requested specialty and
// creates a proposed match. Candidates must be active, cover the specialty and
// have weekly capacity left; the least-loaded candidate wins, ties broken by
// sort order. A person keeps at most one open match.
func (s *MatchService) Propose(ctx context.Context, person *models.Person, specialty, sessionID string) (*models.Match, error) {
	if existing, err := s.store.GetOpenMatchForPerson(ctx, person.ID); err == nil {
		return existing, nil
	}

	therapists, err := s.store.GetActiveTherapists(ctx)
	if err != nil {
		return nil, err
	}

	var best *models.Therapist
	var bestLoad int64
	for _, t := range therapists {
		if !t.HasSpecialty(specialty) {
			continue
		}
		load, err := s.store.CountOpenMatches(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if t.WeeklyCapacity > 0 && load >= t.WeeklyCapacity {
			continue
		}
		if best == nil || load < bestLoad {
			best = t
			bestLoad = load
		}
	}
	if best == nil {
		return nil, ErrNoTherapistAvailable
	}

	match := &models.Match{
		PersonID:      person.ID,
		TherapistID:   best.ID,
		TherapistName: best.Name,
		Specialty:     specialty,
		Status:        models.MatchProposed,
	}
	if err := s.store.CreateMatch(ctx, match); err != nil {
		return nil, err
	}

	s.publishMatchEvent(events.EventMatchProposed, match, sessionID)
	s.recordFunnelEvent(ctx, match, sessionID, models.EventMatchProposed, person)

	return match, nil
}

func (s *MatchService) Get(ctx context.Context, matchID int64) (*models.Match, error) {
	return s.store.GetMatch(ctx, matchID)
}

// Accept moves a proposed match to accepted.
func (s *MatchService) Accept(ctx context.Context, matchID int64) (*models.Match, error) {
	return s.resolve(ctx, matchID, models.MatchAccepted, events.EventMatchAccepted)
}

// Decline moves a proposed match to declined.
func (s *MatchService) Decline(ctx context.Context, matchID int64) (*models.Match, error) {
	return s.resolve(ctx, matchID, models.MatchDeclined, events.EventMatchDeclined)
}

func (s *MatchService) resolve(ctx context.Context, matchID int64, status, eventType string) (*models.Match, error) {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchProposed {
		return nil, ErrInvalidTransition
	}

	if err := s.store.UpdateMatchStatus(ctx, matchID, status); err != nil {
		return nil, err
	}
	match.Status = status

	s.publishMatchEvent(eventType, match, "")
	return match, nil
}

// Expire closes a proposed match that was never answered.
func (s *MatchService) Expire(ctx context.Context, matchID int64) error {
	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if match.Status != models.MatchProposed {
		return ErrInvalidTransition
	}
	return s.store.UpdateMatchStatus(ctx, matchID, models.MatchExpired)
}

// ExpireStale expires proposed matches that went unanswered for longer than
// maxAge. Returns the number of matches expired.
func (s *MatchService) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	stale, err := s.store.GetStaleProposedMatches(ctx, cutoff, 100)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, m := range stale {
		if err := s.Expire(ctx, m.ID); err != nil {
			s.logger.Error().Err(err).Int64("match_id", m.ID).Msg("expire match error")
			continue
		}
		expired++
	}
	if expired > 0 {
		s.logger.Info().Int("expired", expired).Msg("unanswered match proposals expired")
	}
	return expired, nil
}

func (s *MatchService) ListByPerson(ctx context.Context, personID int64) ([]*models.Match, error) {
	return s.store.ListMatchesByPerson(ctx, personID)
}

func (s *MatchService) ListByTherapist(ctx context.Context, therapistID int64) ([]*models.Match, error) {
	return s.store.ListMatchesByTherapist(ctx, therapistID)
}

func (s *MatchService) publishMatchEvent(eventType string, match *models.Match, sessionID string) {
	if s.eventBus == nil {
		return
	}
	payload := events.MatchEventPayload{
		MatchID:     match.ID,
		PersonID:    match.PersonID,
		TherapistID: match.TherapistID,
		SessionID:   sessionID,
		Status:      match.Status,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("match_id", match.ID).Msg("publish event error")
	}
}

func (s *MatchService) recordFunnelEvent(ctx context.Context, match *models.Match, sessionID, eventType string, person *models.Person) {
	if sessionID == "" {
		return
	}
	ev := &models.FunnelEvent{
		SessionID:   sessionID,
		Type:        eventType,
		UTMSource:   person.UTMSource,
		UTMCampaign: person.UTMCampaign,
	}
	if err := s.store.InsertFunnelEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("type", eventType).Msg("failed to record funnel event")
	}
}

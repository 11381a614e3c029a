package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"matchwell/internal/domain"
	"matchwell/internal/events"
	"matchwell/internal/metrics"
	"matchwell/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IntakeService owns the wizard draft lifecycle: create, save steps, submit.
// Submit turns a draft into a Person and a proposed Match.
type IntakeService struct {
	store    domain.Store
	sessions domain.SessionRepository
	matches  *MatchService
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewIntakeService(store domain.Store, sessions domain.SessionRepository, matches *MatchService, eventBus domain.EventPublisher, logger *zerolog.Logger) *IntakeService {
	return &IntakeService{
		store:    store,
		sessions: sessions,
		matches:  matches,
		eventBus: eventBus,
		logger:   logger,
	}
}

// CreateSession starts a new draft with a server-generated id when the client
// did not supply one.
func (s *IntakeService) CreateSession(ctx context.Context, sessionID, utmSource, utmCampaign string) (*models.FormSession, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	now := time.Now()
	session := &models.FormSession{
		SessionID:   sessionID,
		Step:        models.StepContact,
		Answers:     make(map[string]interface{}),
		UTMSource:   utmSource,
		UTMCampaign: utmCampaign,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.sessions.SetSession(ctx, session); err != nil {
		return nil, err
	}

	s.recordFunnelEvent(ctx, session, models.EventPageView, "")
	return session, nil
}

func (s *IntakeService) GetSession(ctx context.Context, sessionID string) (*models.FormSession, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// AbandonSession discards an unsubmitted draft. Submitted sessions stay until
// TTL so a repeated submit remains idempotent.
func (s *IntakeService) AbandonSession(ctx context.Context, sessionID string) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.PersonID != 0 {
		return ErrInvalidTransition
	}
	return s.sessions.ClearSession(ctx, sessionID)
}

// SaveStep merges the step's answers into the draft and advances the step
// pointer. Answers are merged key by key, never replaced wholesale.
func (s *IntakeService) SaveStep(ctx context.Context, sessionID, step string, answers map[string]interface{}) (*models.FormSession, error) {
	if !models.ValidStep(step) {
		return nil, fmt.Errorf("unknown wizard step %q", step)
	}

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Answers == nil {
		session.Answers = make(map[string]interface{})
	}
	for k, v := range answers {
		session.Answers[k] = v
	}
	session.Step = step
	session.UpdatedAt = time.Now()

	if err := s.sessions.SetSession(ctx, session); err != nil {
		return nil, err
	}

	s.recordFunnelEvent(ctx, session, models.EventWizardStep, fmt.Sprintf(`{"step":%q}`, step))
	return session, nil
}

// Submit validates the draft and creates the lead plus a proposed match.
// Idempotent: a second submit for the same session returns the existing lead.
func (s *IntakeService) Submit(ctx context.Context, sessionID string) (*models.Person, *models.Match, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	if session.PersonID != 0 {
		person, err := s.store.GetPerson(ctx, session.PersonID)
		if err != nil {
			return nil, nil, err
		}
		match, _ := s.store.GetOpenMatchForPerson(ctx, person.ID)
		return person, match, nil
	}

	person, specialty, err := personFromAnswers(session)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.CreatePerson(ctx, person); err != nil {
		return nil, nil, err
	}
	metrics.IncLeadCreated()

	session.PersonID = person.ID
	session.Step = models.StepSubmitted
	session.UpdatedAt = time.Now()
	if err := s.sessions.SetSession(ctx, session); err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to persist submitted session")
	}

	s.publishLeadEvent(events.EventLeadCreated, person, sessionID)
	s.recordFunnelEvent(ctx, session, models.EventWizardSubmit, "")

	match, err := s.matches.Propose(ctx, person, specialty, sessionID)
	if err != nil {
		// A lead without a match is still a lead; matching can be retried by staff.
		s.logger.Warn().Err(err).Int64("person_id", person.ID).Msg("match proposal failed on submit")
		return person, nil, nil
	}

	return person, match, nil
}

// personFromAnswers maps wizard answers onto a pending Person. Requires a
// first name, at least one contact, a specialty and consent.
func personFromAnswers(session *models.FormSession) (*models.Person, string, error) {
	str := func(key string) string {
		v, _ := session.Answers[key].(string)
		return strings.TrimSpace(v)
	}

	firstName := str("first_name")
	email := str("email")
	phone := str("phone")
	specialty := str("specialty")

	if firstName == "" || specialty == "" || (email == "" && phone == "") {
		return nil, "", ErrSessionIncomplete
	}

	consent, _ := session.Answers["consent"].(bool)
	if !consent {
		return nil, "", ErrConsentRequired
	}

	channel := str("channel")
	if channel != models.ChannelSMS && channel != models.ChannelEmail {
		channel = models.ChannelEmail
		if email == "" {
			channel = models.ChannelSMS
		}
	}

	now := time.Now()
	return &models.Person{
		FirstName:      firstName,
		LastName:       str("last_name"),
		Email:          email,
		Phone:          phone,
		Channel:        channel,
		Status:         models.PersonPending,
		UTMSource:      session.UTMSource,
		UTMCampaign:    session.UTMCampaign,
		ConsentGiven:   true,
		ConsentGivenAt: sql.NullTime{Time: now, Valid: true},
	}, specialty, nil
}

// TrackEvent records a client-side beacon (page views, step impressions)
// against the session's attribution. Only pre-submit stages are accepted so
// clients cannot forge conversion events.
func (s *IntakeService) TrackEvent(ctx context.Context, sessionID, eventType string) error {
	if eventType != models.EventPageView && eventType != models.EventWizardStep {
		return fmt.Errorf("event type %q is not accepted from clients", eventType)
	}
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	s.recordFunnelEvent(ctx, session, eventType, "")
	return nil
}

func (s *IntakeService) publishLeadEvent(eventType string, person *models.Person, sessionID string) {
	if s.eventBus == nil {
		return
	}
	payload := events.LeadEventPayload{
		PersonID:    person.ID,
		SessionID:   sessionID,
		Status:      person.Status,
		UTMSource:   person.UTMSource,
		UTMCampaign: person.UTMCampaign,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("person_id", person.ID).Msg("publish event error")
	}
}

func (s *IntakeService) recordFunnelEvent(ctx context.Context, session *models.FormSession, eventType, payload string) {
	ev := &models.FunnelEvent{
		SessionID:   session.SessionID,
		Type:        eventType,
		UTMSource:   session.UTMSource,
		UTMCampaign: session.UTMCampaign,
		Payload:     payload,
	}
	if err := s.store.InsertFunnelEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("type", eventType).Msg("failed to record funnel event")
	}
}

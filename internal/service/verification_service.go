package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"matchwell/internal/config"
	"matchwell/internal/domain"
	"matchwell/internal/events"
	"matchwell/internal/logging"
	"matchwell/internal/metrics"
	"matchwell/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// VerificationService proves contact ownership before a lead is activated.
// Codes are 6 digits, hashed at rest, delivered through the outbox worker.
type VerificationService struct {
	store    domain.Store
	sessions domain.SessionRepository
	worker   domain.DeliveryWorker
	eventBus domain.EventPublisher
	cfg      config.VerifyConfig
	logger   *zerolog.Logger
}

func NewVerificationService(store domain.Store, sessions domain.SessionRepository, worker domain.DeliveryWorker, eventBus domain.EventPublisher, cfg config.VerifyConfig, logger *zerolog.Logger) *VerificationService {
	return &VerificationService{
		store:    store,
		sessions: sessions,
		worker:   worker,
		eventBus: eventBus,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start issues a verification code for the person over the chosen channel.
// Sends are rate limited per contact.
func (s *VerificationService) Start(ctx context.Context, personID int64, channel, sessionID string) (*models.Verification, error) {
	person, err := s.store.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}

	contact := person.Email
	if channel == models.ChannelSMS {
		contact = person.Phone
	}
	if contact == "" {
		return nil, fmt.Errorf("person %d has no %s contact", personID, channel)
	}

	allowed, err := s.sessions.CheckRateLimit(ctx, "verify:"+contact, s.cfg.ResendLimit,
		time.Duration(s.cfg.ResendWindow)*time.Second)
	if err != nil {
		s.logger.Warn().Err(err).Msg("verification rate limit check failed")
	} else if !allowed {
		return nil, ErrRateLimited
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}

	verification := &models.Verification{
		ID:        uuid.NewString(),
		PersonID:  personID,
		Channel:   channel,
		Contact:   contact,
		CodeHash:  hashCode(code),
		ExpiresAt: time.Now().Add(time.Duration(s.cfg.CodeTTL) * time.Second),
	}
	if err := s.store.CreateVerification(ctx, verification); err != nil {
		return nil, err
	}

	subject := ""
	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, s.cfg.CodeTTL/60)
	if channel == models.ChannelEmail {
		subject = "Your verification code"
	}
	payload := map[string]interface{}{"verification_id": verification.ID, "person_id": personID}
	if err := s.worker.EnqueueMessage(ctx, channel, contact, subject, body, payload); err != nil {
		return nil, fmt.Errorf("enqueue verification message: %w", err)
	}

	metrics.IncVerification("sent")
	s.logger.Info().
		Int64("person_id", personID).
		Str("channel", channel).
		Str("contact", logging.MaskContact(contact)).
		Msg("verification code sent")
	s.recordFunnelEvent(ctx, sessionID, models.EventVerifyStart, person)

	return verification, nil
}

// Check compares the submitted code and, on success, confirms the person and
// returns an opaque session token. A correct code for an already confirmed
// person re-issues a token without touching state; a wrong code is rejected
// regardless of the person's status.
func (s *VerificationService) Check(ctx context.Context, verificationID, code, sessionID string) (string, error) {
	verification, err := s.store.GetVerification(ctx, verificationID)
	if err != nil {
		return "", err
	}

	person, err := s.store.GetPerson(ctx, verification.PersonID)
	if err != nil {
		return "", err
	}

	if verification.Expired(time.Now()) {
		metrics.IncVerification("failed")
		return "", ErrCodeExpired
	}

	attempts, err := s.store.IncrementVerificationAttempts(ctx, verificationID)
	if err != nil {
		return "", err
	}
	if attempts > int64(s.cfg.MaxAttempts) {
		metrics.IncVerification("failed")
		return "", ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(hashCode(code)), []byte(verification.CodeHash)) != 1 {
		metrics.IncVerification("failed")
		return "", ErrInvalidCode
	}

	if verification.Verified || person.Status != models.PersonPending {
		return s.issueToken(ctx, person.ID)
	}

	if err := s.store.MarkVerificationVerified(ctx, verificationID); err != nil {
		return "", err
	}
	if err := s.store.UpdatePersonStatus(ctx, person.ID, models.PersonConfirmed); err != nil {
		return "", err
	}

	metrics.IncVerification("verified")
	s.publishLeadVerified(person, sessionID)
	s.recordFunnelEvent(ctx, sessionID, models.EventVerified, person)

	return s.issueToken(ctx, person.ID)
}

// issueToken binds a fresh opaque token to the person in the session store.
// The web layer sets it as a cookie.
func (s *VerificationService) issueToken(ctx context.Context, personID int64) (string, error) {
	token := uuid.NewString()
	now := time.Now()
	bound := &models.FormSession{
		SessionID: "auth:" + token,
		Step:      models.StepSubmitted,
		PersonID:  personID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.SetSession(ctx, bound); err != nil {
		return "", fmt.Errorf("bind session token: %w", err)
	}
	return token, nil
}

// PersonIDForToken resolves a session token back to a person, or 0.
func (s *VerificationService) PersonIDForToken(ctx context.Context, token string) (int64, error) {
	session, err := s.sessions.GetSession(ctx, "auth:"+token)
	if err != nil {
		return 0, err
	}
	if session == nil {
		return 0, nil
	}
	return session.PersonID, nil
}

func (s *VerificationService) publishLeadVerified(person *models.Person, sessionID string) {
	if s.eventBus == nil {
		return
	}
	payload := events.LeadEventPayload{
		PersonID:    person.ID,
		SessionID:   sessionID,
		Status:      models.PersonConfirmed,
		UTMSource:   person.UTMSource,
		UTMCampaign: person.UTMCampaign,
	}
	if err := s.eventBus.PublishJSON(events.EventLeadVerified, payload); err != nil {
		s.logger.Error().Err(err).Int64("person_id", person.ID).Msg("publish event error")
	}
}

func (s *VerificationService) recordFunnelEvent(ctx context.Context, sessionID, eventType string, person *models.Person) {
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

// generateCode returns a random 6-digit code with leading zeros kept.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

package service

import (
	"context"
	"fmt"
	"time"

	"matchwell/internal/database"
	"matchwell/internal/domain"
	"matchwell/internal/events"
	"matchwell/internal/metrics"
	"matchwell/internal/models"

	"github.com/rs/zerolog"
)

// BookingService schedules first sessions against accepted matches and walks
// bookings through their lifecycle with optimistic locking.
type BookingService struct {
	store          domain.Store
	eventBus       domain.EventPublisher
	worker         domain.DeliveryWorker
	maxBookingDays int
	logger         *zerolog.Logger
}

func NewBookingService(store domain.Store, eventBus domain.EventPublisher, worker domain.DeliveryWorker, maxBookingDays int, logger *zerolog.Logger) *BookingService {
	if maxBookingDays <= 0 {
		maxBookingDays = 90
	}
	return &BookingService{
		store:          store,
		eventBus:       eventBus,
		worker:         worker,
		maxBookingDays: maxBookingDays,
		logger:         logger,
	}
}

// ValidateBookingDate rejects past dates and dates beyond the booking horizon.
func (s *BookingService) ValidateBookingDate(date time.Time) error {
	today := time.Now().Truncate(24 * time.Hour)
	day := date.Truncate(24 * time.Hour)

	if day.Before(today) {
		return database.ErrPastDate
	}
	if day.After(today.AddDate(0, 0, s.maxBookingDays)) {
		return database.ErrDateTooFar
	}
	return nil
}

// CreateBooking books a slot for an accepted match. Capacity and the
// one-active-booking-per-match rule are enforced inside the insert
// transaction.
func (s *BookingService) CreateBooking(ctx context.Context, matchID int64, date time.Time, comment, sessionID string) (*models.Booking, error) {
	if err := s.ValidateBookingDate(date); err != nil {
		return nil, err
	}

	match, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchAccepted {
		return nil, ErrMatchNotAccepted
	}

	person, err := s.store.GetPerson(ctx, match.PersonID)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		MatchID:       match.ID,
		PersonID:      person.ID,
		PersonName:    person.FullName(),
		Phone:         person.Phone,
		TherapistID:   match.TherapistID,
		TherapistName: match.TherapistName,
		Date:          date.Truncate(24 * time.Hour),
		Status:        models.BookingPending,
		Comment:       comment,
	}

	if err := s.store.CreateBookingWithLock(ctx, booking); err != nil {
		return nil, err
	}

	metrics.IncBooking(models.BookingPending)
	s.publishBookingEvent(events.EventBookingCreated, booking, sessionID, "")
	s.recordFunnelEvent(ctx, sessionID, models.EventBookingCreated, person)

	return booking, nil
}

// Confirm moves a pending booking to confirmed and activates the person.
// The caller passes the version it read; a stale version fails with
// ErrConcurrentModification.
func (s *BookingService) Confirm(ctx context.Context, bookingID, version int64, actor, sessionID string) (*models.Booking, error) {
	booking, err := s.transition(ctx, bookingID, version, models.BookingPending, models.BookingConfirmed)
	if err != nil {
		return nil, err
	}

	person, err := s.store.GetPerson(ctx, booking.PersonID)
	if err == nil && person.Status == models.PersonConfirmed {
		if err := s.store.UpdatePersonStatus(ctx, person.ID, models.PersonActive); err != nil {
			s.logger.Error().Err(err).Int64("person_id", person.ID).Msg("failed to activate person")
		}
	}

	metrics.IncBooking(models.BookingConfirmed)
	s.publishBookingEvent(events.EventBookingConfirmed, booking, sessionID, actor)
	if person != nil {
		s.recordFunnelEvent(ctx, sessionID, models.EventBookingConfirmed, person)
	}
	s.notifyPerson(ctx, person, fmt.Sprintf("Your session with %s on %s is confirmed.",
		booking.TherapistName, booking.Date.Format("2006-01-02")))

	return booking, nil
}

// Cancel moves a pending or confirmed booking to cancelled, freeing the slot.
func (s *BookingService) Cancel(ctx context.Context, bookingID, version int64, actor string) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.Active() {
		return nil, ErrInvalidTransition
	}

	if err := s.store.UpdateBookingStatusWithVersion(ctx, bookingID, version, models.BookingCancelled); err != nil {
		return nil, err
	}
	booking.Status = models.BookingCancelled
	booking.Version = version + 1

	metrics.IncBooking(models.BookingCancelled)
	s.publishBookingEvent(events.EventBookingCancelled, booking, "", actor)
	return booking, nil
}

// Complete moves a confirmed booking to completed after the session happened.
func (s *BookingService) Complete(ctx context.Context, bookingID, version int64, actor string) (*models.Booking, error) {
	booking, err := s.transition(ctx, bookingID, version, models.BookingConfirmed, models.BookingCompleted)
	if err != nil {
		return nil, err
	}

	metrics.IncBooking(models.BookingCompleted)
	s.publishBookingEvent(events.EventBookingCompleted, booking, "", actor)
	return booking, nil
}

func (s *BookingService) transition(ctx context.Context, bookingID, version int64, from, to string) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != from {
		return nil, ErrInvalidTransition
	}

	if err := s.store.UpdateBookingStatusWithVersion(ctx, bookingID, version, to); err != nil {
		return nil, err
	}
	booking.Status = to
	booking.Version = version + 1
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// CheckAvailability reports free slots for a therapist over a period.
func (s *BookingService) CheckAvailability(ctx context.Context, therapistID int64, start time.Time, days int) ([]*models.Availability, error) {
	if days <= 0 {
		days = 7
	}
	if days > s.maxBookingDays {
		days = s.maxBookingDays
	}
	return s.store.GetAvailabilityForPeriod(ctx, therapistID, start, days)
}

// Schedule returns bookings grouped by day for the admin calendar.
func (s *BookingService) Schedule(ctx context.Context, start, end time.Time) (map[string][]*models.Booking, error) {
	return s.store.GetDailyBookings(ctx, start, end)
}

func (s *BookingService) notifyPerson(ctx context.Context, person *models.Person, body string) {
	if s.worker == nil || person == nil {
		return
	}
	recipient := person.Email
	subject := "Your session is confirmed"
	if person.Channel == models.ChannelSMS {
		recipient = person.Phone
		subject = ""
	}
	if recipient == "" {
		return
	}
	if err := s.worker.EnqueueMessage(ctx, person.Channel, recipient, subject, body, nil); err != nil {
		s.logger.Error().Err(err).Int64("person_id", person.ID).Msg("failed to enqueue booking notification")
	}
}

func (s *BookingService) publishBookingEvent(eventType string, booking *models.Booking, sessionID, actor string) {
	if s.eventBus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		MatchID:     booking.MatchID,
		PersonID:    booking.PersonID,
		TherapistID: booking.TherapistID,
		SessionID:   sessionID,
		Status:      booking.Status,
		Date:        booking.Date,
		ChangedBy:   actor,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) recordFunnelEvent(ctx context.Context, sessionID, eventType string, person *models.Person) {
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

package domain

import (
	"context"
	"time"

	"matchwell/internal/models"
)

// Store is the persistence surface the services depend on.
type Store interface {
	// People
	CreatePerson(ctx context.Context, p *models.Person) error
	GetPerson(ctx context.Context, id int64) (*models.Person, error)
	GetPersonByEmail(ctx context.Context, email string) (*models.Person, error)
	ListPeople(ctx context.Context, status string, limit, offset int) ([]*models.Person, error)
	UpdatePersonStatus(ctx context.Context, id int64, status string) error
	SetPersonConsent(ctx context.Context, id int64, given bool) error
	CountPeopleByStatus(ctx context.Context) (map[string]int64, error)

	// Therapists
	CreateTherapist(ctx context.Context, t *models.Therapist) error
	UpdateTherapist(ctx context.Context, t *models.Therapist) error
	DeactivateTherapist(ctx context.Context, id int64) error
	ReorderTherapist(ctx context.Context, id, newOrder int64) error
	GetTherapistByID(ctx context.Context, id int64) (*models.Therapist, error)
	GetTherapistByName(ctx context.Context, name string) (*models.Therapist, error)
	GetActiveTherapists(ctx context.Context) ([]*models.Therapist, error)
	GetTherapists() []*models.Therapist

	// Matches
	CreateMatch(ctx context.Context, m *models.Match) error
	GetMatch(ctx context.Context, id int64) (*models.Match, error)
	GetOpenMatchForPerson(ctx context.Context, personID int64) (*models.Match, error)
	UpdateMatchStatus(ctx context.Context, id int64, status string) error
	ListMatchesByPerson(ctx context.Context, personID int64) ([]*models.Match, error)
	ListMatchesByTherapist(ctx context.Context, therapistID int64) ([]*models.Match, error)
	GetStaleProposedMatches(ctx context.Context, cutoff time.Time, limit int) ([]*models.Match, error)
	CountOpenMatches(ctx context.Context, therapistID int64) (int64, error)

	// Bookings
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetActiveBookingForMatch(ctx context.Context, matchID int64) (*models.Booking, error)
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]*models.Booking, error)
	CheckAvailability(ctx context.Context, therapistID int64, date time.Time) (bool, error)
	GetBookedCount(ctx context.Context, therapistID int64, date time.Time) (int, error)
	GetAvailabilityForPeriod(ctx context.Context, therapistID int64, startDate time.Time, days int) ([]*models.Availability, error)
	CountBookingsByStatus(ctx context.Context) (map[string]int64, error)

	// Verifications
	CreateVerification(ctx context.Context, v *models.Verification) error
	GetVerification(ctx context.Context, id string) (*models.Verification, error)
	IncrementVerificationAttempts(ctx context.Context, id string) (int64, error)
	MarkVerificationVerified(ctx context.Context, id string) error

	// Funnel events
	InsertFunnelEvent(ctx context.Context, ev *models.FunnelEvent) error
	GetFunnelEvents(ctx context.Context, start, end time.Time) ([]*models.FunnelEvent, error)
}

// SessionRepository stores in-progress wizard drafts.
type SessionRepository interface {
	GetSession(ctx context.Context, sessionID string) (*models.FormSession, error)
	SetSession(ctx context.Context, session *models.FormSession) error
	ClearSession(ctx context.Context, sessionID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EventPublisher is the in-process bus surface.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// DeliveryWorker enqueues outbound messages.
type DeliveryWorker interface {
	EnqueueMessage(ctx context.Context, channel, recipient, subject, body string, payload interface{}) error
}

// Sender delivers one message over a concrete channel.
type Sender interface {
	Send(ctx context.Context, task *models.DeliveryTask) error
}

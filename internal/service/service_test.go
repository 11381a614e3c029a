package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"matchwell/internal/config"
	"matchwell/internal/database"
	"matchwell/internal/events"
	"matchwell/internal/models"
	"matchwell/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// captureWorker records enqueued messages instead of delivering them.
type captureWorker struct {
	mu       sync.Mutex
	messages []capturedMessage
}

type capturedMessage struct {
	Channel   string
	Recipient string
	Subject   string
	Body      string
}

func (w *captureWorker) EnqueueMessage(ctx context.Context, channel, recipient, subject, body string, payload interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, capturedMessage{Channel: channel, Recipient: recipient, Subject: subject, Body: body})
	return nil
}

func (w *captureWorker) last() capturedMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.messages[len(w.messages)-1]
}

func (w *captureWorker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.messages)
}

type testEnv struct {
	db       *database.DB
	sessions *repository.MemorySessionRepository
	bus      *events.EventBus
	worker   *captureWorker
	logger   zerolog.Logger

	matches *MatchService
	intake  *IntakeService
	verify  *VerificationService
	booking *BookingService
	leads   *LeadService
	stats   *StatsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{
		db:       db,
		sessions: repository.NewMemorySessionRepository(time.Hour),
		bus:      events.NewEventBus(),
		worker:   &captureWorker{},
		logger:   logger,
	}

	verifyCfg := config.VerifyConfig{
		CodeTTL:      600,
		MaxAttempts:  3,
		ResendLimit:  2,
		ResendWindow: 600,
	}

	env.matches = NewMatchService(db, env.bus, &logger)
	env.intake = NewIntakeService(db, env.sessions, env.matches, env.bus, &logger)
	env.verify = NewVerificationService(db, env.sessions, env.worker, env.bus, verifyCfg, &logger)
	env.booking = NewBookingService(db, env.bus, env.worker, 90, &logger)
	env.leads = NewLeadService(db, &logger)
	env.stats = NewStatsService(db, &logger)
	return env
}

func (e *testEnv) seedTherapist(t *testing.T, name string, specialties []string, daily, weekly int64) *models.Therapist {
	t.Helper()
	th := &models.Therapist{
		Name:           name,
		Specialties:    specialties,
		DailyCapacity:  daily,
		WeeklyCapacity: weekly,
		IsActive:       true,
	}
	require.NoError(t, e.db.CreateTherapist(context.Background(), th))
	return th
}

// submitLead walks a session through the wizard and returns the created lead
// and its proposed match.
func (e *testEnv) submitLead(t *testing.T, email string) (*models.Person, *models.Match) {
	t.Helper()
	ctx := context.Background()

	session, err := e.intake.CreateSession(ctx, "", "google", "spring")
	require.NoError(t, err)

	_, err = e.intake.SaveStep(ctx, session.SessionID, models.StepContact, map[string]interface{}{
		"first_name": "Ada",
		"last_name":  "Quinn",
		"email":      email,
		"phone":      "+15550001111",
		"channel":    models.ChannelEmail,
	})
	require.NoError(t, err)

	_, err = e.intake.SaveStep(ctx, session.SessionID, models.StepConcerns, map[string]interface{}{
		"specialty": "anxiety",
	})
	require.NoError(t, err)

	_, err = e.intake.SaveStep(ctx, session.SessionID, models.StepReview, map[string]interface{}{
		"consent": true,
	})
	require.NoError(t, err)

	person, match, err := e.intake.Submit(ctx, session.SessionID)
	require.NoError(t, err)
	return person, match
}

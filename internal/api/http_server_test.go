package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"matchwell/internal/config"
	"matchwell/internal/database"
	"matchwell/internal/events"
	"matchwell/internal/models"
	"matchwell/internal/repository"
	"matchwell/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubWorker records enqueued messages so tests can read verification codes.
type stubWorker struct {
	mu       sync.Mutex
	messages []string
}

func (w *stubWorker) EnqueueMessage(ctx context.Context, channel, recipient, subject, body string, payload interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, body)
	return nil
}

func (w *stubWorker) lastBody() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.messages) == 0 {
		return ""
	}
	return w.messages[len(w.messages)-1]
}

// stubExporter writes a fixed payload, or fails before any output.
type stubExporter struct {
	err error
}

func (e stubExporter) WriteLeadsReport(ctx context.Context, w io.Writer, from, to time.Time) error {
	if e.err != nil {
		return e.err
	}
	_, err := w.Write([]byte("workbook"))
	return err
}

type apiTestEnv struct {
	srv    *HTTPServer
	db     *database.DB
	worker *stubWorker
}

func newAPITestEnv(t *testing.T) *apiTestEnv {
	t.Helper()

	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sessions := repository.NewMemorySessionRepository(time.Hour)
	bus := events.NewEventBus()
	worker := &stubWorker{}

	verifyCfg := config.VerifyConfig{CodeTTL: 600, MaxAttempts: 3, ResendLimit: 5, ResendWindow: 600}

	matches := service.NewMatchService(db, bus, &logger)
	svcs := Services{
		Intake:     service.NewIntakeService(db, sessions, matches, bus, &logger),
		Verify:     service.NewVerificationService(db, sessions, worker, bus, verifyCfg, &logger),
		Matches:    matches,
		Bookings:   service.NewBookingService(db, bus, worker, 90, &logger),
		Leads:      service.NewLeadService(db, &logger),
		Therapists: service.NewTherapistService(db, &logger),
		Stats:      service.NewStatsService(db, &logger),
	}

	adminCfg := config.AdminConfig{
		Enabled: true,
		APIKeys: []config.APIClientKey{{Key: "admin-key", Extra: "admin-extra", Name: "test"}},
	}

	srv := NewHTTPServer(config.ServerConfig{Port: 8080}, adminCfg, svcs, &logger)
	return &apiTestEnv{srv: srv, db: db, worker: worker}
}

func (e *apiTestEnv) seedTherapist(t *testing.T, name string) *models.Therapist {
	t.Helper()
	th := &models.Therapist{
		Name:           name,
		Specialties:    []string{"anxiety"},
		DailyCapacity:  2,
		WeeklyCapacity: 10,
		IsActive:       true,
	}
	require.NoError(t, e.db.CreateTherapist(context.Background(), th))
	return th
}

func (e *apiTestEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.srv.server.Handler.ServeHTTP(rec, req)
	return rec
}

func (e *apiTestEnv) admin(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return e.do(t, method, path, body, map[string]string{
		"x-api-key":   "admin-key",
		"x-api-extra": "admin-extra",
	})
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), "body: %s", rec.Body.String())
}

var testCodeRe = regexp.MustCompile(`\b(\d{6})\b`)

// walkWizard drives a session from creation to a verified token with an
// accepted match, all through the HTTP surface.
func (e *apiTestEnv) walkWizard(t *testing.T, email string) (token string, matchID int64) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/v1/intake/sessions", map[string]any{
		"utm_source": "google", "utm_campaign": "spring",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var session models.FormSession
	decodeBody(t, rec, &session)

	base := "/api/v1/intake/sessions/" + session.SessionID
	steps := []map[string]any{
		{"step": models.StepContact, "answers": map[string]any{
			"first_name": "Ada", "last_name": "Quinn",
			"email": email, "phone": "+15550001111", "channel": "email",
		}},
		{"step": models.StepConcerns, "answers": map[string]any{"specialty": "anxiety"}},
		{"step": models.StepReview, "answers": map[string]any{"consent": true}},
	}
	for _, step := range steps {
		rec = e.do(t, http.MethodPost, base+"/steps", step, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, base+"/submit", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var submitted struct {
		Person models.Person `json:"person"`
		Match  *models.Match `json:"match"`
	}
	decodeBody(t, rec, &submitted)
	require.NotNil(t, submitted.Match)

	rec = e.do(t, http.MethodPost, "/api/v1/verifications", map[string]any{
		"person_id": submitted.Person.ID, "channel": "email", "session_id": session.SessionID,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var started struct {
		VerificationID string `json:"verification_id"`
	}
	decodeBody(t, rec, &started)

	m := testCodeRe.FindStringSubmatch(e.worker.lastBody())
	require.NotNil(t, m, "no code in message: %s", e.worker.lastBody())

	rec = e.do(t, http.MethodPost, "/api/v1/verifications/"+started.VerificationID+"/check", map[string]any{
		"code": m[1], "session_id": session.SessionID,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var checked struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &checked)
	require.NotEmpty(t, checked.Token)

	return checked.Token, submitted.Match.ID
}

func TestHealthz(t *testing.T) {
	env := newAPITestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIntakeToBookingFlow(t *testing.T) {
	env := newAPITestEnv(t)
	env.seedTherapist(t, "Dr. One")

	token, matchID := env.walkWizard(t, "ada@example.com")
	authed := map[string]string{sessionTokenHeader: token}

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/matches/%d/accept", matchID), nil, authed)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	rec = env.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"match_id": matchID, "date": date,
	}, authed)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var booking models.Booking
	decodeBody(t, rec, &booking)
	assert.Equal(t, models.BookingPending, booking.Status)

	// Second booking on the same match conflicts.
	rec = env.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"match_id": matchID, "date": date,
	}, authed)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMatchActionRequiresToken(t *testing.T) {
	env := newAPITestEnv(t)
	env.seedTherapist(t, "Dr. One")

	_, matchID := env.walkWizard(t, "ada@example.com")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/matches/%d/accept", matchID), nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/matches/%d/accept", matchID), nil,
		map[string]string{sessionTokenHeader: "bogus"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMatchActionRejectsForeignToken(t *testing.T) {
	env := newAPITestEnv(t)
	env.seedTherapist(t, "Dr. One")

	_, firstMatch := env.walkWizard(t, "ada@example.com")
	otherToken, _ := env.walkWizard(t, "bob@example.com")

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/matches/%d/accept", firstMatch), nil,
		map[string]string{sessionTokenHeader: otherToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSessionNotFound(t *testing.T) {
	env := newAPITestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/intake/sessions/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitWithoutConsent(t *testing.T) {
	env := newAPITestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/intake/sessions", map[string]any{}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var session models.FormSession
	decodeBody(t, rec, &session)

	base := "/api/v1/intake/sessions/" + session.SessionID
	rec = env.do(t, http.MethodPost, base+"/steps", map[string]any{
		"step": models.StepReview,
		"answers": map[string]any{
			"first_name": "Ada", "email": "ada@example.com",
			"specialty": "anxiety", "consent": false,
		},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/submit", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailabilityEndpoint(t *testing.T) {
	env := newAPITestEnv(t)
	th := env.seedTherapist(t, "Dr. One")

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/availability/%d?days=3", th.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Availability []models.Availability `json:"availability"`
	}
	decodeBody(t, rec, &body)
	assert.Len(t, body.Availability, 3)
}

func TestEventBeacon(t *testing.T) {
	env := newAPITestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/intake/sessions", map[string]any{}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var session models.FormSession
	decodeBody(t, rec, &session)

	rec = env.do(t, http.MethodPost, "/api/v1/events", map[string]any{
		"session_id": session.SessionID, "type": models.EventPageView,
	}, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Conversion stages are server-recorded only.
	rec = env.do(t, http.MethodPost, "/api/v1/events", map[string]any{
		"session_id": session.SessionID, "type": models.EventBookingConfirmed,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRequiresAuth(t *testing.T) {
	env := newAPITestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/admin/leads", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminLeadLifecycle(t *testing.T) {
	env := newAPITestEnv(t)
	env.seedTherapist(t, "Dr. One")
	env.walkWizard(t, "ada@example.com")

	rec := env.admin(t, http.MethodGet, "/api/v1/admin/leads", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var listed struct {
		Leads []models.Person `json:"leads"`
	}
	decodeBody(t, rec, &listed)
	require.Len(t, listed.Leads, 1)
	lead := listed.Leads[0]
	assert.Equal(t, models.PersonConfirmed, lead.Status)

	rec = env.admin(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/leads/%d/status", lead.ID),
		map[string]any{"status": models.PersonActive})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// active → pending is not a legal edge.
	rec = env.admin(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/leads/%d/status", lead.ID),
		map[string]any{"status": models.PersonPending})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.admin(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/leads/%d/consent", lead.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.admin(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/leads/%d/archive", lead.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminBookingConfirmFlow(t *testing.T) {
	env := newAPITestEnv(t)
	env.seedTherapist(t, "Dr. One")

	token, matchID := env.walkWizard(t, "ada@example.com")
	authed := map[string]string{sessionTokenHeader: token}

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/matches/%d/accept", matchID), nil, authed)
	require.Equal(t, http.StatusOK, rec.Code)

	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	rec = env.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"match_id": matchID, "date": date,
	}, authed)
	require.Equal(t, http.StatusCreated, rec.Code)
	var booking models.Booking
	decodeBody(t, rec, &booking)

	// Stale version conflicts.
	rec = env.admin(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/bookings/%d/confirm", booking.ID),
		map[string]any{"version": booking.Version + 3, "actor": "ops"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.admin(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/bookings/%d/confirm", booking.ID),
		map[string]any{"version": booking.Version, "actor": "ops"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var confirmed models.Booking
	decodeBody(t, rec, &confirmed)
	assert.Equal(t, models.BookingConfirmed, confirmed.Status)
}

func TestAdminFunnelReport(t *testing.T) {
	env := newAPITestEnv(t)
	env.seedTherapist(t, "Dr. One")
	env.walkWizard(t, "ada@example.com")

	rec := env.admin(t, http.MethodGet, "/api/v1/admin/stats/funnel", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report struct {
		Stages []struct {
			Stage    string `json:"stage"`
			Sessions int64  `json:"sessions"`
		} `json:"stages"`
	}
	decodeBody(t, rec, &report)

	byStage := make(map[string]int64)
	for _, row := range report.Stages {
		byStage[row.Stage] = row.Sessions
	}
	assert.Equal(t, int64(1), byStage[models.EventWizardSubmit])
	assert.Equal(t, int64(1), byStage[models.EventVerified])

	rec = env.admin(t, http.MethodGet, "/api/v1/admin/stats/funnel?from=2026-02-01&to=2026-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOwnMatches(t *testing.T) {
	env := newAPITestEnv(t)
	env.seedTherapist(t, "Dr. One")

	token, matchID := env.walkWizard(t, "ada@example.com")
	env.walkWizard(t, "bob@example.com")

	rec := env.do(t, http.MethodGet, "/api/v1/matches", nil, map[string]string{sessionTokenHeader: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Matches []models.Match `json:"matches"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Matches, 1)
	assert.Equal(t, matchID, body.Matches[0].ID)

	rec = env.do(t, http.MethodGet, "/api/v1/matches", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminMatchListings(t *testing.T) {
	env := newAPITestEnv(t)
	th := env.seedTherapist(t, "Dr. One")
	_, matchID := env.walkWizard(t, "ada@example.com")

	rec := env.admin(t, http.MethodGet, "/api/v1/admin/leads", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var listed struct {
		Leads []models.Person `json:"leads"`
	}
	decodeBody(t, rec, &listed)
	require.Len(t, listed.Leads, 1)

	rec = env.admin(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/leads/%d/matches", listed.Leads[0].ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var byLead struct {
		Matches []models.Match `json:"matches"`
	}
	decodeBody(t, rec, &byLead)
	require.Len(t, byLead.Matches, 1)
	assert.Equal(t, matchID, byLead.Matches[0].ID)

	rec = env.admin(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/therapists/%d/matches", th.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var byTherapist struct {
		Matches []models.Match `json:"matches"`
	}
	decodeBody(t, rec, &byTherapist)
	require.Len(t, byTherapist.Matches, 1)
	assert.Equal(t, matchID, byTherapist.Matches[0].ID)
}

func TestAdminExportErrors(t *testing.T) {
	env := newAPITestEnv(t)

	env.srv.exporter = stubExporter{err: errors.New("workbook render failed")}
	rec := env.admin(t, http.MethodGet, "/api/v1/admin/export/leads", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))

	env.srv.exporter = stubExporter{}
	rec = env.admin(t, http.MethodGet, "/api/v1/admin/export/leads", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Equal(t, "workbook", rec.Body.String())
}

func TestAdminTherapistManagement(t *testing.T) {
	env := newAPITestEnv(t)

	rec := env.admin(t, http.MethodPost, "/api/v1/admin/therapists", map[string]any{
		"name": "Dr. New", "specialties": []string{"anxiety"},
		"daily_capacity": 2, "weekly_capacity": 10, "is_active": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Therapist
	decodeBody(t, rec, &created)
	require.NotZero(t, created.ID)

	rec = env.admin(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/therapists/%d/deactivate", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Deactivated therapists disappear from the public roster.
	rec = env.do(t, http.MethodGet, "/api/v1/therapists", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var roster struct {
		Therapists []models.Therapist `json:"therapists"`
	}
	decodeBody(t, rec, &roster)
	assert.Empty(t, roster.Therapists)
}

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"matchwell/internal/models"
)

const sessionTokenHeader = "x-session-token"

func (s *HTTPServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		SessionID   string `json:"session_id"`
		UTMSource   string `json:"utm_source"`
		UTMCampaign string `json:"utm_campaign"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	session, err := s.intake.CreateSession(r.Context(), body.SessionID, body.UTMSource, body.UTMCampaign)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// handleSessionByID routes /api/v1/intake/sessions/{id}[/steps|/submit].
// DELETE on the bare id abandons the draft.
func (s *HTTPServer) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/intake/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		session, err := s.intake.GetSession(r.Context(), sessionID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)

	case action == "" && r.Method == http.MethodDelete:
		if err := s.intake.AbandonSession(r.Context(), sessionID); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case action == "steps" && r.Method == http.MethodPost:
		var body struct {
			Step    string                 `json:"step"`
			Answers map[string]interface{} `json:"answers"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		session, err := s.intake.SaveStep(r.Context(), sessionID, body.Step, body.Answers)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)

	case action == "submit" && r.Method == http.MethodPost:
		person, match, err := s.intake.Submit(r.Context(), sessionID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"person": person, "match": match})

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleVerificationStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		PersonID  int64  `json:"person_id"`
		Channel   string `json:"channel"`
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Channel != models.ChannelSMS && body.Channel != models.ChannelEmail {
		writeError(w, http.StatusBadRequest, "channel must be sms or email")
		return
	}

	verification, err := s.verify.Start(r.Context(), body.PersonID, body.Channel, body.SessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"verification_id": verification.ID,
		"expires_at":      verification.ExpiresAt,
	})
}

// handleVerificationCheck routes POST /api/v1/verifications/{id}/check.
func (s *HTTPServer) handleVerificationCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/verifications/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || action != "check" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	var body struct {
		Code      string `json:"code"`
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, err := s.verify.Check(r.Context(), id, body.Code, body.SessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *HTTPServer) handleTherapists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	therapists, err := s.therapists.ListActive(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"therapists": therapists})
}

// handleAvailability routes GET /api/v1/availability/{therapistID}.
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/availability/")
	therapistID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || therapistID <= 0 {
		writeError(w, http.StatusBadRequest, "therapist id is required")
		return
	}

	start := time.Now().Truncate(24 * time.Hour)
	if v := strings.TrimSpace(r.URL.Query().Get("start")); v != "" {
		start, err = time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start format; expected YYYY-MM-DD")
			return
		}
	}
	days := 7
	if v := strings.TrimSpace(r.URL.Query().Get("days")); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil || days <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
	}

	availability, err := s.bookings.CheckAvailability(r.Context(), therapistID, start, days)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"availability": availability})
}

// handleListMatches returns the caller's own match history, newest first.
func (s *HTTPServer) handleListMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	personID, ok := s.authorizePerson(w, r)
	if !ok {
		return
	}

	matches, err := s.matches.ListByPerson(r.Context(), personID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// handleMatchAction routes POST /api/v1/matches/{id}/accept|decline. The
// caller proves ownership with the token issued after verification.
func (s *HTTPServer) handleMatchAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/matches/")
	rawID, action, _ := strings.Cut(rest, "/")
	matchID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || matchID <= 0 {
		writeError(w, http.StatusBadRequest, "match id is required")
		return
	}

	personID, ok := s.authorizePerson(w, r)
	if !ok {
		return
	}
	match, err := s.matches.Get(r.Context(), matchID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if match.PersonID != personID {
		writeError(w, http.StatusForbidden, "match belongs to another person")
		return
	}

	switch action {
	case "accept":
		match, err = s.matches.Accept(r.Context(), matchID)
	case "decline":
		match, err = s.matches.Decline(r.Context(), matchID)
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		MatchID   int64  `json:"match_id"`
		Date      string `json:"date"`
		Comment   string `json:"comment"`
		SessionID string `json:"session_id"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(body.Date))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	personID, ok := s.authorizePerson(w, r)
	if !ok {
		return
	}
	match, err := s.matches.Get(r.Context(), body.MatchID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if match.PersonID != personID {
		writeError(w, http.StatusForbidden, "match belongs to another person")
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), body.MatchID, date, body.Comment, body.SessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// handleEventBeacon accepts client-side funnel beacons.
func (s *HTTPServer) handleEventBeacon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		SessionID string `json:"session_id"`
		Type      string `json:"type"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Type != models.EventPageView && body.Type != models.EventWizardStep {
		writeError(w, http.StatusBadRequest, "unsupported event type")
		return
	}

	if err := s.intake.TrackEvent(r.Context(), body.SessionID, body.Type); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorizePerson resolves the session token header to a person id, writing
// the error response itself on failure.
func (s *HTTPServer) authorizePerson(w http.ResponseWriter, r *http.Request) (int64, bool) {
	token := strings.TrimSpace(r.Header.Get(sessionTokenHeader))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "session token is required")
		return 0, false
	}
	personID, err := s.verify.PersonIDForToken(r.Context(), token)
	if err != nil {
		writeServiceError(w, err)
		return 0, false
	}
	if personID == 0 {
		writeError(w, http.StatusUnauthorized, "invalid session token")
		return 0, false
	}
	return personID, true
}

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"matchwell/internal/models"
)

func (s *HTTPServer) handleAdminFunnel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	from, to, err := parseDateRange(r, 30)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.stats.Funnel(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	counts, err := s.stats.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *HTTPServer) handleAdminLeads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	people, err := s.leads.List(r.Context(), strings.TrimSpace(q.Get("status")), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": people})
}

// handleAdminLeadAction routes /api/v1/admin/leads/{id}[/matches|/status|/archive|/consent].
func (s *HTTPServer) handleAdminLeadAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/admin/leads/")
	rawID, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "lead id is required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		person, err := s.leads.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, person)

	case action == "matches" && r.Method == http.MethodGet:
		matches, err := s.matches.ListByPerson(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": matches})

	case action == "status" && r.Method == http.MethodPost:
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		person, err := s.leads.SetStatus(r.Context(), id, body.Status)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, person)

	case action == "archive" && r.Method == http.MethodPost:
		person, err := s.leads.Archive(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, person)

	case action == "consent" && r.Method == http.MethodDelete:
		if err := s.leads.WithdrawConsent(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleAdminSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	from, to, err := parseDateRange(r, 7)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	schedule, err := s.bookings.Schedule(r.Context(), from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule": schedule})
}

// handleAdminBookingAction routes POST /api/v1/admin/bookings/{id}/confirm|cancel|complete.
// The body carries the version the client last read.
func (s *HTTPServer) handleAdminBookingAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/admin/bookings/")
	rawID, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "booking id is required")
		return
	}

	if action == "" && r.Method == http.MethodGet {
		booking, err := s.bookings.GetBooking(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Version int64  `json:"version"`
		Actor   string `json:"actor"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var booking *models.Booking
	switch action {
	case "confirm":
		booking, err = s.bookings.Confirm(r.Context(), id, body.Version, body.Actor, "")
	case "cancel":
		booking, err = s.bookings.Cancel(r.Context(), id, body.Version, body.Actor)
	case "complete":
		booking, err = s.bookings.Complete(r.Context(), id, body.Version, body.Actor)
	default:
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleAdminTherapists(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"therapists": s.therapists.ListAll()})

	case http.MethodPost:
		var t models.Therapist
		if err := decodeJSON(r, &t); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.therapists.Create(r.Context(), &t); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleAdminTherapistAction routes /api/v1/admin/therapists/{id}[/matches|/deactivate|/reorder].
func (s *HTTPServer) handleAdminTherapistAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/admin/therapists/")
	rawID, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "therapist id is required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		t, err := s.therapists.GetByID(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)

	case action == "" && r.Method == http.MethodPut:
		var t models.Therapist
		if err := decodeJSON(r, &t); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		t.ID = id
		if err := s.therapists.Update(r.Context(), &t); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)

	case action == "matches" && r.Method == http.MethodGet:
		matches, err := s.matches.ListByTherapist(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"matches": matches})

	case action == "deactivate" && r.Method == http.MethodPost:
		if err := s.therapists.Deactivate(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case action == "reorder" && r.Method == http.MethodPost:
		var body struct {
			SortOrder int64 `json:"sort_order"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.therapists.Reorder(r.Context(), id, body.SortOrder); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "export is not configured")
		return
	}

	from, to, err := parseDateRange(r, 30)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Render the whole workbook first so a failure mid-write cannot leave
	// the client with a truncated 200 response.
	var buf bytes.Buffer
	if err := s.exporter.WriteLeadsReport(r.Context(), &buf, from, to); err != nil {
		s.logger.Error().Err(err).Msg("leads export failed")
		writeServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("leads_%s_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Error().Err(err).Msg("leads export write failed")
	}
}

// parseDateRange reads from/to query params, defaulting to the last
// defaultDays days ending tomorrow.
func parseDateRange(r *http.Request, defaultDays int) (time.Time, time.Time, error) {
	now := time.Now().Truncate(24 * time.Hour)
	from := now.AddDate(0, 0, -defaultDays)
	to := now.AddDate(0, 0, 1)

	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from format; expected YYYY-MM-DD")
		}
		from = parsed
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to format; expected YYYY-MM-DD")
		}
		to = parsed
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to must be after from")
	}
	return from, to, nil
}

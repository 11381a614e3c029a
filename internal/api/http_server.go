package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"matchwell/internal/config"
	"matchwell/internal/database"
	"matchwell/internal/metrics"
	"matchwell/internal/service"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Exporter produces the xlsx report streamed by the admin export endpoint.
type Exporter interface {
	WriteLeadsReport(ctx context.Context, w io.Writer, from, to time.Time) error
}

// HTTPServer is the single web surface: public intake endpoints plus the
// auth-wrapped admin API.
type HTTPServer struct {
	cfg        config.ServerConfig
	intake     *service.IntakeService
	verify     *service.VerificationService
	matches    *service.MatchService
	bookings   *service.BookingService
	leads      *service.LeadService
	therapists *service.TherapistService
	stats      *service.StatsService
	exporter   Exporter
	server     *http.Server
	logger     *zerolog.Logger

	publicLimiters sync.Map // map[string]*rate.Limiter, keyed by client IP
}

type Services struct {
	Intake     *service.IntakeService
	Verify     *service.VerificationService
	Matches    *service.MatchService
	Bookings   *service.BookingService
	Leads      *service.LeadService
	Therapists *service.TherapistService
	Stats      *service.StatsService
	Exporter   Exporter
}

func NewHTTPServer(cfg config.ServerConfig, adminCfg config.AdminConfig, svcs Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:        cfg,
		intake:     svcs.Intake,
		verify:     svcs.Verify,
		matches:    svcs.Matches,
		bookings:   svcs.Bookings,
		leads:      svcs.Leads,
		therapists: svcs.Therapists,
		stats:      svcs.Stats,
		exporter:   svcs.Exporter,
		logger:     logger,
	}

	public := http.NewServeMux()
	public.HandleFunc("/api/v1/intake/sessions", srv.handleSessions)
	public.HandleFunc("/api/v1/intake/sessions/", srv.handleSessionByID)
	public.HandleFunc("/api/v1/verifications", srv.handleVerificationStart)
	public.HandleFunc("/api/v1/verifications/", srv.handleVerificationCheck)
	public.HandleFunc("/api/v1/therapists", srv.handleTherapists)
	public.HandleFunc("/api/v1/availability/", srv.handleAvailability)
	public.HandleFunc("/api/v1/matches", srv.handleListMatches)
	public.HandleFunc("/api/v1/matches/", srv.handleMatchAction)
	public.HandleFunc("/api/v1/bookings", srv.handleCreateBooking)
	public.HandleFunc("/api/v1/events", srv.handleEventBeacon)
	public.HandleFunc("/healthz", srv.handleHealth)

	admin := http.NewServeMux()
	admin.HandleFunc("/api/v1/admin/stats/funnel", srv.handleAdminFunnel)
	admin.HandleFunc("/api/v1/admin/stats/dashboard", srv.handleAdminDashboard)
	admin.HandleFunc("/api/v1/admin/leads", srv.handleAdminLeads)
	admin.HandleFunc("/api/v1/admin/leads/", srv.handleAdminLeadAction)
	admin.HandleFunc("/api/v1/admin/schedule", srv.handleAdminSchedule)
	admin.HandleFunc("/api/v1/admin/bookings/", srv.handleAdminBookingAction)
	admin.HandleFunc("/api/v1/admin/therapists", srv.handleAdminTherapists)
	admin.HandleFunc("/api/v1/admin/therapists/", srv.handleAdminTherapistAction)
	admin.HandleFunc("/api/v1/admin/export/leads", srv.handleAdminExport)

	auth := NewAdminAuth(adminCfg)

	root := http.NewServeMux()
	root.Handle("/api/v1/admin/", auth.Wrap(admin))
	root.Handle("/", srv.publicRateLimit(public))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.loggingMiddleware(root),
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// publicRateLimit caps anonymous traffic per client IP.
func (s *HTTPServer) publicRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.PublicRPS <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil || host == "" {
			host = "unknown"
		}

		lim := s.getPublicLimiter(host)
		if !lim.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) getPublicLimiter(key string) *rate.Limiter {
	if v, ok := s.publicLimiters.Load(key); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Limit(s.cfg.PublicRPS), s.cfg.PublicBurst)
	actual, loaded := s.publicLimiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		metrics.IncHTTP(r.URL.Path, strconv.Itoa(recorder.status))
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps domain errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, service.ErrSessionIncomplete),
		errors.Is(err, service.ErrConsentRequired),
		errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, database.ErrPastDate),
		errors.Is(err, database.ErrDateTooFar):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCodeExpired),
		errors.Is(err, service.ErrTooManyAttempts):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrMatchNotAccepted),
		errors.Is(err, database.ErrDuplicateBooking),
		errors.Is(err, database.ErrNotAvailable),
		errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNoTherapistAvailable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

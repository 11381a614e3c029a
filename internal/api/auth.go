package api

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"matchwell/internal/config"

	"golang.org/x/time/rate"
)

// AdminAuth provides API-key auth and per-key rate limiting for the admin
// endpoints. Every key carries an extra secret compared in constant time and
// an optional permission list; an empty list means allow-all.
type AdminAuth struct {
	cfg      config.AdminConfig
	clients  map[string]config.APIClientKey
	limiters sync.Map // map[string]*rate.Limiter
}

func NewAdminAuth(cfg config.AdminConfig) *AdminAuth {
	m := make(map[string]config.APIClientKey, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		m[k.Key] = k
	}
	return &AdminAuth{cfg: cfg, clients: m}
}

func (a *AdminAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if err := a.checkAuth(r); err != nil {
			statusCode := http.StatusUnauthorized
			if err == errPermissionDenied {
				statusCode = http.StatusForbidden
			}
			writeError(w, statusCode, err.Error())
			return
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

var errPermissionDenied = fmt.Errorf("permission denied")

func (a *AdminAuth) checkAuth(r *http.Request) error {
	apiKey := strings.TrimSpace(r.Header.Get(a.apiKeyHeader()))
	extra := strings.TrimSpace(r.Header.Get(a.extraHeader()))
	if apiKey == "" || extra == "" {
		return fmt.Errorf("missing api key headers")
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return fmt.Errorf("invalid api key")
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return fmt.Errorf("invalid extra header")
	}

	return a.checkPermissions(client, r)
}

func (a *AdminAuth) checkPermissions(client config.APIClientKey, r *http.Request) error {
	required := requiredPermission(r)
	if required == "" {
		return nil
	}
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermission(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/v1/admin/stats"):
		return "read:stats"
	case strings.HasPrefix(path, "/api/v1/admin/export"):
		return "export:leads"
	case strings.HasPrefix(path, "/api/v1/admin/leads"):
		if r.Method == http.MethodGet {
			return "read:leads"
		}
		return "write:leads"
	case strings.HasPrefix(path, "/api/v1/admin/bookings"),
		strings.HasPrefix(path, "/api/v1/admin/schedule"):
		if r.Method == http.MethodGet {
			return "read:bookings"
		}
		return "write:bookings"
	case strings.HasPrefix(path, "/api/v1/admin/therapists"):
		if r.Method == http.MethodGet {
			return "read:therapists"
		}
		return "write:therapists"
	}
	return ""
}

func (a *AdminAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RPS <= 0 {
		return nil
	}

	lim := a.getLimiter(a.clientKey(r))
	if !lim.Allow() {
		return fmt.Errorf("rate limit exceeded")
	}
	return nil
}

func (a *AdminAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.apiKeyHeader())); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (a *AdminAuth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(a.cfg.RPS), burst)
	actual, loaded := a.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func (a *AdminAuth) apiKeyHeader() string {
	h := strings.TrimSpace(strings.ToLower(a.cfg.HeaderAPIKey))
	if h == "" {
		h = "x-api-key"
	}
	return h
}

func (a *AdminAuth) extraHeader() string {
	h := strings.TrimSpace(strings.ToLower(a.cfg.HeaderExtra))
	if h == "" {
		h = "x-api-extra"
	}
	return h
}

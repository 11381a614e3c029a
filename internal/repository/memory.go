package repository

import (
	"context"
	"sync"
	"time"

	"matchwell/internal/models"
)

// MemorySessionRepository is the in-process fallback when Redis is down.
type MemorySessionRepository struct {
	sessions   sync.Map
	rateLimits sync.Map
	ttl        time.Duration
}

func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		ttl: ttl,
	}
}

type sessionEntry struct {
	session   *models.FormSession
	expiresAt time.Time
}

func (r *MemorySessionRepository) GetSession(ctx context.Context, sessionID string) (*models.FormSession, error) {
	val, ok := r.sessions.Load(sessionID)
	if !ok {
		return nil, nil
	}
	entry := val.(*sessionEntry)
	if r.ttl > 0 && time.Now().After(entry.expiresAt) {
		r.sessions.Delete(sessionID)
		return nil, nil
	}
	return entry.session, nil
}

func (r *MemorySessionRepository) SetSession(ctx context.Context, session *models.FormSession) error {
	r.sessions.Store(session.SessionID, &sessionEntry{
		session:   session,
		expiresAt: time.Now().Add(r.ttl),
	})
	return nil
}

func (r *MemorySessionRepository) ClearSession(ctx context.Context, sessionID string) error {
	r.sessions.Delete(sessionID)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySessionRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if ok {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry = nil
		}
	}

	if entry == nil {
		entry = &rateLimitEntry{count: 0, expiresAt: now.Add(window)}
	}

	entry.count++
	r.rateLimits.Store(key, entry)

	return entry.count <= limit, nil
}

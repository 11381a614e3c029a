package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"matchwell/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps the sqlite handle plus an in-memory cache of the therapist
// directory. The cache is refreshed on every directory mutation.
type DB struct {
	*sql.DB
	mu              sync.RWMutex
	therapistsCache map[int64]models.Therapist
	logger          *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:              sqlDB,
		therapistsCache: make(map[int64]models.Therapist),
		logger:          logger,
	}

	if err := db.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return db, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS people (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            first_name TEXT NOT NULL,
            last_name TEXT,
            email TEXT NOT NULL,
            phone TEXT,
            channel TEXT NOT NULL DEFAULT 'email',
            status TEXT NOT NULL DEFAULT 'pending',
            utm_source TEXT,
            utm_campaign TEXT,
            consent_given BOOLEAN NOT NULL DEFAULT 0,
            consent_given_at DATETIME,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS therapists (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            specialties TEXT NOT NULL DEFAULT '',
            daily_capacity INTEGER NOT NULL DEFAULT 1,
            weekly_capacity INTEGER NOT NULL DEFAULT 10,
            sort_order INTEGER NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS matches (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            person_id INTEGER NOT NULL,
            therapist_id INTEGER NOT NULL,
            therapist_name TEXT NOT NULL,
            specialty TEXT,
            status TEXT NOT NULL DEFAULT 'proposed',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            match_id INTEGER NOT NULL,
            person_id INTEGER NOT NULL,
            person_name TEXT NOT NULL,
            phone TEXT,
            therapist_id INTEGER NOT NULL,
            therapist_name TEXT NOT NULL,
            date DATETIME NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            comment TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS verifications (
            id TEXT PRIMARY KEY,
            person_id INTEGER NOT NULL,
            channel TEXT NOT NULL,
            contact TEXT NOT NULL,
            code_hash TEXT NOT NULL,
            attempts INTEGER NOT NULL DEFAULT 0,
            verified BOOLEAN NOT NULL DEFAULT 0,
            expires_at DATETIME NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS funnel_events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            session_id TEXT NOT NULL,
            type TEXT NOT NULL,
            utm_source TEXT,
            utm_campaign TEXT,
            payload TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS delivery_tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            channel TEXT NOT NULL,
            recipient TEXT NOT NULL,
            subject TEXT,
            body TEXT NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_people_status ON people(status)`,
		`CREATE INDEX IF NOT EXISTS idx_people_email ON people(email)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_person_id ON matches(person_id)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_therapist_id ON matches(therapist_id)`,
		`CREATE INDEX IF NOT EXISTS idx_matches_status ON matches(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_therapist_id ON bookings(therapist_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_match_id ON bookings(match_id)`,
		`CREATE INDEX IF NOT EXISTS idx_verifications_person_id ON verifications(person_id)`,
		`CREATE INDEX IF NOT EXISTS idx_funnel_events_session_id ON funnel_events(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_funnel_events_created_at ON funnel_events(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_tasks_status ON delivery_tasks(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SyncTherapists upserts the configured directory into the table and rebuilds
// the cache. Called once on startup with the YAML-seeded directory.
func (db *DB) SyncTherapists(ctx context.Context, therapists []models.Therapist) error {
	for i := range therapists {
		t := &therapists[i]
		existing, err := db.GetTherapistByName(ctx, t.Name)
		switch {
		case err == nil:
			t.ID = existing.ID
			if err := db.UpdateTherapist(ctx, t); err != nil {
				return err
			}
		case errors.Is(err, ErrNotFound):
			if err := db.CreateTherapist(ctx, t); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return db.reloadTherapistCache(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

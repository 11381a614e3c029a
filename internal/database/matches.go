package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"matchwell/internal/models"
)

const matchColumns = `id, person_id, therapist_id, therapist_name, specialty, status, created_at, updated_at`

func scanMatch(row interface{ Scan(...interface{}) error }) (*models.Match, error) {
	var m models.Match
	err := row.Scan(&m.ID, &m.PersonID, &m.TherapistID, &m.TherapistName, &m.Specialty, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (db *DB) CreateMatch(ctx context.Context, m *models.Match) error {
	query := `INSERT INTO matches (person_id, therapist_id, therapist_name, specialty, status, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		m.PersonID,
		m.TherapistID,
		m.TherapistName,
		m.Specialty,
		m.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	m.ID = id
	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

func (db *DB) GetMatch(ctx context.Context, id int64) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = ?`
	m, err := scanMatch(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// GetOpenMatchForPerson returns the person's current non-terminal match, if any.
func (db *DB) GetOpenMatchForPerson(ctx context.Context, personID int64) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE person_id = ? AND status IN (?, ?) ORDER BY created_at DESC LIMIT 1`
	m, err := scanMatch(db.QueryRowContext(ctx, query, personID, models.MatchProposed, models.MatchAccepted))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("open match for person %d: %w", personID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open match: %w", err)
	}
	return m, nil
}

func (db *DB) UpdateMatchStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE matches SET status = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update match status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("match %d: %w", id, ErrNotFound)
	}
	return nil
}

func (db *DB) listMatches(ctx context.Context, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (db *DB) ListMatchesByPerson(ctx context.Context, personID int64) ([]*models.Match, error) {
	return db.listMatches(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE person_id = ? ORDER BY created_at DESC`, personID)
}

func (db *DB) ListMatchesByTherapist(ctx context.Context, therapistID int64) ([]*models.Match, error) {
	return db.listMatches(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE therapist_id = ? ORDER BY created_at DESC`, therapistID)
}

// GetStaleProposedMatches returns proposed matches created before the cutoff,
// oldest first.
func (db *DB) GetStaleProposedMatches(ctx context.Context, cutoff time.Time, limit int) ([]*models.Match, error) {
	return db.listMatches(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE status = ? AND created_at < ? ORDER BY created_at LIMIT ?`,
		models.MatchProposed, cutoff, limit)
}

// CountOpenMatches returns the therapist's open (proposed or accepted) match load.
func (db *DB) CountOpenMatches(ctx context.Context, therapistID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM matches WHERE therapist_id = ? AND status IN (?, ?)`
	var n int64
	err := db.QueryRowContext(ctx, query, therapistID, models.MatchProposed, models.MatchAccepted).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count open matches: %w", err)
	}
	return n, nil
}

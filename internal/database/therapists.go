package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"matchwell/internal/models"
)

func joinSpecialties(s []string) string {
	return strings.Join(s, ",")
}

func splitSpecialties(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (db *DB) CreateTherapist(ctx context.Context, t *models.Therapist) error {
	query := `INSERT INTO therapists (name, specialties, daily_capacity, weekly_capacity, sort_order, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		t.Name,
		joinSpecialties(t.Specialties),
		t.DailyCapacity,
		t.WeeklyCapacity,
		t.SortOrder,
		t.IsActive,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create therapist: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now

	db.mu.Lock()
	db.therapistsCache[id] = *t
	db.mu.Unlock()

	return nil
}

func (db *DB) UpdateTherapist(ctx context.Context, t *models.Therapist) error {
	query := `UPDATE therapists SET name = ?, specialties = ?, daily_capacity = ?, weekly_capacity = ?, sort_order = ?, is_active = ?, updated_at = ?
              WHERE id = ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		t.Name,
		joinSpecialties(t.Specialties),
		t.DailyCapacity,
		t.WeeklyCapacity,
		t.SortOrder,
		t.IsActive,
		now,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update therapist: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("therapist %d: %w", t.ID, ErrNotFound)
	}
	t.UpdatedAt = now

	db.mu.Lock()
	db.therapistsCache[t.ID] = *t
	db.mu.Unlock()

	return nil
}

func (db *DB) DeactivateTherapist(ctx context.Context, id int64) error {
	query := `UPDATE therapists SET is_active = 0, updated_at = ? WHERE id = ?`
	if _, err := db.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("failed to deactivate therapist: %w", err)
	}

	db.mu.Lock()
	if t, ok := db.therapistsCache[id]; ok {
		t.IsActive = false
		db.therapistsCache[id] = t
	}
	db.mu.Unlock()

	return nil
}

func (db *DB) ReorderTherapist(ctx context.Context, id, newOrder int64) error {
	query := `UPDATE therapists SET sort_order = ?, updated_at = ? WHERE id = ?`
	if _, err := db.ExecContext(ctx, query, newOrder, time.Now(), id); err != nil {
		return fmt.Errorf("failed to reorder therapist: %w", err)
	}

	db.mu.Lock()
	if t, ok := db.therapistsCache[id]; ok {
		t.SortOrder = newOrder
		db.therapistsCache[id] = t
	}
	db.mu.Unlock()

	return nil
}

const therapistColumns = `id, name, specialties, daily_capacity, weekly_capacity, sort_order, is_active, created_at, updated_at`

func scanTherapist(row interface{ Scan(...interface{}) error }) (*models.Therapist, error) {
	var t models.Therapist
	var specialties string
	err := row.Scan(&t.ID, &t.Name, &specialties, &t.DailyCapacity, &t.WeeklyCapacity, &t.SortOrder, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Specialties = splitSpecialties(specialties)
	return &t, nil
}

func (db *DB) GetTherapistByID(ctx context.Context, id int64) (*models.Therapist, error) {
	db.mu.RLock()
	if t, ok := db.therapistsCache[id]; ok {
		db.mu.RUnlock()
		return &t, nil
	}
	db.mu.RUnlock()

	query := `SELECT ` + therapistColumns + ` FROM therapists WHERE id = ?`
	t, err := scanTherapist(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("therapist %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get therapist: %w", err)
	}
	return t, nil
}

func (db *DB) GetTherapistByName(ctx context.Context, name string) (*models.Therapist, error) {
	db.mu.RLock()
	for _, t := range db.therapistsCache {
		if t.Name == name {
			db.mu.RUnlock()
			cached := t
			return &cached, nil
		}
	}
	db.mu.RUnlock()

	query := `SELECT ` + therapistColumns + ` FROM therapists WHERE name = ?`
	t, err := scanTherapist(db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("therapist %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get therapist by name: %w", err)
	}
	return t, nil
}

func (db *DB) GetActiveTherapists(ctx context.Context) ([]*models.Therapist, error) {
	query := `SELECT ` + therapistColumns + ` FROM therapists WHERE is_active = 1 ORDER BY sort_order, id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active therapists: %w", err)
	}
	defer rows.Close()

	var therapists []*models.Therapist
	for rows.Next() {
		t, err := scanTherapist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan therapist: %w", err)
		}
		therapists = append(therapists, t)
	}
	return therapists, rows.Err()
}

// GetTherapists returns the cached directory sorted by sort order.
func (db *DB) GetTherapists() []*models.Therapist {
	db.mu.RLock()
	out := make([]*models.Therapist, 0, len(db.therapistsCache))
	for id := range db.therapistsCache {
		t := db.therapistsCache[id]
		out = append(out, &t)
	}
	db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder == out[j].SortOrder {
			return out[i].ID < out[j].ID
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

func (db *DB) reloadTherapistCache(ctx context.Context) error {
	query := `SELECT ` + therapistColumns + ` FROM therapists`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to reload therapist cache: %w", err)
	}
	defer rows.Close()

	cache := make(map[int64]models.Therapist)
	for rows.Next() {
		t, err := scanTherapist(rows)
		if err != nil {
			return fmt.Errorf("failed to scan therapist: %w", err)
		}
		cache[t.ID] = *t
	}
	if err := rows.Err(); err != nil {
		return err
	}

	db.mu.Lock()
	db.therapistsCache = cache
	db.mu.Unlock()
	return nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"matchwell/internal/models"
)

const personColumns = `id, first_name, last_name, email, phone, channel, status, utm_source, utm_campaign, consent_given, consent_given_at, created_at, updated_at`

func scanPerson(row interface{ Scan(...interface{}) error }) (*models.Person, error) {
	var p models.Person
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.Channel, &p.Status,
		&p.UTMSource, &p.UTMCampaign, &p.ConsentGiven, &p.ConsentGivenAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *DB) CreatePerson(ctx context.Context, p *models.Person) error {
	query := `INSERT INTO people (first_name, last_name, email, phone, channel, status, utm_source, utm_campaign, consent_given, consent_given_at, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		p.FirstName,
		p.LastName,
		p.Email,
		p.Phone,
		p.Channel,
		p.Status,
		p.UTMSource,
		p.UTMCampaign,
		p.ConsentGiven,
		p.ConsentGivenAt,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create person: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (db *DB) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM people WHERE id = ?`
	p, err := scanPerson(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("person %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return p, nil
}

func (db *DB) GetPersonByEmail(ctx context.Context, email string) (*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM people WHERE email = ? ORDER BY created_at DESC LIMIT 1`
	p, err := scanPerson(db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("person %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person by email: %w", err)
	}
	return p, nil
}

// ListPeople returns people filtered by status; empty status means all.
func (db *DB) ListPeople(ctx context.Context, status string, limit, offset int) ([]*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM people`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	defer rows.Close()

	var people []*models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

func (db *DB) UpdatePersonStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE people SET status = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update person status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("person %d: %w", id, ErrNotFound)
	}
	return nil
}

func (db *DB) SetPersonConsent(ctx context.Context, id int64, given bool) error {
	now := time.Now()
	var givenAt interface{}
	if given {
		givenAt = now
	}
	query := `UPDATE people SET consent_given = ?, consent_given_at = ?, updated_at = ? WHERE id = ?`
	if _, err := db.ExecContext(ctx, query, given, givenAt, now, id); err != nil {
		return fmt.Errorf("failed to set person consent: %w", err)
	}
	return nil
}

// CountPeopleByStatus returns status -> count for the dashboard.
func (db *DB) CountPeopleByStatus(ctx context.Context) (map[string]int64, error) {
	query := `SELECT status, COUNT(*) FROM people GROUP BY status`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count people: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

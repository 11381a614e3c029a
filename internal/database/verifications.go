package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"matchwell/internal/models"
)

func (db *DB) CreateVerification(ctx context.Context, v *models.Verification) error {
	query := `INSERT INTO verifications (id, person_id, channel, contact, code_hash, attempts, verified, expires_at, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		v.ID,
		v.PersonID,
		v.Channel,
		v.Contact,
		v.CodeHash,
		v.Attempts,
		v.Verified,
		v.ExpiresAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create verification: %w", err)
	}
	v.CreatedAt = now
	return nil
}

func (db *DB) GetVerification(ctx context.Context, id string) (*models.Verification, error) {
	query := `SELECT id, person_id, channel, contact, code_hash, attempts, verified, expires_at, created_at
              FROM verifications WHERE id = ?`
	var v models.Verification
	err := db.QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.PersonID, &v.Channel, &v.Contact, &v.CodeHash, &v.Attempts, &v.Verified, &v.ExpiresAt, &v.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("verification %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}
	return &v, nil
}

// IncrementVerificationAttempts bumps the attempt counter and returns the new value.
func (db *DB) IncrementVerificationAttempts(ctx context.Context, id string) (int64, error) {
	query := `UPDATE verifications SET attempts = attempts + 1 WHERE id = ?`
	if _, err := db.ExecContext(ctx, query, id); err != nil {
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}

	var attempts int64
	err := db.QueryRowContext(ctx, `SELECT attempts FROM verifications WHERE id = ?`, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("failed to read attempts: %w", err)
	}
	return attempts, nil
}

func (db *DB) MarkVerificationVerified(ctx context.Context, id string) error {
	query := `UPDATE verifications SET verified = 1 WHERE id = ?`
	result, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark verification verified: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("verification %s: %w", id, ErrNotFound)
	}
	return nil
}

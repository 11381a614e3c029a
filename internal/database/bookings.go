package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"matchwell/internal/models"
)

const bookingColumns = `id, match_id, person_id, person_name, phone, therapist_id, therapist_name, date(date), status, comment, created_at, updated_at, version`

func scanBooking(row interface{ Scan(...interface{}) error }) (*models.Booking, error) {
	var b models.Booking
	var dateStr string
	err := row.Scan(
		&b.ID, &b.MatchID, &b.PersonID, &b.PersonName, &b.Phone, &b.TherapistID, &b.TherapistName,
		&dateStr, &b.Status, &b.Comment, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	if d, err := time.Parse("2006-01-02", dateStr); err == nil {
		b.Date = d
	}
	return &b, nil
}

func (db *DB) GetBookedCount(ctx context.Context, therapistID int64, date time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE therapist_id = ? AND date(date) = ? AND status IN (?, ?)`
	var count int
	err := db.QueryRowContext(ctx, query, therapistID, date.Format("2006-01-02"),
		models.BookingPending, models.BookingConfirmed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get booked count: %w", err)
	}
	return count, nil
}

func (db *DB) CheckAvailability(ctx context.Context, therapistID int64, date time.Time) (bool, error) {
	booked, err := db.GetBookedCount(ctx, therapistID, date)
	if err != nil {
		return false, fmt.Errorf("failed to check availability: %w", err)
	}

	db.mu.RLock()
	t, ok := db.therapistsCache[therapistID]
	db.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("therapist not found in cache: %d", therapistID)
	}

	return int64(booked) < t.DailyCapacity, nil
}

// CreateBookingWithLock re-checks capacity and the one-active-booking-per-match
// invariant inside a transaction before inserting.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var active int
	queryActive := `SELECT COUNT(*) FROM bookings WHERE match_id = ? AND status IN (?, ?)`
	err = tx.QueryRowContext(ctx, queryActive, booking.MatchID,
		models.BookingPending, models.BookingConfirmed).Scan(&active)
	if err != nil {
		return fmt.Errorf("failed to check match bookings in tx: %w", err)
	}
	if active > 0 {
		return ErrDuplicateBooking
	}

	var booked int
	queryCount := `SELECT COUNT(*) FROM bookings WHERE therapist_id = ? AND date(date) = ? AND status IN (?, ?)`
	err = tx.QueryRowContext(ctx, queryCount, booking.TherapistID,
		booking.Date.Format("2006-01-02"), models.BookingPending, models.BookingConfirmed).Scan(&booked)
	if err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}

	db.mu.RLock()
	t, ok := db.therapistsCache[booking.TherapistID]
	db.mu.RUnlock()
	if !ok {
		return fmt.Errorf("therapist not found in cache: %d", booking.TherapistID)
	}
	if int64(booked) >= t.DailyCapacity {
		return ErrNotAvailable
	}

	queryInsert := `INSERT INTO bookings (
                match_id, person_id, person_name, phone, therapist_id, therapist_name,
                date, status, comment, created_at, updated_at, version
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := tx.ExecContext(ctx, queryInsert,
		booking.MatchID,
		booking.PersonID,
		booking.PersonName,
		booking.Phone,
		booking.TherapistID,
		booking.TherapistName,
		booking.Date.Format("2006-01-02"),
		booking.Status,
		booking.Comment,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// GetActiveBookingForMatch returns the match's pending or confirmed booking.
func (db *DB) GetActiveBookingForMatch(ctx context.Context, matchID int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE match_id = ? AND status IN (?, ?) LIMIT 1`
	b, err := scanBooking(db.QueryRowContext(ctx, query, matchID, models.BookingPending, models.BookingConfirmed))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("active booking for match %d: %w", matchID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active booking: %w", err)
	}
	return b, nil
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE date(date) >= ? AND date(date) <= ? ORDER BY date ASC`
	rows, err := db.QueryContext(ctx, query, startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// GetDailyBookings groups a period's bookings by YYYY-MM-DD.
func (db *DB) GetDailyBookings(ctx context.Context, startDate, endDate time.Time) (map[string][]*models.Booking, error) {
	bookings, err := db.GetBookingsByDateRange(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}

	daily := make(map[string][]*models.Booking)
	for _, b := range bookings {
		key := b.Date.Format("2006-01-02")
		daily[key] = append(daily[key], b)
	}
	return daily, nil
}

func (db *DB) GetAvailabilityForPeriod(ctx context.Context, therapistID int64, startDate time.Time, days int) ([]*models.Availability, error) {
	db.mu.RLock()
	t, ok := db.therapistsCache[therapistID]
	db.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("therapist not found in cache: %d", therapistID)
	}

	var availability []*models.Availability
	for i := 0; i < days; i++ {
		date := startDate.AddDate(0, 0, i)
		booked, err := db.GetBookedCount(ctx, therapistID, date)
		if err != nil {
			return nil, err
		}
		availability = append(availability, &models.Availability{
			Date:        date,
			TherapistID: therapistID,
			Booked:      int64(booked),
			Available:   t.DailyCapacity - int64(booked),
		})
	}
	return availability, nil
}

// CountBookingsByStatus returns status -> count for the dashboard.
func (db *DB) CountBookingsByStatus(ctx context.Context) (map[string]int64, error) {
	query := `SELECT status, COUNT(*) FROM bookings GROUP BY status`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
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

package models

import "time"

type Booking struct {
	ID            int64     `json:"id"`
	MatchID       int64     `json:"match_id"`
	PersonID      int64     `json:"person_id"`
	PersonName    string    `json:"person_name"`
	Phone         string    `json:"phone"`
	TherapistID   int64     `json:"therapist_id"`
	TherapistName string    `json:"therapist_name"`
	Date          time.Time `json:"date"`
	Status        string    `json:"status"` // pending, confirmed, completed, cancelled
	Comment       string    `json:"comment"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int64     `json:"version"`
}

// Active reports whether the booking still occupies a slot.
func (b *Booking) Active() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

package models

import "time"

// Match is a proposed pairing between a person and a therapist. A person has
// at most one non-terminal match; a match has at most one active booking.
type Match struct {
	ID            int64     `json:"id"`
	PersonID      int64     `json:"person_id"`
	TherapistID   int64     `json:"therapist_id"`
	TherapistName string    `json:"therapist_name"`
	Specialty     string    `json:"specialty"` // the requested specialty that produced the match
	Status        string    `json:"status"`    // proposed, accepted, declined, expired
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Terminal reports whether the match can no longer change state.
func (m *Match) Terminal() bool {
	return m.Status == MatchDeclined || m.Status == MatchExpired
}

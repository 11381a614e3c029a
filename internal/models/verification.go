package models

import "time"

// Verification is an SMS or email proof of contact ownership. Only the SHA-256
// hash of the code is stored.
type Verification struct {
	ID        string    `json:"id"` // uuid
	PersonID  int64     `json:"person_id"`
	Channel   string    `json:"channel"` // sms, email
	Contact   string    `json:"contact"` // phone or email the code was sent to
	CodeHash  string    `json:"-"`
	Attempts  int64     `json:"attempts"`
	Verified  bool      `json:"verified"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the code can no longer be checked.
func (v *Verification) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

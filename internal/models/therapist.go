package models

import "time"

// Therapist is a provider in the directory. DailyCapacity bounds bookings per
// day, WeeklyCapacity bounds open matches.
type Therapist struct {
	ID             int64     `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Specialties    []string  `json:"specialties" yaml:"specialties"`
	DailyCapacity  int64     `json:"daily_capacity" yaml:"daily_capacity"`
	WeeklyCapacity int64     `json:"weekly_capacity" yaml:"weekly_capacity"`
	SortOrder      int64     `json:"sort_order" yaml:"sort_order"`
	IsActive       bool      `json:"is_active" yaml:"is_active"`
	CreatedAt      time.Time `json:"created_at" yaml:"-"`
	UpdatedAt      time.Time `json:"updated_at" yaml:"-"`
}

// HasSpecialty reports whether the therapist covers the given specialty.
func (t *Therapist) HasSpecialty(name string) bool {
	for _, s := range t.Specialties {
		if s == name {
			return true
		}
	}
	return false
}

// Availability describes booked vs free slots for a therapist on a date.
type Availability struct {
	Date        time.Time `json:"date"`
	TherapistID int64     `json:"therapist_id"`
	Booked      int64     `json:"booked"`
	Available   int64     `json:"available"`
}

// AvailabilityInfo is the API-facing availability snapshot.
type AvailabilityInfo struct {
	TherapistName string `json:"therapist_name"`
	Available     bool   `json:"available"`
	BookedCount   int64  `json:"booked_count"`
	Total         int64  `json:"total"`
}

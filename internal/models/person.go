package models

import (
	"database/sql"
	"time"
)

// Person is a prospective client captured through the intake wizard.
type Person struct {
	ID             int64        `json:"id"`
	FirstName      string       `json:"first_name"`
	LastName       string       `json:"last_name"`
	Email          string       `json:"email"`
	Phone          string       `json:"phone"`
	Channel        string       `json:"channel"` // preferred contact channel: sms, email
	Status         string       `json:"status"`  // pending, confirmed, active, archived
	UTMSource      string       `json:"utm_source"`
	UTMCampaign    string       `json:"utm_campaign"`
	ConsentGiven   bool         `json:"consent_given"`
	ConsentGivenAt sql.NullTime `json:"consent_given_at"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// FullName joins first and last name, skipping an empty last name.
func (p *Person) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// personTransitions lists the allowed status edges.
var personTransitions = map[string][]string{
	PersonPending:   {PersonConfirmed, PersonArchived},
	PersonConfirmed: {PersonActive, PersonArchived},
	PersonActive:    {PersonArchived},
	PersonArchived:  {},
}

// CanTransitionPerson reports whether a person may move from one status to another.
func CanTransitionPerson(from, to string) bool {
	for _, next := range personTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

package models

import "time"

// FormSession is a server-persisted draft of in-progress wizard answers,
// keyed by a client-generated session id.
type FormSession struct {
	SessionID   string                 `json:"session_id"`
	Step        string                 `json:"step"`
	Answers     map[string]interface{} `json:"answers"`
	UTMSource   string                 `json:"utm_source,omitempty"`
	UTMCampaign string                 `json:"utm_campaign,omitempty"`
	PersonID    int64                  `json:"person_id,omitempty"` // set once the session was submitted
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Wizard steps in order.
const (
	StepContact    = "contact"
	StepConcerns   = "concerns"
	StepPreference = "preference"
	StepReview     = "review"
	StepSubmitted  = "submitted"
)

// WizardSteps is the canonical step ordering of the intake wizard.
var WizardSteps = []string{StepContact, StepConcerns, StepPreference, StepReview, StepSubmitted}

// ValidStep reports whether the step name is part of the wizard.
func ValidStep(step string) bool {
	for _, s := range WizardSteps {
		if s == step {
			return true
		}
	}
	return false
}

package models

import "time"

// FunnelEvent is one row of the append-only event log the admin stats
// aggregate over.
type FunnelEvent struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	Type        string    `json:"type"`
	UTMSource   string    `json:"utm_source,omitempty"`
	UTMCampaign string    `json:"utm_campaign,omitempty"`
	Payload     string    `json:"payload,omitempty"` // optional JSON blob
	CreatedAt   time.Time `json:"created_at"`
}

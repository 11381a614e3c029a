package models

import "time"

// DeliveryTask is a persisted outbox row for an outbound message. The worker
// drains pending tasks and hands them to a channel-specific sender.
type DeliveryTask struct {
	ID          int64      `json:"id"`
	Channel     string     `json:"channel"` // sms, email
	Recipient   string     `json:"recipient"`
	Subject     string     `json:"subject,omitempty"`
	Body        string     `json:"body"`
	Payload     string     `json:"payload,omitempty"` // JSON context (verification id etc.)
	Status      string     `json:"status"`            // pending, retry, completed, failed
	RetryCount  int64      `json:"retry_count"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}

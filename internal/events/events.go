package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventLeadCreated      = "lead_created"
	EventLeadVerified     = "lead_verified"
	EventMatchProposed    = "match_proposed"
	EventMatchAccepted    = "match_accepted"
	EventMatchDeclined    = "match_declined"
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingCompleted = "booking_completed"
)

// LeadEventPayload is the lead snapshot event consumers see.
type LeadEventPayload struct {
	PersonID    int64  `json:"person_id"`
	SessionID   string `json:"session_id,omitempty"`
	Status      string `json:"status"`
	UTMSource   string `json:"utm_source,omitempty"`
	UTMCampaign string `json:"utm_campaign,omitempty"`
}

// MatchEventPayload is the match snapshot event consumers see.
type MatchEventPayload struct {
	MatchID     int64  `json:"match_id"`
	PersonID    int64  `json:"person_id"`
	TherapistID int64  `json:"therapist_id"`
	SessionID   string `json:"session_id,omitempty"`
	Status      string `json:"status"`
}

// BookingEventPayload is the booking snapshot event consumers see.
type BookingEventPayload struct {
	BookingID   int64     `json:"booking_id"`
	MatchID     int64     `json:"match_id"`
	PersonID    int64     `json:"person_id"`
	TherapistID int64     `json:"therapist_id"`
	SessionID   string    `json:"session_id,omitempty"`
	Status      string    `json:"status"`
	Date        time.Time `json:"date"`
	ChangedBy   string    `json:"changed_by,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

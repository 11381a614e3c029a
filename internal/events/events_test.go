package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishNotifiesSubscribers(t *testing.T) {
	bus := NewEventBus()

	var got []*Event
	bus.Subscribe(EventLeadCreated, func(event *Event) error {
		got = append(got, event)
		return nil
	})
	bus.Subscribe(EventLeadCreated, func(event *Event) error {
		got = append(got, event)
		return nil
	})

	bus.Publish(&Event{Type: EventLeadCreated})
	assert.Len(t, got, 2)
}

func TestPublishIgnoresUnrelatedTypes(t *testing.T) {
	bus := NewEventBus()

	called := false
	bus.Subscribe(EventBookingCreated, func(event *Event) error {
		called = true
		return nil
	})

	bus.Publish(&Event{Type: EventLeadCreated})
	assert.False(t, called)
}

func TestPublishJSONCarriesPayload(t *testing.T) {
	bus := NewEventBus()

	var got LeadEventPayload
	bus.Subscribe(EventLeadVerified, func(event *Event) error {
		return json.Unmarshal(event.Payload, &got)
	})

	err := bus.PublishJSON(EventLeadVerified, LeadEventPayload{PersonID: 7, Status: "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.PersonID)
	assert.Equal(t, "confirmed", got.Status)
}

func TestPublishJSONOnNilBus(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventLeadCreated, LeadEventPayload{PersonID: 1}))
}

func TestHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewEventBus()

	second := false
	bus.Subscribe(EventMatchAccepted, func(event *Event) error {
		return errors.New("boom")
	})
	bus.Subscribe(EventMatchAccepted, func(event *Event) error {
		second = true
		return nil
	})

	bus.Publish(&Event{Type: EventMatchAccepted})
	assert.True(t, second)
}

func TestPublishSetsCreatedAt(t *testing.T) {
	bus := NewEventBus()

	ev := &Event{Type: EventBookingCancelled}
	bus.Publish(ev)
	assert.False(t, ev.CreatedAt.IsZero())
}

// Package notify holds the outbound message senders the delivery worker
// drives. Senders are keyed by channel; unknown channels fail the task.
package notify

import (
	"context"
	"fmt"

	"matchwell/internal/domain"
	"matchwell/internal/models"
)

// Dispatcher routes a delivery task to the sender for its channel.
type Dispatcher struct {
	senders map[string]domain.Sender
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{senders: make(map[string]domain.Sender)}
}

// Register binds a sender to a channel name.
func (d *Dispatcher) Register(channel string, sender domain.Sender) {
	d.senders[channel] = sender
}

func (d *Dispatcher) Send(ctx context.Context, task *models.DeliveryTask) error {
	sender, ok := d.senders[task.Channel]
	if !ok {
		return fmt.Errorf("no sender registered for channel %q", task.Channel)
	}
	return sender.Send(ctx, task)
}

package events

import (
	"context"
	"sync"
	"time"

	"minibus-console/internal/models"
)

type Type string

const (
	RiderAssigned       Type = "rider.assigned"
	RiderReassigned     Type = "rider.reassigned"
	RiderRemoved        Type = "rider.removed"
	PaymentUpdated      Type = "payment.updated"
	SubscriptionUpdated Type = "subscription.updated"
	SubscriptionExpired Type = "subscription.expired"
)

type Event struct {
	Type             Type                    `json:"type"`
	BusID            string                  `json:"busId"`
	RiderID          string                  `json:"riderId"`
	SubscriptionType models.SubscriptionType `json:"subscriptionType,omitempty"`
	PaymentStatus    models.PaymentStatus    `json:"paymentStatus,omitempty"`
	EndDate          *time.Time              `json:"endDate,omitempty"`
	OccurredAt       time.Time               `json:"occurredAt"`
}

// Publisher delivers domain events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

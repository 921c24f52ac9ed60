package booking

import (
	"context"
	"time"

	"lab_manager/model"
)

type EventType string

const (
	EventCreated      EventType = "booking.created"
	EventConfirmed    EventType = "booking.confirmed"
	EventCompleted    EventType = "booking.completed"
	EventCancelled    EventType = "booking.cancelled"
	EventRescheduled  EventType = "booking.rescheduled"
	EventStartingSoon EventType = "booking.starting_soon"
	EventOverdue      EventType = "booking.overdue"
)

type Event struct {
	Type       EventType     `json:"type"`
	Booking    model.Booking `json:"booking"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// Publisher delivers events after the owning transaction has committed. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

func eventForStatus(s model.BookingStatus) EventType {
	switch s {
	case model.BookingConfirmed:
		return EventConfirmed
	case model.BookingCompleted:
		return EventCompleted
	case model.BookingCancelled:
		return EventCancelled
	}
	return EventType("booking." + string(s))
}

// IdempotencyStore remembers which booking a client-supplied key produced, per user.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userId uint, key string) (uint, bool, error)
	Remember(ctx context.Context, userId uint, key string, bookingId uint) error
}

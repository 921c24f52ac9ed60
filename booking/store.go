package booking

import (
	"context"
	"time"

	"lab_manager/model"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 200
)

// Tx is one unit of work. Implementations roll back everything written through a Tx when the
// enclosing callback returns an error.
type Tx interface {
	GetLab(ctx context.Context, id uint) (*model.Lab, error)
	GetEquipment(ctx context.Context, id uint) (*model.Equipment, error)
	// LockBooking loads a booking and holds its row lock until the unit ends.
	LockBooking(ctx context.Context, id uint) (*model.Booking, error)
	// ActiveBookings returns pending and confirmed bookings in key's scope overlapping iv.
	ActiveBookings(ctx context.Context, key ResourceKey, iv Interval) ([]model.Booking, error)
	// BookingByIdempotencyKey finds the booking userId created with key, or ErrNoRecord.
	BookingByIdempotencyKey(ctx context.Context, userId uint, key string) (*model.Booking, error)
	CreateBooking(ctx context.Context, b *model.Booking) error
	SaveBooking(ctx context.Context, b *model.Booking) error
}

type Store interface {
	// WithResourceLock runs fn in a transaction that holds the lock for key. Concurrent calls for
	// the same key are serialized; a lock not acquired in time yields a KindLockTimeout error.
	WithResourceLock(ctx context.Context, key ResourceKey, fn func(tx Tx) error) error
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetBooking(ctx context.Context, id uint) (*model.Booking, error)
	ListBookings(ctx context.Context, f Filter) ([]model.Booking, int64, error)
}

type Filter struct {
	UserId      *uint
	LabId       *uint
	EquipmentId *uint
	Status      model.BookingStatus
	From        *time.Time
	To          *time.Time
	Page        int
	Limit       int
}

// Normalize clamps pagination to sane bounds.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	return f
}

func (f Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Matches applies the row filters, ignoring pagination. From/To select bookings overlapping the range.
func (f Filter) Matches(b *model.Booking) bool {
	if f.UserId != nil && b.UserId != *f.UserId {
		return false
	}
	if f.LabId != nil && (b.LabId == nil || *b.LabId != *f.LabId) {
		return false
	}
	if f.EquipmentId != nil && (b.EquipmentId == nil || *b.EquipmentId != *f.EquipmentId) {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.From != nil && !b.EndTime.After(*f.From) {
		return false
	}
	if f.To != nil && !b.StartTime.Before(*f.To) {
		return false
	}
	return true
}

package booking

import (
	"context"
	"fmt"
	"time"

	"lab_manager/model"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func IntervalOf(b *model.Booking) Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

// Overlaps reports whether the intervals share an instant. Touching endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i Interval) String() string {
	return i.Start.UTC().Format(time.RFC3339) + "/" + i.End.UTC().Format(time.RFC3339)
}

// ActiveStatuses hold their slot; bookings in any other status never conflict.
var ActiveStatuses = []model.BookingStatus{model.BookingPending, model.BookingConfirmed}

func IsActive(s model.BookingStatus) bool {
	return s == model.BookingPending || s == model.BookingConfirmed
}

// ResourceKey scopes conflict detection. Lab and equipment scopes are independent: a lab key only
// matches lab bookings, even though equipment bookings also carry a lab id.
type ResourceKey struct {
	Type model.BookingType
	ID   uint
}

func (k ResourceKey) String() string {
	return fmt.Sprintf("%s:%d", k.Type, k.ID)
}

// Matches reports whether b falls in the key's scope.
func (k ResourceKey) Matches(b *model.Booking) bool {
	if b.BookingType != k.Type {
		return false
	}
	switch k.Type {
	case model.BookingTypeLab:
		return b.LabId != nil && *b.LabId == k.ID
	case model.BookingTypeEquipment:
		return b.EquipmentId != nil && *b.EquipmentId == k.ID
	}
	return false
}

// KeyOf returns the conflict scope of b.
func KeyOf(b *model.Booking) (ResourceKey, error) {
	switch b.BookingType {
	case model.BookingTypeLab:
		if b.LabId == nil {
			return ResourceKey{}, newError(KindValidation, "labId is required for lab bookings")
		}
		return ResourceKey{Type: model.BookingTypeLab, ID: *b.LabId}, nil
	case model.BookingTypeEquipment:
		if b.EquipmentId == nil {
			return ResourceKey{}, newError(KindValidation, "equipmentId is required for equipment bookings")
		}
		return ResourceKey{Type: model.BookingTypeEquipment, ID: *b.EquipmentId}, nil
	}
	return ResourceKey{}, newError(KindValidation, "unknown booking type %q", b.BookingType)
}

// FindConflict returns the earliest active booking among candidates that is in key's scope and
// overlaps iv. excludeID skips a booking being re-validated against itself.
func FindConflict(candidates []model.Booking, key ResourceKey, iv Interval, excludeID uint) *model.Booking {
	var found *model.Booking
	for i := range candidates {
		c := &candidates[i]
		if excludeID != 0 && c.ID == excludeID {
			continue
		}
		if !IsActive(c.Status) || !key.Matches(c) || !iv.Overlaps(IntervalOf(c)) {
			continue
		}
		if found == nil || c.StartTime.Before(found.StartTime) {
			found = c
		}
	}
	return found
}

// ConflictDetector looks up overlapping bookings through a Tx. The caller must hold the resource
// lock for key, otherwise a concurrent insert can slip in after the read.
type ConflictDetector struct{}

func (ConflictDetector) Find(ctx context.Context, tx Tx, key ResourceKey, iv Interval, excludeID uint) (*model.Booking, error) {
	candidates, err := tx.ActiveBookings(ctx, key, iv)
	if err != nil {
		return nil, fmt.Errorf("load bookings for %s: %w", key, err)
	}
	return FindConflict(candidates, key, iv, excludeID), nil
}

package booking

import (
	"slices"

	"lab_manager/constants"
	"lab_manager/model"
)

var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.BookingPending:   {model.BookingConfirmed, model.BookingCancelled},
	model.BookingConfirmed: {model.BookingCompleted, model.BookingCancelled},
	model.BookingCancelled: {},
	model.BookingCompleted: {},
}

func ParseStatus(s string) (model.BookingStatus, error) {
	status := model.BookingStatus(s)
	if _, ok := transitions[status]; !ok {
		return "", newError(KindValidation, "unknown booking status %q", s)
	}
	return status, nil
}

func CanTransition(from, to model.BookingStatus) bool {
	return slices.Contains(transitions[from], to)
}

func IsTerminal(s model.BookingStatus) bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// Actor is the user on whose behalf an operation runs.
type Actor struct {
	UserId uint
	Role   string
}

// Elevated actors may drive any legal transition on any booking.
func (a Actor) Elevated() bool {
	return a.Role == constants.ROLE_ADMIN || a.Role == constants.ROLE_LAB_MANAGER
}

func (a Actor) Owns(b *model.Booking) bool {
	return a.UserId != 0 && a.UserId == b.UserId
}

// Transition moves b to status to on behalf of actor. The edge is checked before authority, and b
// is left untouched on error.
func Transition(b *model.Booking, to model.BookingStatus, actor Actor) error {
	if !CanTransition(b.Status, to) {
		return newError(KindIllegalTransition, "cannot move booking from %s to %s", b.Status, to)
	}
	if !actor.Elevated() {
		if !actor.Owns(b) {
			return newError(KindForbidden, "booking %d belongs to another user", b.ID)
		}
		if to != model.BookingCancelled {
			return newError(KindForbidden, "only lab staff can mark a booking %s", to)
		}
	}
	b.Status = to
	return nil
}

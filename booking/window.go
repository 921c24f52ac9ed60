package booking

import "time"

const DefaultGraceWindow = 5 * time.Minute

// WindowOptions tunes time window validation. Zero Granularity and MaxDuration disable those checks.
// Slots are aligned to wall clock time in Location, UTC when nil.
type WindowOptions struct {
	GraceWindow time.Duration
	Granularity time.Duration
	MaxDuration time.Duration
	Location    *time.Location
}

func DefaultWindowOptions() WindowOptions {
	return WindowOptions{GraceWindow: DefaultGraceWindow}
}

type WindowValidator struct {
	opts WindowOptions
}

func NewWindowValidator(opts WindowOptions) *WindowValidator {
	if opts.GraceWindow < 0 {
		opts.GraceWindow = 0
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &WindowValidator{opts: opts}
}

// Validate checks the half-open window [start, end) against now.
func (v *WindowValidator) Validate(start, end, now time.Time) error {
	if start.IsZero() || end.IsZero() {
		return newError(KindInvalidRange, "start and end time are required")
	}
	if !end.After(start) {
		return newError(KindInvalidRange, "end time must be after start time")
	}
	if start.Before(now.Add(-v.opts.GraceWindow)) {
		return newError(KindInPast, "start time %s is in the past", start.UTC().Format(time.RFC3339))
	}
	if g := v.opts.Granularity; g > 0 && (!aligned(start, g, v.opts.Location) || !aligned(end, g, v.opts.Location)) {
		return newError(KindInvalidRange, "start and end time must align to %s slots", g)
	}
	if limit := v.opts.MaxDuration; limit > 0 && end.Sub(start) > limit {
		return newError(KindInvalidRange, "booking may not last longer than %s", limit)
	}
	return nil
}

// aligned reports whether t's wall clock reading in loc falls on a multiple of g since midnight.
func aligned(t time.Time, g time.Duration, loc *time.Location) bool {
	local := t.In(loc)
	wall := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
	return wall%g == 0
}

package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowValidator(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		opts  WindowOptions
		start time.Time
		end   time.Time
		want  error
	}{
		{"future window", DefaultWindowOptions(), now.Add(time.Hour), now.Add(2 * time.Hour), nil},
		{"end equals start", DefaultWindowOptions(), now.Add(time.Hour), now.Add(time.Hour), ErrInvalidRange},
		{"end before start", DefaultWindowOptions(), now.Add(2 * time.Hour), now.Add(time.Hour), ErrInvalidRange},
		{"zero start", DefaultWindowOptions(), time.Time{}, now.Add(time.Hour), ErrInvalidRange},
		{"inside grace window", DefaultWindowOptions(), now.Add(-4 * time.Minute), now.Add(time.Hour), nil},
		{"before grace window", DefaultWindowOptions(), now.Add(-6 * time.Minute), now.Add(time.Hour), ErrInPast},
		{"no grace", WindowOptions{}, now.Add(-time.Second), now.Add(time.Hour), ErrInPast},
		{"aligned to slots", WindowOptions{Granularity: 30 * time.Minute}, now.Add(30 * time.Minute), now.Add(90 * time.Minute), nil},
		{"misaligned start", WindowOptions{Granularity: 30 * time.Minute}, now.Add(40 * time.Minute), now.Add(90 * time.Minute), ErrInvalidRange},
		{"misaligned end", WindowOptions{Granularity: 30 * time.Minute}, now.Add(30 * time.Minute), now.Add(95 * time.Minute), ErrInvalidRange},
		{"at max duration", WindowOptions{MaxDuration: 4 * time.Hour}, now.Add(time.Hour), now.Add(5 * time.Hour), nil},
		{"over max duration", WindowOptions{MaxDuration: 4 * time.Hour}, now.Add(time.Hour), now.Add(6 * time.Hour), ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewWindowValidator(tt.opts).Validate(tt.start, tt.end, now)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewWindowValidator_NegativeGraceClamped(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	v := NewWindowValidator(WindowOptions{GraceWindow: -time.Hour})

	assert.NoError(t, v.Validate(now, now.Add(time.Hour), now))
	assert.ErrorIs(t, v.Validate(now.Add(-time.Second), now.Add(time.Hour), now), ErrInPast)
}

func TestWindowValidator_AlignsInLocation(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*60*60+30*60)
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, kolkata)
	hourly := WindowOptions{Granularity: time.Hour, Location: kolkata}

	local := NewWindowValidator(hourly)
	assert.NoError(t, local.Validate(now.Add(time.Hour), now.Add(3*time.Hour), now))
	assert.ErrorIs(t, local.Validate(now.Add(30*time.Minute), now.Add(90*time.Minute), now), ErrInvalidRange)

	// The same local hour is half past in UTC.
	utc := NewWindowValidator(WindowOptions{Granularity: time.Hour})
	assert.ErrorIs(t, utc.Validate(now.Add(time.Hour), now.Add(3*time.Hour), now), ErrInvalidRange)
	assert.NoError(t, utc.Validate(now.Add(30*time.Minute), now.Add(90*time.Minute), now))
}

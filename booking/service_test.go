package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lab_manager/constants"
	"lab_manager/model"
)

var (
	student  = Actor{UserId: 100, Role: constants.ROLE_STUDENT}
	student2 = Actor{UserId: 101, Role: constants.ROLE_STUDENT}
	admin    = Actor{UserId: 1, Role: constants.ROLE_ADMIN}
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]uint
}

func (m *memIdempotency) Lookup(_ context.Context, userId uint, key string) (uint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[idemKey(userId, key)]
	return id, ok, nil
}

func (m *memIdempotency) Remember(_ context.Context, userId uint, key string, bookingId uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[idemKey(userId, key)] = bookingId
	return nil
}

func idemKey(userId uint, key string) string {
	return fmt.Sprintf("%d:%s", userId, key)
}

type fixture struct {
	store  *MemoryStore
	svc    *Service
	events *recordingPublisher
	logs   *logtest.Hook
	now    time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:  NewMemoryStore(2 * time.Second),
		events: &recordingPublisher{},
		now:    time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
	f.store.PutLab(model.Lab{DTO: model.DTO{ID: 1}, Name: "Wet Lab", IsActive: true})
	f.store.PutLab(model.Lab{DTO: model.DTO{ID: 2}, Name: "Clean Room", IsActive: false})
	f.store.PutLab(model.Lab{DTO: model.DTO{ID: 3}, Name: "Optics Lab", IsActive: true})
	f.store.PutEquipment(model.Equipment{DTO: model.DTO{ID: 10}, Name: "Centrifuge", LabId: 1, IsActive: true, Status: model.EquipmentAvailable})
	f.store.PutEquipment(model.Equipment{DTO: model.DTO{ID: 11}, Name: "Microscope", LabId: 1, IsActive: true, Status: model.EquipmentMaintenance})
	f.store.PutEquipment(model.Equipment{DTO: model.DTO{ID: 12}, Name: "Spectrometer", LabId: 1, IsActive: false, Status: model.EquipmentAvailable})

	logger, hook := logtest.NewNullLogger()
	f.logs = hook
	base := []Option{
		WithClock(func() time.Time { return f.now }),
		WithPublisher(f.events),
		WithLogger(logger),
	}
	f.svc = NewService(f.store, append(base, opts...)...)
	return f
}

// at returns hour:minute on the fixture's day.
func (f *fixture) at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func (f *fixture) labInput(user Actor, labId uint, start, end time.Time) CreateInput {
	return CreateInput{UserId: user.UserId, BookingType: model.BookingTypeLab, LabId: uintPtr(labId), StartTime: start, EndTime: end}
}

func (f *fixture) equipmentInput(user Actor, labId, equipmentId uint, start, end time.Time) CreateInput {
	return CreateInput{
		UserId:      user.UserId,
		BookingType: model.BookingTypeEquipment,
		LabId:       uintPtr(labId),
		EquipmentId: uintPtr(equipmentId),
		StartTime:   start,
		EndTime:     end,
	}
}

func (f *fixture) count(t *testing.T) int64 {
	t.Helper()
	_, total, err := f.store.ListBookings(context.Background(), Filter{})
	require.NoError(t, err)
	return total
}

func TestCreateBooking_LabAndEquipmentScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateBooking(ctx, f.labInput(student, 1, f.at(9, 0), f.at(11, 0)))
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, first.Status)
	assert.Len(t, first.PublicCode, 16)
	assert.Equal(t, f.now, first.CreatedAt)

	// Equipment inside the same lab is a separate scope.
	_, err = f.svc.CreateBooking(ctx, f.equipmentInput(student2, 1, 10, f.at(10, 0), f.at(12, 0)))
	require.NoError(t, err)

	_, err = f.svc.CreateBooking(ctx, f.labInput(student2, 1, f.at(10, 0), f.at(12, 0)))
	require.ErrorIs(t, err, ErrConflict)
	var bookingErr *Error
	require.True(t, errors.As(err, &bookingErr))
	assert.Equal(t, first.ID, bookingErr.ConflictID)
	assert.Equal(t, &Interval{Start: f.at(9, 0), End: f.at(11, 0)}, bookingErr.Conflict)

	_, err = f.svc.CreateBooking(ctx, f.labInput(student2, 1, f.at(11, 0), f.at(12, 0)))
	require.NoError(t, err, "touching intervals do not overlap")

	_, err = f.svc.CreateBooking(ctx, f.labInput(student2, 3, f.at(9, 0), f.at(11, 0)))
	require.NoError(t, err, "different labs never conflict")

	assert.Equal(t, int64(4), f.count(t))
}

func TestCreateBooking_ConcurrentCreatorsOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	const creators = 25

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func(user uint) {
			defer wg.Done()
			<-start
			in := f.labInput(Actor{UserId: user, Role: constants.ROLE_STUDENT}, 1, f.at(14, 0), f.at(15, 0))
			_, err := f.svc.CreateBooking(context.Background(), in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(uint(200 + i))
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, creators-1, conflicts)
	assert.Equal(t, int64(1), f.count(t))
}

func TestCreateBooking_TimeWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.labInput(student, 1, f.now.Add(-10*time.Minute), f.now.Add(time.Hour)))
	assert.ErrorIs(t, err, ErrInPast)

	_, err = f.svc.CreateBooking(ctx, f.labInput(student, 1, f.at(9, 0), f.at(9, 0)))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = f.svc.CreateBooking(ctx, f.labInput(student, 1, f.now.Add(-2*time.Minute), f.now.Add(time.Hour)))
	assert.NoError(t, err, "start inside the grace window is accepted")

	assert.Equal(t, int64(1), f.count(t))
}

func TestCreateBooking_WindowOptions(t *testing.T) {
	f := newFixture(t, WithWindow(WindowOptions{Granularity: 30 * time.Minute, MaxDuration: 2 * time.Hour}))
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.labInput(student, 1, f.at(9, 10), f.at(10, 0)))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = f.svc.CreateBooking(ctx, f.labInput(student, 1, f.at(9, 0), f.at(12, 0)))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = f.svc.CreateBooking(ctx, f.labInput(student, 1, f.at(9, 30), f.at(11, 30)))
	assert.NoError(t, err)
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newFixture(t)
	start, end := f.at(9, 0), f.at(10, 0)

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"missing user", CreateInput{BookingType: model.BookingTypeLab, LabId: uintPtr(1), StartTime: start, EndTime: end}},
		{"lab booking with equipment", CreateInput{UserId: 1, BookingType: model.BookingTypeLab, LabId: uintPtr(1), EquipmentId: uintPtr(10), StartTime: start, EndTime: end}},
		{"lab booking without lab", CreateInput{UserId: 1, BookingType: model.BookingTypeLab, StartTime: start, EndTime: end}},
		{"equipment booking without lab", CreateInput{UserId: 1, BookingType: model.BookingTypeEquipment, EquipmentId: uintPtr(10), StartTime: start, EndTime: end}},
		{"equipment booking without equipment", CreateInput{UserId: 1, BookingType: model.BookingTypeEquipment, LabId: uintPtr(1), StartTime: start, EndTime: end}},
		{"unknown type", CreateInput{UserId: 1, BookingType: "room", LabId: uintPtr(1), StartTime: start, EndTime: end}},
		{"purpose too long", CreateInput{UserId: 1, BookingType: model.BookingTypeLab, LabId: uintPtr(1), StartTime: start, EndTime: end, Purpose: strings.Repeat("x", MaxPurposeLength+1)}},
		{"equipment from another lab", f.equipmentInput(student, 3, 10, start, end)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateBooking(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Zero(t, f.count(t))
}

func TestCreateBooking_ResourceChecks(t *testing.T) {
	f := newFixture(t)
	start, end := f.at(9, 0), f.at(10, 0)

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"unknown lab", f.labInput(student, 99, start, end), ErrResourceNotFound},
		{"inactive lab", f.labInput(student, 2, start, end), ErrResourceInactive},
		{"unknown equipment", f.equipmentInput(student, 1, 99, start, end), ErrResourceNotFound},
		{"equipment in maintenance", f.equipmentInput(student, 1, 11, start, end), ErrResourceUnavailable},
		{"inactive equipment", f.equipmentInput(student, 1, 12, start, end), ErrResourceInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateBooking(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, f.count(t))
}

func TestCreateBooking_LockTimeout(t *testing.T) {
	f := newFixture(t)
	f.store.lockTimeout = 50 * time.Millisecond

	held := make(chan struct{})
	done := make(chan struct{})
	finished := make(chan error, 1)
	go func() {
		finished <- f.store.WithResourceLock(context.Background(), ResourceKey{Type: model.BookingTypeLab, ID: 1}, func(Tx) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	_, err := f.svc.CreateBooking(context.Background(), f.labInput(student, 1, f.at(9, 0), f.at(10, 0)))
	close(done)
	require.NoError(t, <-finished)
	assert.ErrorIs(t, err, ErrLockTimeout)

	_, err = f.svc.CreateBooking(context.Background(), f.labInput(student, 3, f.at(9, 0), f.at(10, 0)))
	assert.NoError(t, err, "other resources are not blocked")
}

func TestCreateBooking_Idempotency(t *testing.T) {
	f := newFixture(t, WithIdempotency(&memIdempotency{keys: make(map[string]uint)}))
	in := f.labInput(student, 1, f.at(9, 0), f.at(10, 0))
	in.IdempotencyKey = "req-1"

	first, err := f.svc.CreateBooking(context.Background(), in)
	require.NoError(t, err)
	again, err := f.svc.CreateBooking(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, int64(1), f.count(t))
	assert.Equal(t, []EventType{EventCreated}, f.events.types())

	other := f.labInput(student2, 1, f.at(9, 0), f.at(10, 0))
	other.IdempotencyKey = "req-1"
	_, err = f.svc.CreateBooking(context.Background(), other)
	assert.ErrorIs(t, err, ErrConflict, "keys are scoped per user")
}

// stallingIdempotency holds Remember until released, leaving the cache empty after the first
// create has already committed.
type stallingIdempotency struct {
	memIdempotency
	entered chan struct{}
	release chan struct{}
}

func (m *stallingIdempotency) Remember(ctx context.Context, userId uint, key string, bookingId uint) error {
	close(m.entered)
	<-m.release
	return m.memIdempotency.Remember(ctx, userId, key, bookingId)
}

func TestCreateBooking_RetryBeforeKeyIsCached(t *testing.T) {
	idem := &stallingIdempotency{
		memIdempotency: memIdempotency{keys: make(map[string]uint)},
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	f := newFixture(t, WithIdempotency(idem))
	in := f.labInput(student, 1, f.at(9, 0), f.at(10, 0))
	in.IdempotencyKey = "req-1"

	type result struct {
		b   *model.Booking
		err error
	}
	done := make(chan result, 1)
	go func() {
		b, err := f.svc.CreateBooking(context.Background(), in)
		done <- result{b, err}
	}()
	<-idem.entered

	retry, err := f.svc.CreateBooking(context.Background(), in)
	close(idem.release)
	first := <-done

	require.NoError(t, first.err)
	require.NoError(t, err)
	assert.Equal(t, first.b.ID, retry.ID)
	assert.Equal(t, int64(1), f.count(t))
	assert.Equal(t, []EventType{EventCreated}, f.events.types())
}

func TestCreateBooking_IdempotencyWithoutCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.labInput(student, 1, f.at(9, 0), f.at(10, 0))
	in.IdempotencyKey = "req-7"

	first, err := f.svc.CreateBooking(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, first.IdempotencyKey)
	assert.Equal(t, "req-7", *first.IdempotencyKey)

	again, err := f.svc.CreateBooking(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	elsewhere := f.labInput(student, 3, f.at(9, 0), f.at(10, 0))
	elsewhere.IdempotencyKey = "req-7"
	moved, err := f.svc.CreateBooking(ctx, elsewhere)
	require.NoError(t, err)
	assert.Equal(t, first.ID, moved.ID, "a reused key never yields a second booking")
	assert.Equal(t, int64(1), f.count(t))
}

func TestStatusChanges_StudentAndAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, f.labInput(student, 1, f.at(9, 0), f.at(10, 0)))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, b.ID, model.BookingConfirmed, student)
	require.ErrorIs(t, err, ErrForbidden)

	f.now = f.now.Add(time.Minute)
	confirmed, err := f.svc.UpdateStatus(ctx, b.ID, model.BookingConfirmed, admin)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, confirmed.Status)
	assert.Equal(t, f.now, confirmed.UpdatedAt)

	_, err = f.svc.Cancel(ctx, b.ID, student2)
	require.ErrorIs(t, err, ErrForbidden)

	f.now = f.now.Add(time.Minute)
	cancelled, err := f.svc.Cancel(ctx, b.ID, student)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	cancelledAt := cancelled.UpdatedAt

	f.now = f.now.Add(time.Minute)
	_, err = f.svc.Cancel(ctx, b.ID, student)
	require.ErrorIs(t, err, ErrAlreadyTerminal)

	stored, err := f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, stored.Status)
	assert.Equal(t, cancelledAt, stored.UpdatedAt)

	assert.Equal(t, []EventType{EventCreated, EventConfirmed, EventCancelled}, f.events.types())

	// The freed slot can be booked again.
	_, err = f.svc.CreateBooking(ctx, f.labInput(student2, 1, f.at(9, 0), f.at(10, 0)))
	assert.NoError(t, err)
}

func TestUpdateStatus_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.svc.CreateBooking(ctx, f.labInput(student, 1, f.at(9, 0), f.at(10, 0)))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, b.ID, model.BookingCompleted, admin)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = f.svc.UpdateStatus(ctx, b.ID, model.BookingPending, admin)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = f.svc.UpdateStatus(ctx, b.ID, "archived", admin)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.UpdateStatus(ctx, 999, model.BookingConfirmed, admin)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Cancel(ctx, 999, admin)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.UpdateStatus(ctx, b.ID, model.BookingConfirmed, admin)
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, b.ID, model.BookingCompleted, admin)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, b.ID, admin)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
	_, err = f.svc.UpdateStatus(ctx, b.ID, model.BookingCancelled, admin)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, f.labInput(student, 1, f.at(9, 0), f.at(10, 0)))
	require.NoError(t, err)
	_, err = f.svc.CreateBooking(ctx, f.labInput(student2, 1, f.at(11, 0), f.at(12, 0)))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, b.ID, model.BookingConfirmed, admin)
	require.NoError(t, err)

	_, err = f.svc.Reschedule(ctx, b.ID, RescheduleInput{StartTime: f.at(10, 30), EndTime: f.at(11, 30)}, student)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Reschedule(ctx, b.ID, RescheduleInput{StartTime: f.at(9, 30), EndTime: f.at(10, 30)}, student2)
	assert.ErrorIs(t, err, ErrForbidden)

	purpose := "  calibration run "
	moved, err := f.svc.Reschedule(ctx, b.ID, RescheduleInput{StartTime: f.at(9, 30), EndTime: f.at(10, 30), Purpose: &purpose}, student)
	require.NoError(t, err, "a booking never conflicts with itself")
	assert.Equal(t, f.at(9, 30), moved.StartTime)
	assert.Equal(t, model.BookingConfirmed, moved.Status)
	assert.Equal(t, "calibration run", moved.Purpose)

	_, err = f.svc.Reschedule(ctx, b.ID, RescheduleInput{StartTime: f.now.Add(-time.Hour), EndTime: f.at(10, 30)}, student)
	assert.ErrorIs(t, err, ErrInPast)

	_, err = f.svc.Cancel(ctx, b.ID, student)
	require.NoError(t, err)
	_, err = f.svc.Reschedule(ctx, b.ID, RescheduleInput{StartTime: f.at(13, 0), EndTime: f.at(14, 0)}, student)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)

	_, err = f.svc.Reschedule(ctx, 999, RescheduleInput{StartTime: f.at(13, 0), EndTime: f.at(14, 0)}, admin)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Contains(t, f.events.types(), EventRescheduled)
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine, err := f.svc.CreateBooking(ctx, f.labInput(student, 1, f.at(9, 0), f.at(10, 0)))
	require.NoError(t, err)
	_, err = f.svc.CreateBooking(ctx, f.labInput(student, 3, f.at(13, 0), f.at(14, 0)))
	require.NoError(t, err)
	theirs, err := f.svc.CreateBooking(ctx, f.equipmentInput(student2, 1, 10, f.at(8, 0), f.at(9, 0)))
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, mine.ID, student)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	_, err = f.svc.Get(ctx, theirs.ID, student)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get(ctx, theirs.ID, admin)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, 999, admin)
	assert.ErrorIs(t, err, ErrNotFound)

	rows, total, err := f.svc.List(ctx, Filter{UserId: uintPtr(student2.UserId)}, student)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "students only ever see their own bookings")
	for _, r := range rows {
		assert.Equal(t, student.UserId, r.UserId)
	}
	assert.True(t, rows[0].StartTime.Before(rows[1].StartTime))

	rows, total, err = f.svc.List(ctx, Filter{LabId: uintPtr(1)}, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, theirs.ID, rows[0].ID)

	from, to := f.at(12, 0), f.at(15, 0)
	_, total, err = f.svc.List(ctx, Filter{From: &from, To: &to}, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	rows, total, err = f.svc.List(ctx, Filter{Page: 2, Limit: 2}, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, rows, 1)

	_, _, err = f.svc.List(ctx, Filter{From: &to, To: &from}, admin)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("redis down")

	b, err := f.svc.CreateBooking(context.Background(), f.labInput(student, 1, f.at(9, 0), f.at(10, 0)))
	require.NoError(t, err)
	assert.NotZero(t, b.ID)

	entry := f.logs.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "publish booking event failed", entry.Message)
}

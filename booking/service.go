package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lab_manager/model"
)

const (
	DefaultTxTimeout = 10 * time.Second
	MaxPurposeLength = 500
)

type Clock func() time.Time

type CreateInput struct {
	UserId      uint
	BookingType model.BookingType
	LabId       *uint
	EquipmentId *uint
	StartTime   time.Time
	EndTime     time.Time
	Purpose     string
	// Optional. A retried request carrying the same key returns the booking the first one created.
	IdempotencyKey string
}

type RescheduleInput struct {
	StartTime time.Time
	EndTime   time.Time
	Purpose   *string
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithWindow(opts WindowOptions) Option {
	return func(s *Service) { s.window = NewWindowValidator(opts) }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithIdempotency(store IdempotencyStore) Option {
	return func(s *Service) { s.idempotency = store }
}

func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) { s.txTimeout = d }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

// Service creates bookings and drives them through their lifecycle. It keeps no booking state of
// its own; every decision is made against the Store inside a transaction.
type Service struct {
	store       Store
	window      *WindowValidator
	detector    ConflictDetector
	clock       Clock
	publisher   Publisher
	idempotency IdempotencyStore
	txTimeout   time.Duration
	log         logrus.FieldLogger
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		window:    NewWindowValidator(DefaultWindowOptions()),
		clock:     time.Now,
		publisher: nopPublisher{},
		txTimeout: DefaultTxTimeout,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateBooking(ctx context.Context, in CreateInput) (*model.Booking, error) {
	key, err := validateCreate(in)
	if err != nil {
		return nil, err
	}

	if prior, ok := s.cachedReplay(ctx, in); ok {
		return prior, nil
	}

	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	iv := Interval{Start: in.StartTime, End: in.EndTime}
	b := &model.Booking{
		PublicCode:  newPublicCode(),
		UserId:      in.UserId,
		BookingType: in.BookingType,
		LabId:       in.LabId,
		EquipmentId: in.EquipmentId,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		Status:      model.BookingPending,
		Purpose:     strings.TrimSpace(in.Purpose),
	}
	if in.IdempotencyKey != "" {
		idemKey := in.IdempotencyKey
		b.IdempotencyKey = &idemKey
	}

	var replayed *model.Booking
	err = s.store.WithResourceLock(txCtx, key, func(tx Tx) error {
		if in.IdempotencyKey != "" {
			prior, err := tx.BookingByIdempotencyKey(txCtx, in.UserId, in.IdempotencyKey)
			if err == nil {
				replayed = prior
				return nil
			}
			if !errors.Is(err, ErrNoRecord) {
				return err
			}
		}
		if err := s.checkResources(txCtx, tx, in.BookingType, in.LabId, in.EquipmentId); err != nil {
			return err
		}
		now := s.clock()
		if err := s.window.Validate(in.StartTime, in.EndTime, now); err != nil {
			return err
		}
		existing, err := s.detector.Find(txCtx, tx, key, iv, 0)
		if err != nil {
			return err
		}
		if existing != nil {
			return conflictError(existing)
		}
		b.CreatedAt, b.UpdatedAt = now, now
		return tx.CreateBooking(txCtx, b)
	})
	if err != nil {
		// The same key may have won on another resource's lock; the unique key rejects the loser.
		if errors.Is(err, ErrConflict) && in.IdempotencyKey != "" {
			if prior, ok := s.storedReplay(ctx, in); ok {
				return prior, nil
			}
		}
		return nil, s.fail("create booking", key, err)
	}
	if replayed != nil {
		s.log.WithField("booking_id", replayed.ID).Info("idempotent create replayed")
		return replayed, nil
	}

	if s.idempotency != nil && in.IdempotencyKey != "" {
		if err := s.idempotency.Remember(ctx, in.UserId, in.IdempotencyKey, b.ID); err != nil {
			s.log.WithError(err).WithField("booking_id", b.ID).Warn("remember idempotency key failed")
		}
	}
	s.log.WithFields(logrus.Fields{"booking_id": b.ID, "resource": key.String()}).Info("booking created")
	s.publish(ctx, EventCreated, b)
	return b, nil
}

// UpdateStatus moves a booking along the lifecycle graph.
func (s *Service) UpdateStatus(ctx context.Context, id uint, to model.BookingStatus, actor Actor) (*model.Booking, error) {
	if _, err := ParseStatus(string(to)); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, to, actor, false)
}

// Cancel is UpdateStatus(cancelled) that reports AlreadyTerminal instead of IllegalTransition
// when the booking has already finished.
func (s *Service) Cancel(ctx context.Context, id uint, actor Actor) (*model.Booking, error) {
	return s.transition(ctx, id, model.BookingCancelled, actor, true)
}

func (s *Service) transition(ctx context.Context, id uint, to model.BookingStatus, actor Actor, cancelling bool) (*model.Booking, error) {
	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	var updated *model.Booking
	err := s.store.InTx(txCtx, func(tx Tx) error {
		b, err := lockBooking(txCtx, tx, id)
		if err != nil {
			return err
		}
		if cancelling {
			if !actor.Elevated() && !actor.Owns(b) {
				return newError(KindForbidden, "booking %d belongs to another user", b.ID)
			}
			if IsTerminal(b.Status) {
				return newError(KindAlreadyTerminal, "booking %d is already %s", b.ID, b.Status)
			}
		}
		if err := Transition(b, to, actor); err != nil {
			return err
		}
		b.UpdatedAt = s.clock()
		if err := tx.SaveBooking(txCtx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, s.fail("update booking status", ResourceKey{}, err)
	}

	s.log.WithFields(logrus.Fields{"booking_id": updated.ID, "status": updated.Status}).Info("booking status changed")
	s.publish(ctx, eventForStatus(updated.Status), updated)
	return updated, nil
}

// Reschedule moves a non-terminal booking to a new window on the same resource. The booking keeps
// its status and is excluded from its own conflict check.
func (s *Service) Reschedule(ctx context.Context, id uint, in RescheduleInput, actor Actor) (*model.Booking, error) {
	if in.Purpose != nil && len(*in.Purpose) > MaxPurposeLength {
		return nil, newError(KindValidation, "purpose must be at most %d characters", MaxPurposeLength)
	}

	current, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	key, err := KeyOf(current)
	if err != nil {
		return nil, err
	}

	txCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	iv := Interval{Start: in.StartTime, End: in.EndTime}
	var updated *model.Booking
	err = s.store.WithResourceLock(txCtx, key, func(tx Tx) error {
		b, err := lockBooking(txCtx, tx, id)
		if err != nil {
			return err
		}
		if IsTerminal(b.Status) {
			return newError(KindAlreadyTerminal, "booking %d is already %s", b.ID, b.Status)
		}
		if err := s.checkResources(txCtx, tx, b.BookingType, b.LabId, b.EquipmentId); err != nil {
			return err
		}
		now := s.clock()
		if err := s.window.Validate(in.StartTime, in.EndTime, now); err != nil {
			return err
		}
		existing, err := s.detector.Find(txCtx, tx, key, iv, b.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return conflictError(existing)
		}

		b.StartTime, b.EndTime = in.StartTime, in.EndTime
		if in.Purpose != nil {
			b.Purpose = strings.TrimSpace(*in.Purpose)
		}
		b.UpdatedAt = now
		if err := tx.SaveBooking(txCtx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, s.fail("reschedule booking", key, err)
	}

	s.log.WithFields(logrus.Fields{"booking_id": updated.ID, "resource": key.String()}).Info("booking rescheduled")
	s.publish(ctx, EventRescheduled, updated)
	return updated, nil
}

// Get returns a booking visible to actor.
func (s *Service) Get(ctx context.Context, id uint, actor Actor) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if errors.Is(err, ErrNoRecord) {
		return nil, newError(KindNotFound, "booking %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	if !actor.Elevated() && !actor.Owns(b) {
		return nil, newError(KindForbidden, "booking %d belongs to another user", id)
	}
	return b, nil
}

// List returns one page of bookings and the total match count. Non-elevated actors only ever see
// their own bookings, whatever UserId the filter asks for.
func (s *Service) List(ctx context.Context, f Filter, actor Actor) ([]model.Booking, int64, error) {
	if !actor.Elevated() {
		uid := actor.UserId
		f.UserId = &uid
	}
	if f.Status != "" {
		if _, err := ParseStatus(string(f.Status)); err != nil {
			return nil, 0, err
		}
	}
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return nil, 0, newError(KindInvalidRange, "to must be after from")
	}
	rows, total, err := s.store.ListBookings(ctx, f.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	return rows, total, nil
}

func validateCreate(in CreateInput) (ResourceKey, error) {
	if in.UserId == 0 {
		return ResourceKey{}, newError(KindValidation, "userId is required")
	}
	if len(in.Purpose) > MaxPurposeLength {
		return ResourceKey{}, newError(KindValidation, "purpose must be at most %d characters", MaxPurposeLength)
	}
	switch in.BookingType {
	case model.BookingTypeLab:
		if in.EquipmentId != nil {
			return ResourceKey{}, newError(KindValidation, "equipmentId is not allowed for lab bookings")
		}
	case model.BookingTypeEquipment:
		if in.LabId == nil {
			return ResourceKey{}, newError(KindValidation, "labId is required for equipment bookings")
		}
	}
	return KeyOf(&model.Booking{BookingType: in.BookingType, LabId: in.LabId, EquipmentId: in.EquipmentId})
}

func (s *Service) checkResources(ctx context.Context, tx Tx, typ model.BookingType, labId, equipmentId *uint) error {
	lab, err := tx.GetLab(ctx, *labId)
	if errors.Is(err, ErrNoRecord) {
		return newError(KindResourceNotFound, "lab %d not found", *labId)
	}
	if err != nil {
		return fmt.Errorf("load lab %d: %w", *labId, err)
	}
	if !lab.IsActive {
		return newError(KindResourceInactive, "lab %q is not active", lab.Name)
	}
	if typ != model.BookingTypeEquipment {
		return nil
	}

	eq, err := tx.GetEquipment(ctx, *equipmentId)
	if errors.Is(err, ErrNoRecord) {
		return newError(KindResourceNotFound, "equipment %d not found", *equipmentId)
	}
	if err != nil {
		return fmt.Errorf("load equipment %d: %w", *equipmentId, err)
	}
	if eq.LabId != lab.ID {
		return newError(KindValidation, "equipment %d is not housed in lab %d", eq.ID, lab.ID)
	}
	if !eq.IsActive {
		return newError(KindResourceInactive, "equipment %q is not active", eq.Name)
	}
	if eq.Status != model.EquipmentAvailable {
		return newError(KindResourceUnavailable, "equipment %q is %s", eq.Name, eq.Status)
	}
	return nil
}

func lockBooking(ctx context.Context, tx Tx, id uint) (*model.Booking, error) {
	b, err := tx.LockBooking(ctx, id)
	if errors.Is(err, ErrNoRecord) {
		return nil, newError(KindNotFound, "booking %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// cachedReplay answers a retried create from the idempotency cache without taking any lock.
func (s *Service) cachedReplay(ctx context.Context, in CreateInput) (*model.Booking, bool) {
	if s.idempotency == nil || in.IdempotencyKey == "" {
		return nil, false
	}
	id, ok, err := s.idempotency.Lookup(ctx, in.UserId, in.IdempotencyKey)
	if err != nil {
		s.log.WithError(err).Warn("idempotency lookup failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	b, err := s.store.GetBooking(ctx, id)
	if err != nil || b.UserId != in.UserId {
		return nil, false
	}
	return b, true
}

// storedReplay looks the key up on the bookings themselves.
func (s *Service) storedReplay(ctx context.Context, in CreateInput) (*model.Booking, bool) {
	var prior *model.Booking
	err := s.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.BookingByIdempotencyKey(ctx, in.UserId, in.IdempotencyKey)
		prior = b
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNoRecord) {
			s.log.WithError(err).Warn("idempotency lookup failed")
		}
		return nil, false
	}
	return prior, true
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.txTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.txTimeout)
}

// fail logs err and returns it. Booking errors pass through untouched; a blown transaction
// deadline becomes LockTimeout; anything else is wrapped with op.
func (s *Service) fail(op string, key ResourceKey, err error) error {
	fields := logrus.Fields{"op": op}
	if key.ID != 0 {
		fields["resource"] = key.String()
	}
	if kind, ok := KindOf(err); ok {
		s.log.WithFields(fields).WithField("kind", kind).Info(err.Error())
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		s.log.WithFields(fields).Warn("transaction deadline exceeded")
		return LockTimeoutError(op)
	}
	s.log.WithFields(fields).WithError(err).Error("booking store failure")
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) publish(ctx context.Context, typ EventType, b *model.Booking) {
	evt := Event{Type: typ, Booking: *b, OccurredAt: s.clock()}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"booking_id": b.ID, "event": typ}).Warn("publish booking event failed")
	}
}

func newPublicCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
}

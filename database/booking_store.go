package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lab_manager/booking"
	"lab_manager/model"
	"lab_manager/utils"
)

const (
	// SQLSTATE lock_not_available, raised when lock_timeout expires.
	pgLockNotAvailable = "55P03"
	pgUniqueViolation  = "23505"
)

// BookingStore implements booking.Store on postgres. The resource lock is a FOR UPDATE lock on the
// lab or equipment row, so two transactions for the same resource serialize while different
// resources proceed in parallel.
type BookingStore struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewBookingStore(db *gorm.DB, lockTimeout time.Duration) *BookingStore {
	return &BookingStore{db: db, lockTimeout: lockTimeout}
}

func (s *BookingStore) WithResourceLock(ctx context.Context, key booking.ResourceKey, fn func(tx booking.Tx) error) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		if err := lockResource(tx, key); err != nil {
			return err
		}
		return fn(&bookingTx{db: tx})
	})
}

func (s *BookingStore) InTx(ctx context.Context, fn func(tx booking.Tx) error) error {
	return s.transaction(ctx, func(tx *gorm.DB) error {
		return fn(&bookingTx{db: tx})
	})
}

func (s *BookingStore) GetBooking(ctx context.Context, id uint) (*model.Booking, error) {
	var b model.Booking
	if err := s.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (s *BookingStore) ListBookings(ctx context.Context, f booking.Filter) ([]model.Booking, int64, error) {
	f = f.Normalize()
	query := s.db.WithContext(ctx).Model(&model.Booking{})
	if f.UserId != nil {
		query = query.Where("user_id = ?", *f.UserId)
	}
	if f.LabId != nil {
		query = query.Where("lab_id = ?", *f.LabId)
	}
	if f.EquipmentId != nil {
		query = query.Where("equipment_id = ?", *f.EquipmentId)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.From != nil {
		query = query.Where("end_time > ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("start_time < ?", *f.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var rows []model.Booking
	query = utils.ApplyPagination(query.Order("start_time").Order("id"), &f.Limit, &f.Page)
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, translate(err)
	}
	return rows, total, nil
}

func (s *BookingStore) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := setLockTimeout(tx, s.lockTimeout); err != nil {
			return err
		}
		return fn(tx)
	})
	return translate(err)
}

func setLockTimeout(tx *gorm.DB, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = %d", d.Milliseconds())).Error
}

// lockResource takes the row lock for key. A missing row is left for the directory lookup to report.
func lockResource(tx *gorm.DB, key booking.ResourceKey) error {
	var err error
	locking := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id")
	switch key.Type {
	case model.BookingTypeLab:
		err = locking.First(&model.Lab{}, key.ID).Error
	case model.BookingTypeEquipment:
		err = locking.First(&model.Equipment{}, key.ID).Error
	default:
		return fmt.Errorf("unsupported resource key %s", key)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// translate maps driver errors onto the booking package's vocabulary.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := booking.KindOf(err); ok {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.ErrNoRecord
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable:
			return booking.LockTimeoutError("resource row")
		case pgUniqueViolation:
			return booking.DuplicateError(pgErr.ConstraintName)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return booking.LockTimeoutError("transaction")
	}
	return err
}

type bookingTx struct {
	db *gorm.DB
}

// GetLab reads the lab FOR SHARE, so the lab cannot be deactivated before the unit commits. For lab
// bookings the row is already held FOR UPDATE by the resource lock.
func (t *bookingTx) GetLab(_ context.Context, id uint) (*model.Lab, error) {
	var lab model.Lab
	if err := t.db.Clauses(clause.Locking{Strength: "SHARE"}).First(&lab, id).Error; err != nil {
		return nil, translate(err)
	}
	return &lab, nil
}

func (t *bookingTx) GetEquipment(_ context.Context, id uint) (*model.Equipment, error) {
	var eq model.Equipment
	if err := t.db.First(&eq, id).Error; err != nil {
		return nil, translate(err)
	}
	return &eq, nil
}

func (t *bookingTx) LockBooking(_ context.Context, id uint) (*model.Booking, error) {
	var b model.Booking
	if err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (t *bookingTx) ActiveBookings(_ context.Context, key booking.ResourceKey, iv booking.Interval) ([]model.Booking, error) {
	query := t.db.Where("booking_type = ? AND status IN ?", key.Type, booking.ActiveStatuses).
		Where("start_time < ? AND end_time > ?", iv.End, iv.Start)
	switch key.Type {
	case model.BookingTypeLab:
		query = query.Where("lab_id = ?", key.ID)
	case model.BookingTypeEquipment:
		query = query.Where("equipment_id = ?", key.ID)
	}

	var rows []model.Booking
	if err := query.Order("start_time").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func (t *bookingTx) BookingByIdempotencyKey(_ context.Context, userId uint, key string) (*model.Booking, error) {
	var b model.Booking
	if err := t.db.Where("user_id = ? AND idempotency_key = ?", userId, key).First(&b).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (t *bookingTx) CreateBooking(_ context.Context, b *model.Booking) error {
	return translate(t.db.Create(b).Error)
}

func (t *bookingTx) SaveBooking(_ context.Context, b *model.Booking) error {
	return translate(t.db.Save(b).Error)
}

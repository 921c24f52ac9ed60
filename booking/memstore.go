package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"lab_manager/model"
)

const DefaultLockTimeout = 3 * time.Second

// MemoryStore is an in-process Store for development and tests. Resource keys and booking rows are
// guarded by keyed locks with a bounded wait; writes made through a Tx are staged and applied only
// when the callback succeeds.
type MemoryStore struct {
	mu        sync.RWMutex
	labs      map[uint]model.Lab
	equipment map[uint]model.Equipment
	bookings  map[uint]model.Booking
	lastID    uint

	locks       *keyedLocks
	lockTimeout time.Duration
}

func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	return &MemoryStore{
		labs:        make(map[uint]model.Lab),
		equipment:   make(map[uint]model.Equipment),
		bookings:    make(map[uint]model.Booking),
		locks:       &keyedLocks{slots: make(map[string]*lockSlot)},
		lockTimeout: lockTimeout,
	}
}

func (m *MemoryStore) PutLab(lab model.Lab) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.labs[lab.ID] = lab
}

func (m *MemoryStore) PutEquipment(eq model.Equipment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equipment[eq.ID] = eq
}

// PutBooking stores b as is, assigning an id when b has none.
func (m *MemoryStore) PutBooking(b model.Booking) model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == 0 {
		m.lastID++
		b.ID = m.lastID
	} else if b.ID > m.lastID {
		m.lastID = b.ID
	}
	m.bookings[b.ID] = b
	return b
}

func (m *MemoryStore) WithResourceLock(ctx context.Context, key ResourceKey, fn func(tx Tx) error) error {
	release, err := m.locks.acquire(ctx, "resource:"+key.String(), m.lockTimeout)
	if err != nil {
		return err
	}
	defer release()
	return m.InTx(ctx, fn)
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{store: m, held: make(map[uint]func()), saved: make(map[uint]model.Booking)}
	defer tx.release()
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

func (m *MemoryStore) GetBooking(_ context.Context, id uint) (*model.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNoRecord
	}
	return &b, nil
}

func (m *MemoryStore) ListBookings(_ context.Context, f Filter) ([]model.Booking, int64, error) {
	f = f.Normalize()
	m.mu.RLock()
	matched := make([]model.Booking, 0)
	for _, b := range m.bookings {
		if f.Matches(&b) {
			matched = append(matched, b)
		}
	}
	m.mu.RUnlock()

	sortByStart(matched)
	total := int64(len(matched))
	from := min(f.Offset(), len(matched))
	to := min(from+f.Limit, len(matched))
	return matched[from:to], total, nil
}

type memTx struct {
	store   *MemoryStore
	held    map[uint]func()
	created []model.Booking
	saved   map[uint]model.Booking
}

func (t *memTx) GetLab(_ context.Context, id uint) (*model.Lab, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	lab, ok := t.store.labs[id]
	if !ok {
		return nil, ErrNoRecord
	}
	return &lab, nil
}

func (t *memTx) GetEquipment(_ context.Context, id uint) (*model.Equipment, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	eq, ok := t.store.equipment[id]
	if !ok {
		return nil, ErrNoRecord
	}
	return &eq, nil
}

func (t *memTx) LockBooking(ctx context.Context, id uint) (*model.Booking, error) {
	if _, ok := t.held[id]; !ok {
		release, err := t.store.locks.acquire(ctx, fmt.Sprintf("booking:%d", id), t.store.lockTimeout)
		if err != nil {
			return nil, err
		}
		t.held[id] = release
	}
	if b, ok := t.saved[id]; ok {
		return &b, nil
	}
	return t.store.GetBooking(ctx, id)
}

func (t *memTx) ActiveBookings(_ context.Context, key ResourceKey, iv Interval) ([]model.Booking, error) {
	t.store.mu.RLock()
	rows := make([]model.Booking, 0)
	for id, b := range t.store.bookings {
		if staged, ok := t.saved[id]; ok {
			b = staged
		}
		rows = append(rows, b)
	}
	t.store.mu.RUnlock()
	rows = append(rows, t.created...)

	out := rows[:0]
	for _, b := range rows {
		if IsActive(b.Status) && key.Matches(&b) && iv.Overlaps(IntervalOf(&b)) {
			out = append(out, b)
		}
	}
	sortByStart(out)
	return out, nil
}

func (t *memTx) BookingByIdempotencyKey(_ context.Context, userId uint, key string) (*model.Booking, error) {
	for _, b := range t.created {
		if sameRequest(&b, userId, key) {
			return &b, nil
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if b, ok := t.store.byIdempotencyKey(userId, key); ok {
		return &b, nil
	}
	return nil, ErrNoRecord
}

func (t *memTx) CreateBooking(_ context.Context, b *model.Booking) error {
	t.store.mu.Lock()
	t.store.lastID++
	b.ID = t.store.lastID
	t.store.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	t.created = append(t.created, *b)
	return nil
}

func (t *memTx) SaveBooking(_ context.Context, b *model.Booking) error {
	if _, ok := t.held[b.ID]; !ok {
		return errors.New("memory store: save of a booking not locked in this transaction")
	}
	t.saved[b.ID] = *b
	return nil
}

// commit applies the staged writes. Like the unique index on (user_id, idempotency_key), it refuses
// a second booking for the same user and key.
func (t *memTx) commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, b := range t.created {
		if b.IdempotencyKey == nil {
			continue
		}
		if prior, ok := t.store.byIdempotencyKey(b.UserId, *b.IdempotencyKey); ok {
			return newError(KindConflict, "idempotency key %q already produced booking %d", *b.IdempotencyKey, prior.ID)
		}
	}
	for _, b := range t.created {
		t.store.bookings[b.ID] = b
	}
	for id, b := range t.saved {
		t.store.bookings[id] = b
	}
	return nil
}

func (t *memTx) release() {
	for _, release := range t.held {
		release()
	}
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// keyedLocks hands out one lock per name. A slot lives only while someone holds or waits on it.
type keyedLocks struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

// acquire waits up to timeout (or until ctx is done) for the named lock.
func (k *keyedLocks) acquire(ctx context.Context, name string, timeout time.Duration) (func(), error) {
	k.mu.Lock()
	slot, ok := k.slots[name]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		k.slots[name] = slot
	}
	slot.refs++
	k.mu.Unlock()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case slot.ch <- struct{}{}:
		return func() {
			<-slot.ch
			k.forget(name, slot)
		}, nil
	case <-expired:
		k.forget(name, slot)
		return nil, LockTimeoutError(name)
	case <-ctx.Done():
		k.forget(name, slot)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, LockTimeoutError(name)
		}
		return nil, ctx.Err()
	}
}

func (k *keyedLocks) forget(name string, slot *lockSlot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(k.slots, name)
	}
}

func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

// byIdempotencyKey expects m.mu to be held.
func (m *MemoryStore) byIdempotencyKey(userId uint, key string) (model.Booking, bool) {
	for _, b := range m.bookings {
		if sameRequest(&b, userId, key) {
			return b, true
		}
	}
	return model.Booking{}, false
}

func sameRequest(b *model.Booking, userId uint, key string) bool {
	return b.UserId == userId && b.IdempotencyKey != nil && *b.IdempotencyKey == key
}

func sortByStart(rows []model.Booking) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StartTime.Equal(rows[j].StartTime) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].StartTime.Before(rows[j].StartTime)
	})
}

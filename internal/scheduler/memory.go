package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
)

// MemoryStore keeps reservations in process memory. A per-date lock wraps the
// conflict check and the insert so concurrent bookings of one day serialize
// while other days proceed.
type MemoryStore struct {
	mu           sync.RWMutex
	nextID       int64
	byID         map[int64]*models.Reservation
	byDate       map[string][]int64
	workingHours *models.WorkingHours
	dates        *dateLocks
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[int64]*models.Reservation),
		byDate: make(map[string][]int64),
		dates:  newDateLocks(),
	}
}

func (m *MemoryStore) LoadReservations(ctx context.Context, date time.Time) ([]models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeOn(models.DateKey(date)), nil
}

func (m *MemoryStore) activeOn(key string) []models.Reservation {
	var out []models.Reservation
	for _, id := range m.byDate[key] {
		r := m.byID[id]
		if r.IsActive() {
			out = append(out, *r)
		}
	}
	return out
}

func (m *MemoryStore) InsertIfFree(ctx context.Context, r *models.Reservation, now time.Time) (bool, error) {
	key := models.DateKey(r.Date)
	unlock := m.dates.lock(key)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.RLock()
	existing := m.activeOn(key)
	m.mu.RUnlock()

	if models.Conflicts(r.Interval(), existing, now) {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	r.Status = models.StatusActive
	r.CreatedAt = now
	stored := *r
	m.byID[r.ID] = &stored
	m.byDate[key] = append(m.byDate[key], r.ID)
	return true, nil
}

func (m *MemoryStore) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byID[id]
	if !ok || !r.IsActive() {
		return nil, nil
	}
	out := *r
	return &out, nil
}

func (m *MemoryStore) DeleteReservation(ctx context.Context, id int64, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok || !r.IsActive() {
		return false, nil
	}
	r.Status = models.StatusCancelled
	r.CancelledAt = &at
	return true, nil
}

func (m *MemoryStore) ListByOwner(ctx context.Context, ownerID int64) ([]models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Reservation
	for _, r := range m.byID {
		if r.OwnerID == ownerID && r.IsActive() {
			out = append(out, *r)
		}
	}
	sortByStart(out)
	return out, nil
}

// ListBetween returns active reservations whose date lies in [from, to].
func (m *MemoryStore) ListBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fromKey, toKey := models.DateKey(from), models.DateKey(to)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Reservation
	for key := range m.byDate {
		if key < fromKey || key > toKey {
			continue
		}
		out = append(out, m.activeOn(key)...)
	}
	sortByStart(out)
	return out, nil
}

// MarkReminderSent flags a reservation so reminders are delivered once.
func (m *MemoryStore) MarkReminderSent(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byID[id]; ok {
		r.ReminderSent = true
	}
	return nil
}

func (m *MemoryStore) LoadWorkingHours(ctx context.Context) (*models.WorkingHours, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.workingHours == nil {
		return nil, nil
	}
	wh := *m.workingHours
	return &wh, nil
}

func (m *MemoryStore) SaveWorkingHours(ctx context.Context, wh models.WorkingHours) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.workingHours = &wh
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func sortByStart(rs []models.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		return rs[i].StartsAt().Before(rs[j].StartsAt())
	})
}

// dateLocks hands out one mutex per date key and forgets it once unused.
type dateLocks struct {
	mu    sync.Mutex
	locks map[string]*dateLock
}

type dateLock struct {
	mu   sync.Mutex
	refs int
}

func newDateLocks() *dateLocks {
	return &dateLocks{locks: make(map[string]*dateLock)}
}

func (d *dateLocks) lock(key string) (unlock func()) {
	d.mu.Lock()
	l, ok := d.locks[key]
	if !ok {
		l = &dateLock{}
		d.locks[key] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, key)
		}
		d.mu.Unlock()
	}
}

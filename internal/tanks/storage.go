package tanks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a tank or a reading with the given ID is not found.
var ErrNotFound = errors.New("item not found")

// TankStorage persists tanks.
type TankStorage interface {
	CreateTank(ctx context.Context, tank *Tank) error
	GetTank(ctx context.Context, id int64) (*Tank, error)
	ListTanks(ctx context.Context, offset, limit int) (Collection[Tank], error)
	UpdateTank(ctx context.Context, tank *Tank) error
	// DeleteTank removes the tank together with its readings and aggregates.
	DeleteTank(ctx context.Context, id int64) error
}

// ReadingStorage persists volume readings.
type ReadingStorage interface {
	CreateReading(ctx context.Context, reading *VolumeReading) error
	GetReading(ctx context.Context, id int64) (*VolumeReading, error)
	UpdateReading(ctx context.Context, reading *VolumeReading) error
	DeleteReading(ctx context.Context, id int64) error
	ListReadings(ctx context.Context, tankID int64, offset, limit int) (Collection[VolumeReading], error)
	// ReadingsByTank returns every reading of the tank ordered by (CreatedAt, ID).
	ReadingsByTank(ctx context.Context, tankID int64) ([]VolumeReading, error)
}

// AggregateStorage persists daily aggregates. Only AvgSalesUpdater mutates it.
type AggregateStorage interface {
	// GetAggregate returns ErrNotFound when no row exists for the date.
	GetAggregate(ctx context.Context, tankID int64, date time.Time) (*DailyAggregate, error)
	SaveAggregate(ctx context.Context, aggregate *DailyAggregate) error
	DeleteAggregate(ctx context.Context, tankID int64, date time.Time) error
	ListAggregates(ctx context.Context, tankID int64) ([]DailyAggregate, error)
}

// Storage is the main interface for our persistence layer.
type Storage interface {
	TankStorage
	ReadingStorage
	AggregateStorage
	Close() error
}

type aggregateKey struct {
	tankID int64
	date   string
}

func keyOf(tankID int64, date time.Time) aggregateKey {
	return aggregateKey{tankID: tankID, date: truncateDate(date).Format(time.DateOnly)}
}

// LocalStorage provides an in-memory implementation of Storage.
type LocalStorage struct {
	mu         sync.RWMutex
	tanks      map[int64]Tank
	readings   map[int64]VolumeReading
	aggregates map[aggregateKey]DailyAggregate
	lastTank   int64
	lastRead   int64
}

// NewLocalStorage instantiates a new LocalStorage with empty maps.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		tanks:      map[int64]Tank{},
		readings:   map[int64]VolumeReading{},
		aggregates: map[aggregateKey]DailyAggregate{},
	}
}

// CreateTank stores the tank, assigning an ID when none is set.
func (l *LocalStorage) CreateTank(_ context.Context, tank *Tank) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tank.ID == 0 {
		l.lastTank++
		tank.ID = l.lastTank
	} else if tank.ID > l.lastTank {
		l.lastTank = tank.ID
	}
	l.tanks[tank.ID] = *tank
	return nil
}

// GetTank retrieves a tank by ID.
// Returns ErrNotFound if the tank is not found.
func (l *LocalStorage) GetTank(_ context.Context, id int64) (*Tank, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.tanks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (l *LocalStorage) ListTanks(_ context.Context, offset, limit int) (Collection[Tank], error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	all := make([]Tank, 0, len(l.tanks))
	for _, t := range l.tanks {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, offset, limit), nil
}

func (l *LocalStorage) UpdateTank(_ context.Context, tank *Tank) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tanks[tank.ID]; !ok {
		return ErrNotFound
	}
	l.tanks[tank.ID] = *tank
	return nil
}

func (l *LocalStorage) DeleteTank(_ context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tanks[id]; !ok {
		return ErrNotFound
	}
	delete(l.tanks, id)
	for rid, r := range l.readings {
		if r.TankID == id {
			delete(l.readings, rid)
		}
	}
	for k := range l.aggregates {
		if k.tankID == id {
			delete(l.aggregates, k)
		}
	}
	return nil
}

// CreateReading stores the reading, assigning an ID when none is set.
func (l *LocalStorage) CreateReading(_ context.Context, reading *VolumeReading) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tanks[reading.TankID]; !ok {
		return ErrNotFound
	}
	if reading.ID == 0 {
		l.lastRead++
		reading.ID = l.lastRead
	} else if reading.ID > l.lastRead {
		l.lastRead = reading.ID
	}
	l.readings[reading.ID] = *reading
	return nil
}

func (l *LocalStorage) GetReading(_ context.Context, id int64) (*VolumeReading, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.readings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (l *LocalStorage) UpdateReading(_ context.Context, reading *VolumeReading) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.readings[reading.ID]; !ok {
		return ErrNotFound
	}
	l.readings[reading.ID] = *reading
	return nil
}

func (l *LocalStorage) DeleteReading(_ context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.readings[id]; !ok {
		return ErrNotFound
	}
	delete(l.readings, id)
	return nil
}

func (l *LocalStorage) ListReadings(ctx context.Context, tankID int64, offset, limit int) (Collection[VolumeReading], error) {
	all, err := l.ReadingsByTank(ctx, tankID)
	if err != nil {
		return Collection[VolumeReading]{}, err
	}
	return page(all, offset, limit), nil
}

func (l *LocalStorage) ReadingsByTank(_ context.Context, tankID int64) ([]VolumeReading, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]VolumeReading, 0)
	for _, r := range l.readings {
		if r.TankID == tankID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].before(out[j]) })
	return out, nil
}

func (l *LocalStorage) GetAggregate(_ context.Context, tankID int64, date time.Time) (*DailyAggregate, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.aggregates[keyOf(tankID, date)]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (l *LocalStorage) SaveAggregate(_ context.Context, aggregate *DailyAggregate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := *aggregate
	a.Date = truncateDate(a.Date)
	l.aggregates[keyOf(a.TankID, a.Date)] = a
	return nil
}

func (l *LocalStorage) DeleteAggregate(_ context.Context, tankID int64, date time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.aggregates, keyOf(tankID, date))
	return nil
}

func (l *LocalStorage) ListAggregates(_ context.Context, tankID int64) ([]DailyAggregate, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]DailyAggregate, 0)
	for k, a := range l.aggregates {
		if k.tankID == tankID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Close is a no-op for the in-memory storage.
func (l *LocalStorage) Close() error { return nil }

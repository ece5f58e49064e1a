package tanks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tank_sales/internal/metrics"
)

// MaxPageLimit is the largest page a listing may request.
const MaxPageLimit = 100

var (
	// ErrInvalidName is returned when a tank name is blank.
	ErrInvalidName = errors.New("tank name must not be empty")
	// ErrInvalidVolume is returned for negative volumes.
	ErrInvalidVolume = errors.New("volume must not be negative")
	// ErrInvalidTimestamp is returned for reading times outside years 1-9999.
	ErrInvalidTimestamp = errors.New("created_at must be between years 1 and 9999")
	// ErrInvalidPage is returned for out of range offset or limit values.
	ErrInvalidPage = errors.New("invalid offset or limit")
)

// Service provides tank and reading management on a Storage backend and keeps
// the average sales in step with reading changes.
type Service struct {
	storage Storage
	monitor *SalesMonitor
	logger  *zap.Logger
	now     func() time.Time

	// one writer per tank
	tankLocks sync.Map
}

// NewService creates a new Service wired to an AvgSalesUpdater on the same storage.
func NewService(storage Storage, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}

	updater := NewAvgSalesUpdater(storage, logger.Named("avgsales"))
	return &Service{
		storage: storage,
		monitor: NewSalesMonitor(storage, updater),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) lockTank(tankID int64) func() {
	v, _ := s.tankLocks.LoadOrStore(tankID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func validatePage(offset, limit int) error {
	if offset < 0 || limit < 1 || limit > MaxPageLimit {
		return fmt.Errorf("%w: offset=%d limit=%d", ErrInvalidPage, offset, limit)
	}
	return nil
}

// CreateTank handles the creation of a new tank.
func (s *Service) CreateTank(ctx context.Context, name string) (*Tank, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	tank := &Tank{Name: name}
	if err := s.storage.CreateTank(ctx, tank); err != nil {
		s.logger.Error("failed to save tank", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("failed to save tank: %w", err)
	}
	s.logger.Info("tank created", zap.Int64("tank_id", tank.ID), zap.String("name", tank.Name))
	return tank, nil
}

func (s *Service) GetTank(ctx context.Context, id int64) (*Tank, error) {
	return s.storage.GetTank(ctx, id)
}

func (s *Service) ListTanks(ctx context.Context, offset, limit int) (Collection[Tank], error) {
	if err := validatePage(offset, limit); err != nil {
		return Collection[Tank]{}, err
	}
	return s.storage.ListTanks(ctx, offset, limit)
}

// UpdateTank renames an existing tank.
func (s *Service) UpdateTank(ctx context.Context, id int64, name string) (*Tank, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}
	tank := &Tank{ID: id, Name: name}
	if err := s.storage.UpdateTank(ctx, tank); err != nil {
		return nil, err
	}
	return tank, nil
}

// DeleteTank removes a tank with its readings and average sales.
func (s *Service) DeleteTank(ctx context.Context, id int64) error {
	unlock := s.lockTank(id)
	defer unlock()
	if err := s.storage.DeleteTank(ctx, id); err != nil {
		return err
	}
	s.logger.Info("tank deleted", zap.Int64("tank_id", id))
	return nil
}

// CreateReading stores a new reading and records the sales it implies. When
// createdAt is nil the reading is stamped with the current time.
func (s *Service) CreateReading(ctx context.Context, tankID int64, volume float64, createdAt *time.Time) (*VolumeReading, error) {
	if volume < 0 {
		return nil, ErrInvalidVolume
	}
	reading := &VolumeReading{TankID: tankID, Volume: volume, CreatedAt: s.now()}
	if createdAt != nil {
		if y := createdAt.UTC().Year(); y < 1 || y > 9999 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTimestamp, createdAt)
		}
		reading.CreatedAt = *createdAt
	}

	unlock := s.lockTank(tankID)
	defer unlock()

	if err := s.storage.CreateReading(ctx, reading); err != nil {
		return nil, err
	}

	if err := s.monitor.HandleAdded(ctx, *reading); err != nil {
		s.handleHookError("create", *reading, err)
	}
	return reading, nil
}

// GetReading returns the reading when it belongs to the tank.
func (s *Service) GetReading(ctx context.Context, tankID, id int64) (*VolumeReading, error) {
	reading, err := s.storage.GetReading(ctx, id)
	if err != nil {
		return nil, err
	}
	if reading.TankID != tankID {
		return nil, ErrNotFound
	}
	return reading, nil
}

func (s *Service) ListReadings(ctx context.Context, tankID int64, offset, limit int) (Collection[VolumeReading], error) {
	if err := validatePage(offset, limit); err != nil {
		return Collection[VolumeReading]{}, err
	}
	if _, err := s.storage.GetTank(ctx, tankID); err != nil {
		return Collection[VolumeReading]{}, err
	}
	return s.storage.ListReadings(ctx, tankID, offset, limit)
}

// UpdateReading changes the volume of a reading and moves the affected sales.
func (s *Service) UpdateReading(ctx context.Context, tankID, id int64, volume float64) (*VolumeReading, error) {
	if volume < 0 {
		return nil, ErrInvalidVolume
	}

	unlock := s.lockTank(tankID)
	defer unlock()

	reading, err := s.GetReading(ctx, tankID, id)
	if err != nil {
		return nil, err
	}
	oldVolume := reading.Volume
	reading.Volume = volume
	if err := s.storage.UpdateReading(ctx, reading); err != nil {
		return nil, err
	}

	if err := s.monitor.HandleUpdated(ctx, *reading, oldVolume); err != nil {
		s.handleHookError("update", *reading, err)
	}
	return reading, nil
}

// DeleteReading removes a reading and retracts the sales it implied.
func (s *Service) DeleteReading(ctx context.Context, tankID, id int64) error {
	unlock := s.lockTank(tankID)
	defer unlock()

	reading, err := s.GetReading(ctx, tankID, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteReading(ctx, id); err != nil {
		return err
	}

	if err := s.monitor.HandleDeleted(ctx, *reading); err != nil {
		s.handleHookError("delete", *reading, err)
	}
	return nil
}

// AverageSales lists the daily aggregates of a tank ordered by date.
func (s *Service) AverageSales(ctx context.Context, tankID int64) ([]DailyAggregate, error) {
	if _, err := s.storage.GetTank(ctx, tankID); err != nil {
		return nil, err
	}
	return s.storage.ListAggregates(ctx, tankID)
}

// handleHookError logs a failed sale update. The reading change is kept.
func (s *Service) handleHookError(operation string, reading VolumeReading, err error) {
	metrics.RecordHookFailure(operation)
	s.logger.Warn("tank volume change handlers raised error, average sales may be inconsistent",
		zap.String("operation", operation),
		zap.Int64("tank_id", reading.TankID),
		zap.Int64("reading_id", reading.ID),
		zap.Float64("volume", reading.Volume),
		zap.Error(err),
	)
}

package tanks

import (
	"context"

	"github.com/shopspring/decimal"
)

// SalesObserver receives the sales inferred from reading changes.
type SalesObserver interface {
	HandleAddedSale(ctx context.Context, sale Sale) error
	HandleDeletedSale(ctx context.Context, sale Sale) error
}

// SalesMonitor infers sales from volume readings. A sale is the increase
// between two contiguous readings, dated at the later one.
type SalesMonitor struct {
	readings ReadingStorage
	observer SalesObserver
}

// NewSalesMonitor creates a new SalesMonitor reporting to observer.
func NewSalesMonitor(readings ReadingStorage, observer SalesObserver) *SalesMonitor {
	return &SalesMonitor{readings: readings, observer: observer}
}

func saleBetween(earlier, later VolumeReading) Sale {
	return Sale{
		TankID:    later.TankID,
		Quantity:  decimal.NewFromFloat(later.Volume).Sub(decimal.NewFromFloat(earlier.Volume)),
		CreatedAt: later.CreatedAt,
	}
}

func rises(earlier, later *VolumeReading) bool {
	return earlier != nil && later != nil && earlier.Volume < later.Volume
}

// HandleAdded reacts to a reading that has just been stored.
func (m *SalesMonitor) HandleAdded(ctx context.Context, reading VolumeReading) error {
	previous, next, err := FindNeighbors(ctx, m.readings, reading)
	if err != nil {
		return err
	}

	// The direct previous -> next sale is split by the new reading.
	if rises(previous, next) {
		if err := m.observer.HandleDeletedSale(ctx, saleBetween(*previous, *next)); err != nil {
			return err
		}
	}
	if rises(previous, &reading) {
		if err := m.observer.HandleAddedSale(ctx, saleBetween(*previous, reading)); err != nil {
			return err
		}
	}
	if rises(&reading, next) {
		if err := m.observer.HandleAddedSale(ctx, saleBetween(reading, *next)); err != nil {
			return err
		}
	}
	return nil
}

// HandleDeleted reacts to a reading that has just been removed.
func (m *SalesMonitor) HandleDeleted(ctx context.Context, reading VolumeReading) error {
	previous, next, err := FindNeighbors(ctx, m.readings, reading)
	if err != nil {
		return err
	}

	if rises(previous, &reading) {
		if err := m.observer.HandleDeletedSale(ctx, saleBetween(*previous, reading)); err != nil {
			return err
		}
	}
	if rises(&reading, next) {
		if err := m.observer.HandleDeletedSale(ctx, saleBetween(reading, *next)); err != nil {
			return err
		}
	}
	if rises(previous, next) {
		if err := m.observer.HandleAddedSale(ctx, saleBetween(*previous, *next)); err != nil {
			return err
		}
	}
	return nil
}

// HandleUpdated reacts to a volume change as a delete of the old value
// followed by an insert of the new one.
func (m *SalesMonitor) HandleUpdated(ctx context.Context, reading VolumeReading, oldVolume float64) error {
	old := reading
	old.Volume = oldVolume
	if err := m.HandleDeleted(ctx, old); err != nil {
		return err
	}
	return m.HandleAdded(ctx, reading)
}

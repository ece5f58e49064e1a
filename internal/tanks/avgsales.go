package tanks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tank_sales/internal/metrics"
)

// ErrInvalidSale is returned when a sale has a non-positive quantity.
var ErrInvalidSale = errors.New("sale quantity must be greater than zero")

// ErrInconsistentSale is returned when removing a sale would break an aggregate row.
var ErrInconsistentSale = errors.New("sale is inconsistent with the existing average sales")

// AvgSalesUpdater keeps the daily aggregates of the trailing window up to date.
type AvgSalesUpdater struct {
	storage AggregateStorage
	logger  *zap.Logger
}

// NewAvgSalesUpdater creates a new AvgSalesUpdater.
func NewAvgSalesUpdater(storage AggregateStorage, logger *zap.Logger) *AvgSalesUpdater {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &AvgSalesUpdater{storage: storage, logger: logger}
}

// affectedDates returns the dates whose window contains the sale.
func affectedDates(sale Sale) []time.Time {
	day := truncateDate(sale.CreatedAt)
	dates := make([]time.Time, 0, WindowWeeks)
	for week := 0; week < WindowWeeks; week++ {
		dates = append(dates, day.AddDate(0, 0, 7*week))
	}
	return dates
}

// affectedAggregates loads the window rows, with zero-valued placeholders for missing dates.
func (u *AvgSalesUpdater) affectedAggregates(ctx context.Context, sale Sale) ([]DailyAggregate, error) {
	dates := affectedDates(sale)
	out := make([]DailyAggregate, 0, len(dates))
	for _, date := range dates {
		a, err := u.storage.GetAggregate(ctx, sale.TankID, date)
		switch {
		case errors.Is(err, ErrNotFound):
			out = append(out, DailyAggregate{TankID: sale.TankID, Date: date, Total: decimal.Zero})
		case err != nil:
			return nil, err
		default:
			out = append(out, *a)
		}
	}
	return out, nil
}

// HandleAddedSale adds the sale to every row of its window.
func (u *AvgSalesUpdater) HandleAddedSale(ctx context.Context, sale Sale) error {
	if !sale.Quantity.IsPositive() {
		return fmt.Errorf("%w: received %s", ErrInvalidSale, sale.Quantity)
	}

	entries, err := u.affectedAggregates(ctx, sale)
	if err != nil {
		return fmt.Errorf("load average sales: %w", err)
	}

	for i := range entries {
		entries[i].Sales++
		entries[i].Total = entries[i].Total.Add(sale.Quantity)
		if err := u.storage.SaveAggregate(ctx, &entries[i]); err != nil {
			return fmt.Errorf("save average sale: %w", err)
		}
	}

	metrics.RecordSaleEvent("added")
	u.logger.Debug("sale added",
		zap.Int64("tank_id", sale.TankID),
		zap.String("quantity", sale.Quantity.String()),
		zap.Time("created_at", sale.CreatedAt),
	)
	return nil
}

func violatesInvariant(sales int, total decimal.Decimal) bool {
	return total.IsNegative() || (sales == 0) != total.IsZero()
}

// HandleDeletedSale removes the sale from every row of its window. Every row is
// checked before any is changed; rows whose total reaches zero are deleted.
func (u *AvgSalesUpdater) HandleDeletedSale(ctx context.Context, sale Sale) error {
	if !sale.Quantity.IsPositive() {
		return fmt.Errorf("%w: received %s", ErrInvalidSale, sale.Quantity)
	}

	entries, err := u.affectedAggregates(ctx, sale)
	if err != nil {
		return fmt.Errorf("load average sales: %w", err)
	}

	for _, entry := range entries {
		if violatesInvariant(entry.Sales-1, entry.Total.Sub(sale.Quantity)) {
			return fmt.Errorf("%w: deleting %s from tank %d on %s (sales=%d, total=%s)",
				ErrInconsistentSale, sale.Quantity, sale.TankID,
				entry.Date.Format(time.DateOnly), entry.Sales, entry.Total)
		}
	}

	for i := range entries {
		entries[i].Sales--
		entries[i].Total = entries[i].Total.Sub(sale.Quantity)

		if entries[i].Total.IsZero() {
			if err := u.storage.DeleteAggregate(ctx, sale.TankID, entries[i].Date); err != nil {
				return fmt.Errorf("delete average sale: %w", err)
			}
			metrics.RecordRowDeleted()
			continue
		}
		if err := u.storage.SaveAggregate(ctx, &entries[i]); err != nil {
			return fmt.Errorf("save average sale: %w", err)
		}
	}

	metrics.RecordSaleEvent("deleted")
	u.logger.Debug("sale deleted",
		zap.Int64("tank_id", sale.TankID),
		zap.String("quantity", sale.Quantity.String()),
		zap.Time("created_at", sale.CreatedAt),
	)
	return nil
}

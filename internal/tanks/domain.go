package tanks

import (
	"time"

	"github.com/shopspring/decimal"
)

// WindowWeeks is the number of weekly offsets a single sale contributes to.
const WindowWeeks = 5

// Tank represents a physical storage vessel.
type Tank struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// VolumeReading is a timestamped measurement of the liquid volume in a tank.
type VolumeReading struct {
	ID        int64     `json:"id"`
	TankID    int64     `json:"tank_id"`
	Volume    float64   `json:"volume"`
	CreatedAt time.Time `json:"created_at"`
}

// before reports whether r sorts before other in the per-tank ordering.
// Equal timestamps are ordered by ID.
func (r VolumeReading) before(other VolumeReading) bool {
	if !r.CreatedAt.Equal(other.CreatedAt) {
		return r.CreatedAt.Before(other.CreatedAt)
	}
	return r.ID < other.ID
}

// Sale is a consumption inferred from two contiguous readings. It is never stored.
type Sale struct {
	TankID    int64
	Quantity  decimal.Decimal
	CreatedAt time.Time
}

// DailyAggregate holds the trailing-window sales count and total of a tank for one date.
type DailyAggregate struct {
	TankID int64
	Date   time.Time
	Sales  int
	Total  decimal.Decimal
}

// Average returns Total / Sales. The second value is false when Sales is zero.
func (a DailyAggregate) Average() (decimal.Decimal, bool) {
	if a.Sales == 0 {
		return decimal.Zero, false
	}
	return a.Total.Div(decimal.NewFromInt(int64(a.Sales))), true
}

// Collection is a page of items together with the total number of matches.
type Collection[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// truncateDate drops the clock part of t, keeping its calendar date in UTC.
func truncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func page[T any](items []T, offset, limit int) Collection[T] {
	total := len(items)
	start := min(offset, total)
	end := min(start+limit, total)
	out := make([]T, 0, end-start)
	out = append(out, items[start:end]...)
	return Collection[T]{Items: out, Total: total, Offset: offset, Limit: limit}
}

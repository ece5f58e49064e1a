package tanks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const tankID int64 = 1

func day(n int) time.Time {
	return time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func qty(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// storages returns one fresh instance of every Storage implementation.
func storages(t *testing.T) map[string]Storage {
	t.Helper()
	sqlite, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "tanks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Storage{
		"local":  NewLocalStorage(),
		"sqlite": sqlite,
	}
}

func seedTank(t *testing.T, s Storage, id int64) {
	t.Helper()
	require.NoError(t, s.CreateTank(context.Background(), &Tank{ID: id, Name: "USL Diesel"}))
}

// seedReadings stores one reading per volume, two days apart, with IDs in
// reverse order so that ID order never matches time order.
func seedReadings(t *testing.T, s Storage, volumes []float64) []VolumeReading {
	t.Helper()
	out := make([]VolumeReading, 0, len(volumes))
	for i, v := range volumes {
		r := VolumeReading{
			ID:        int64(len(volumes) - i),
			TankID:    tankID,
			Volume:    v,
			CreatedAt: day(2 * i),
		}
		require.NoError(t, s.CreateReading(context.Background(), &r))
		out = append(out, r)
	}
	return out
}

func totalOf(rows []DailyAggregate) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.Total)
	}
	return sum
}

package tanks

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newTestService(t *testing.T, s Storage) *Service {
	t.Helper()
	svc := NewService(s, zaptest.NewLogger(t))
	require.NotNil(t, svc)
	return svc
}

func addReading(t *testing.T, svc *Service, at time.Time, volume float64) *VolumeReading {
	t.Helper()
	r, err := svc.CreateReading(context.Background(), tankID, volume, &at)
	require.NoError(t, err)
	return r
}

func requireRows(t *testing.T, svc *Service, count int, sales int, total float64) []DailyAggregate {
	t.Helper()
	rows, err := svc.AverageSales(context.Background(), tankID)
	require.NoError(t, err)
	require.Len(t, rows, count)
	for _, row := range rows {
		assert.Equal(t, sales, row.Sales)
		assert.True(t, qty(total).Equal(row.Total), "total %s", row.Total)
		avg, ok := row.Average()
		require.True(t, ok)
		assert.True(t, qty(total).Div(decimal.NewFromInt(int64(sales))).Equal(avg))
	}
	return rows
}

func TestNewService(t *testing.T) {
	svc := NewService(NewLocalStorage(), nil)

	require.NotNil(t, svc)
	assert.NotNil(t, svc.storage)
	assert.NotNil(t, svc.logger)
	assert.NotNil(t, svc.monitor)
}

func TestService_ReadingScenarios(t *testing.T) {
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(t, s)
			_, err := svc.CreateTank(context.Background(), "USL Diesel")
			require.NoError(t, err)

			addReading(t, svc, day(0), 10)
			requireRows(t, svc, 0, 0, 0)

			second := addReading(t, svc, day(3), 20)
			rows := requireRows(t, svc, 5, 1, 10)
			for i, row := range rows {
				assert.Equal(t, truncateDate(day(3)).AddDate(0, 0, 7*i), row.Date)
			}

			_, err = svc.UpdateReading(context.Background(), tankID, second.ID, 30)
			require.NoError(t, err)
			requireRows(t, svc, 5, 1, 20)

			require.NoError(t, svc.DeleteReading(context.Background(), tankID, second.ID))
			requireRows(t, svc, 0, 0, 0)
		})
	}
}

func TestService_DecreasingVolumesHaveNoSales(t *testing.T) {
	svc := newTestService(t, NewLocalStorage())
	_, err := svc.CreateTank(context.Background(), "USL Diesel")
	require.NoError(t, err)

	for i, v := range []float64{30, 20, 10} {
		addReading(t, svc, day(i), v)
	}

	requireRows(t, svc, 0, 0, 0)
}

func TestService_AddThenDeleteRestoresAggregates(t *testing.T) {
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(t, s)
			_, err := svc.CreateTank(context.Background(), "USL Diesel")
			require.NoError(t, err)
			for i, v := range []float64{10, 25, 5, 40} {
				addReading(t, svc, day(3*i), v)
			}
			before, err := svc.AverageSales(context.Background(), tankID)
			require.NoError(t, err)

			inserted := addReading(t, svc, day(4), 50)
			require.NoError(t, svc.DeleteReading(context.Background(), tankID, inserted.ID))

			after, err := svc.AverageSales(context.Background(), tankID)
			require.NoError(t, err)
			require.Len(t, after, len(before))
			for i := range before {
				assert.Equal(t, before[i].Date, after[i].Date)
				assert.Equal(t, before[i].Sales, after[i].Sales)
				assert.True(t, before[i].Total.Equal(after[i].Total))
			}
		})
	}
}

// Each sale lands on WindowWeeks rows, so the row totals divided by the window
// must equal the sum of the increases between consecutive readings.
func TestService_SaleConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	svc := newTestService(t, NewLocalStorage())
	_, err := svc.CreateTank(context.Background(), "USL Diesel")
	require.NoError(t, err)

	for i := 0; i < 60; i++ {
		at := day(rng.Intn(90)).Add(time.Duration(rng.Intn(24)) * time.Hour)
		addReading(t, svc, at, float64(rng.Intn(200)))

		readings, err := svc.storage.ReadingsByTank(context.Background(), tankID)
		require.NoError(t, err)
		expected := decimal.Zero
		for j := 1; j < len(readings); j++ {
			if readings[j-1].Volume < readings[j].Volume {
				expected = expected.Add(qty(readings[j].Volume - readings[j-1].Volume))
			}
		}

		rows, err := svc.AverageSales(context.Background(), tankID)
		require.NoError(t, err)
		for _, row := range rows {
			assert.False(t, violatesInvariant(row.Sales, row.Total), "row %v", row)
		}
		assert.True(t, expected.Mul(decimal.NewFromInt(WindowWeeks)).Equal(totalOf(rows)),
			"step %d: expected %s, got %s", i, expected, totalOf(rows))
	}
}

func TestService_HookFailureKeepsReadingChange(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := NewLocalStorage()
	svc := NewService(s, zap.New(core))
	_, err := svc.CreateTank(context.Background(), "USL Diesel")
	require.NoError(t, err)

	addReading(t, svc, day(0), 10)
	second := addReading(t, svc, day(3), 20)

	broken := DailyAggregate{TankID: tankID, Date: truncateDate(day(17)), Sales: 1, Total: qty(5)}
	require.NoError(t, s.SaveAggregate(context.Background(), &broken))

	require.NoError(t, svc.DeleteReading(context.Background(), tankID, second.ID))

	_, err = svc.GetReading(context.Background(), tankID, second.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	rows, err := svc.AverageSales(context.Background(), tankID)
	require.NoError(t, err)
	assert.Len(t, rows, 5, "a failed removal leaves every row in place")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "delete", entry.ContextMap()["operation"])
	assert.Contains(t, entry.ContextMap()["error"], ErrInconsistentSale.Error())
}

func TestService_Validation(t *testing.T) {
	svc := newTestService(t, NewLocalStorage())
	ctx := context.Background()

	_, err := svc.CreateTank(ctx, "  ")
	assert.True(t, errors.Is(err, ErrInvalidName))

	_, err = svc.CreateReading(ctx, tankID, 10, nil)
	assert.True(t, errors.Is(err, ErrNotFound), "tank does not exist")

	_, err = svc.CreateTank(ctx, "USL Diesel")
	require.NoError(t, err)
	_, err = svc.CreateReading(ctx, tankID, -1, nil)
	assert.True(t, errors.Is(err, ErrInvalidVolume))

	_, err = svc.ListReadings(ctx, tankID, -1, 10)
	assert.True(t, errors.Is(err, ErrInvalidPage))
	_, err = svc.ListTanks(ctx, 0, MaxPageLimit+1)
	assert.True(t, errors.Is(err, ErrInvalidPage))
}

func TestService_ReadingBelongsToTank(t *testing.T) {
	svc := newTestService(t, NewLocalStorage())
	ctx := context.Background()
	_, err := svc.CreateTank(ctx, "USL Diesel")
	require.NoError(t, err)
	other, err := svc.CreateTank(ctx, "Premium")
	require.NoError(t, err)

	r := addReading(t, svc, day(0), 10)

	_, err = svc.GetReading(ctx, other.ID, r.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = svc.UpdateReading(ctx, other.ID, r.ID, 20)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(svc.DeleteReading(ctx, other.ID, r.ID), ErrNotFound))
}

func TestService_DefaultTimestamp(t *testing.T) {
	svc := newTestService(t, NewLocalStorage())
	fixed := time.Date(2023, 1, 3, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	_, err := svc.CreateTank(context.Background(), "USL Diesel")
	require.NoError(t, err)

	r, err := svc.CreateReading(context.Background(), tankID, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, fixed, r.CreatedAt)
}

func TestService_DeleteTankCascades(t *testing.T) {
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(t, s)
			ctx := context.Background()
			_, err := svc.CreateTank(ctx, "USL Diesel")
			require.NoError(t, err)
			first := addReading(t, svc, day(0), 10)
			addReading(t, svc, day(3), 20)

			require.NoError(t, svc.DeleteTank(ctx, tankID))

			_, err = s.GetReading(ctx, first.ID)
			assert.True(t, errors.Is(err, ErrNotFound))
			rows, err := s.ListAggregates(ctx, tankID)
			require.NoError(t, err)
			assert.Empty(t, rows)
			assert.True(t, errors.Is(svc.DeleteTank(ctx, tankID), ErrNotFound))
		})
	}
}

func TestService_FarFutureReadingRecordsSale(t *testing.T) {
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(t, s)
			_, err := svc.CreateTank(context.Background(), "USL Diesel")
			require.NoError(t, err)

			far := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
			addReading(t, svc, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 10)
			r := addReading(t, svc, far, 20)
			assert.True(t, far.Equal(r.CreatedAt), "got %s", r.CreatedAt)

			rows := requireRows(t, svc, 5, 1, 10)
			assert.Equal(t, far, rows[0].Date)
		})
	}
}

func TestService_RejectsOutOfRangeTimestamp(t *testing.T) {
	svc := newTestService(t, NewLocalStorage())
	_, err := svc.CreateTank(context.Background(), "USL Diesel")
	require.NoError(t, err)

	for _, at := range []time.Time{
		time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(0, 12, 31, 0, 0, 0, 0, time.UTC),
	} {
		_, err := svc.CreateReading(context.Background(), tankID, 10, &at)
		assert.True(t, errors.Is(err, ErrInvalidTimestamp), "at %s: %v", at, err)
	}
}

func TestService_AggregateDatesUseUTCOnEveryStorage(t *testing.T) {
	zone := time.FixedZone("UTC-5", -5*60*60)
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(t, s)
			_, err := svc.CreateTank(context.Background(), "USL Diesel")
			require.NoError(t, err)

			addReading(t, svc, time.Date(2023, 1, 1, 12, 0, 0, 0, zone), 10)
			addReading(t, svc, time.Date(2023, 1, 3, 23, 30, 0, 0, zone), 20)

			rows := requireRows(t, svc, 5, 1, 10)
			assert.Equal(t, time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC), rows[0].Date)
		})
	}
}

func TestNewService_NilLoggerIsUsable(t *testing.T) {
	svc := NewService(NewLocalStorage(), nil)

	_, err := svc.CreateTank(context.Background(), "USL Diesel")
	require.NoError(t, err)
	assert.NotPanics(t, func() { _ = svc.logger.Sync() })
}

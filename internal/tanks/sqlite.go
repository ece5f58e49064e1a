package tanks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tank (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tankvolume (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	tank_id    INTEGER NOT NULL REFERENCES tank(id),
	volume     REAL NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_tankvolume_tank_created_at ON tankvolume(tank_id, created_at, id);
CREATE TABLE IF NOT EXISTS averagesale (
	tank_id INTEGER NOT NULL REFERENCES tank(id),
	date    TEXT NOT NULL,
	sales   INTEGER NOT NULL,
	total   TEXT NOT NULL,
	PRIMARY KEY (tank_id, date)
);`

// timestampLayout is fixed width so that text order matches time order for
// years 0000-9999.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStorage implements Storage on top of a single SQLite database file.
// Timestamps are stored as UTC timestampLayout text and totals as decimal strings.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens (or creates) the database at path and applies the schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if path == "" {
		path = "tanks.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows a single writer; serialise through one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStorage{db: db, path: path}, nil
}

// Path returns the configured database path.
func (s *SQLiteStorage) Path() string { return s.path }

func (s *SQLiteStorage) Close() error { return s.db.Close() }

func (s *SQLiteStorage) CreateTank(ctx context.Context, tank *Tank) error {
	var (
		res sql.Result
		err error
	)
	if tank.ID == 0 {
		res, err = s.db.ExecContext(ctx, `INSERT INTO tank(name) VALUES(?)`, tank.Name)
	} else {
		res, err = s.db.ExecContext(ctx, `INSERT INTO tank(id, name) VALUES(?, ?)`, tank.ID, tank.Name)
	}
	if err != nil {
		return fmt.Errorf("insert tank: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert tank: %w", err)
	}
	tank.ID = id
	return nil
}

func (s *SQLiteStorage) GetTank(ctx context.Context, id int64) (*Tank, error) {
	t := Tank{}
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM tank WHERE id = ?`, id).Scan(&t.ID, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select tank: %w", err)
	}
	return &t, nil
}

func (s *SQLiteStorage) ListTanks(ctx context.Context, offset, limit int) (Collection[Tank], error) {
	out := Collection[Tank]{Items: []Tank{}, Offset: offset, Limit: limit}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tank`).Scan(&out.Total); err != nil {
		return out, fmt.Errorf("count tanks: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM tank ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return out, fmt.Errorf("select tanks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var t Tank
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return out, fmt.Errorf("scan: %w", err)
		}
		out.Items = append(out.Items, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) UpdateTank(ctx context.Context, tank *Tank) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tank SET name = ? WHERE id = ?`, tank.Name, tank.ID)
	if err != nil {
		return fmt.Errorf("update tank: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStorage) DeleteTank(ctx context.Context, id int64) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `DELETE FROM averagesale WHERE tank_id = ?`, id); err != nil {
		return fmt.Errorf("delete aggregates: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tankvolume WHERE tank_id = ?`, id); err != nil {
		return fmt.Errorf("delete readings: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tank WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tank: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) CreateReading(ctx context.Context, reading *VolumeReading) error {
	if _, err := s.GetTank(ctx, reading.TankID); err != nil {
		return err
	}
	var (
		res sql.Result
		err error
	)
	at := formatTimestamp(reading.CreatedAt)
	if reading.ID == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO tankvolume(tank_id, volume, created_at) VALUES(?, ?, ?)`,
			reading.TankID, reading.Volume, at)
	} else {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO tankvolume(id, tank_id, volume, created_at) VALUES(?, ?, ?, ?)`,
			reading.ID, reading.TankID, reading.Volume, at)
	}
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	reading.ID = id
	reading.CreatedAt = reading.CreatedAt.UTC()
	return nil
}

func (s *SQLiteStorage) GetReading(ctx context.Context, id int64) (*VolumeReading, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, tank_id, volume, created_at FROM tankvolume WHERE id = ?`, id)
	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select reading: %w", err)
	}
	return &r, nil
}

func (s *SQLiteStorage) UpdateReading(ctx context.Context, reading *VolumeReading) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tankvolume SET tank_id = ?, volume = ?, created_at = ? WHERE id = ?`,
		reading.TankID, reading.Volume, formatTimestamp(reading.CreatedAt), reading.ID)
	if err != nil {
		return fmt.Errorf("update reading: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStorage) DeleteReading(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tankvolume WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reading: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStorage) ListReadings(ctx context.Context, tankID int64, offset, limit int) (Collection[VolumeReading], error) {
	out := Collection[VolumeReading]{Items: []VolumeReading{}, Offset: offset, Limit: limit}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tankvolume WHERE tank_id = ?`, tankID).Scan(&out.Total); err != nil {
		return out, fmt.Errorf("count readings: %w", err)
	}
	items, err := s.queryReadings(ctx,
		`SELECT id, tank_id, volume, created_at FROM tankvolume WHERE tank_id = ? ORDER BY created_at, id LIMIT ? OFFSET ?`,
		tankID, limit, offset)
	if err != nil {
		return out, err
	}
	out.Items = items
	return out, nil
}

func (s *SQLiteStorage) ReadingsByTank(ctx context.Context, tankID int64) ([]VolumeReading, error) {
	return s.queryReadings(ctx,
		`SELECT id, tank_id, volume, created_at FROM tankvolume WHERE tank_id = ? ORDER BY created_at, id`,
		tankID)
}

func (s *SQLiteStorage) queryReadings(ctx context.Context, query string, args ...any) ([]VolumeReading, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select readings: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make([]VolumeReading, 0)
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) GetAggregate(ctx context.Context, tankID int64, date time.Time) (*DailyAggregate, error) {
	day := truncateDate(date)
	a := DailyAggregate{TankID: tankID, Date: day}
	var total string
	err := s.db.QueryRowContext(ctx,
		`SELECT sales, total FROM averagesale WHERE tank_id = ? AND date = ?`,
		tankID, day.Format(time.DateOnly)).Scan(&a.Sales, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select aggregate: %w", err)
	}
	if a.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("decode total: %w", err)
	}
	return &a, nil
}

func (s *SQLiteStorage) SaveAggregate(ctx context.Context, aggregate *DailyAggregate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO averagesale(tank_id, date, sales, total) VALUES(?, ?, ?, ?)
		 ON CONFLICT(tank_id, date) DO UPDATE SET sales = excluded.sales, total = excluded.total`,
		aggregate.TankID, truncateDate(aggregate.Date).Format(time.DateOnly), aggregate.Sales, aggregate.Total.String())
	if err != nil {
		return fmt.Errorf("upsert aggregate: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteAggregate(ctx context.Context, tankID int64, date time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM averagesale WHERE tank_id = ? AND date = ?`,
		tankID, truncateDate(date).Format(time.DateOnly))
	if err != nil {
		return fmt.Errorf("delete aggregate: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListAggregates(ctx context.Context, tankID int64) ([]DailyAggregate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, sales, total FROM averagesale WHERE tank_id = ? ORDER BY date`, tankID)
	if err != nil {
		return nil, fmt.Errorf("select aggregates: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make([]DailyAggregate, 0)
	for rows.Next() {
		var date, total string
		a := DailyAggregate{TankID: tankID}
		if err := rows.Scan(&date, &a.Sales, &total); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if a.Date, err = time.Parse(time.DateOnly, date); err != nil {
			return nil, fmt.Errorf("decode date: %w", err)
		}
		if a.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("decode total: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (VolumeReading, error) {
	var (
		r  VolumeReading
		at string
	)
	if err := row.Scan(&r.ID, &r.TankID, &r.Volume, &at); err != nil {
		return r, err
	}
	createdAt, err := time.Parse(timestampLayout, at)
	if err != nil {
		return r, fmt.Errorf("decode created_at: %w", err)
	}
	r.CreatedAt = createdAt
	return r, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

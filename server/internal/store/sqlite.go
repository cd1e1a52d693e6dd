package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
)

// SQLite is a Repository backed by a local SQLite file.
type SQLite struct {
	db   *sql.DB
	mode bump.Mode
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string, mode bump.Mode) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("store: sqlite path is empty: %w", ErrNotConfigured)
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_time_format=sqlite"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	// A single connection serialises writers.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, mode: mode}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS speed_bumps (
			id TEXT PRIMARY KEY,
			street_name TEXT NOT NULL,
			exact_location TEXT NOT NULL DEFAULT '',
			health INTEGER,
			status TEXT,
			car_count INTEGER NOT NULL DEFAULT 0,
			last_updated TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_speed_bumps_last_updated ON speed_bumps(last_updated);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: sqlite migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLite) List(ctx context.Context) ([]bump.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM speed_bumps ORDER BY last_updated DESC, id`)
	if err != nil {
		return nil, s.wrap("list", err)
	}
	defer rows.Close()

	var out []bump.Record
	for rows.Next() {
		r, err := scanSQLite(rows)
		if err != nil {
			return nil, s.wrap("list", err)
		}
		out = append(out, r.record(s.mode))
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("list", err)
	}
	return out, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (bump.Record, error) {
	r, err := scanSQLite(s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM speed_bumps WHERE id = ?`, id))
	return s.one("get", id, r, err)
}

func (s *SQLite) UpdateCondition(ctx context.Context, id string, c bump.Condition, at time.Time) (bump.Record, error) {
	health, status := conditionColumns(c)
	q := `UPDATE speed_bumps SET health = ?, last_updated = ? WHERE id = ? RETURNING ` + selectColumns
	arg := health
	if c.Kind() == bump.KindStatus {
		q = `UPDATE speed_bumps SET status = ?, last_updated = ? WHERE id = ? RETURNING ` + selectColumns
		arg = status
	}
	r, err := scanSQLite(s.db.QueryRowContext(ctx, q, arg, at.UTC(), id))
	return s.one("update", id, r, err)
}

func (s *SQLite) ApplyImpact(ctx context.Context, id string, damage int, vehicles int64, at time.Time) (bump.Record, error) {
	q := `UPDATE speed_bumps
		SET health = MAX(?, MIN(?, COALESCE(health, ?) - ?)),
		    car_count = car_count + ?,
		    last_updated = ?
		WHERE id = ? RETURNING ` + selectColumns
	args := []any{bump.MinHealth, bump.MaxHealth, bump.MaxHealth, damage, vehicles, at.UTC(), id}
	if s.mode == bump.ModeStatus {
		q = `UPDATE speed_bumps SET car_count = car_count + ?, last_updated = ?
			WHERE id = ? RETURNING ` + selectColumns
		args = []any{vehicles, at.UTC(), id}
	}
	r, err := scanSQLite(s.db.QueryRowContext(ctx, q, args...))
	return s.one("impact", id, r, err)
}

func (s *SQLite) Insert(ctx context.Context, recs ...bump.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.wrap("insert", err)
	}
	defer tx.Rollback() //nolint:errcheck

	added := 0
	for _, r := range recs {
		health, status := conditionColumns(r.Condition)
		res, err := tx.ExecContext(ctx, `INSERT INTO speed_bumps (`+selectColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
			r.ID, r.StreetName, r.ExactLocation, health, status, r.CarCount, r.LastUpdated.UTC())
		if err != nil {
			return 0, s.wrap(fmt.Sprintf("insert %q", r.ID), err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, s.wrap("insert", err)
	}
	return added, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("store: ping: %w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) one(op, id string, r row, err error) (bump.Record, error) {
	if err != nil {
		return bump.Record{}, s.wrap(fmt.Sprintf("%s %q", op, id), err)
	}
	return r.record(s.mode), nil
}

// wrap classifies err like Postgres.wrap: no rows is ErrNotFound, a
// constraint violation keeps its own error, anything else (I/O, busy or
// locked database, closed handle, cancelled context) is ErrUnavailable.
func (s *SQLite) wrap(what string, err error) error {
	var se *sqlite.Error
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("store: %s: %w", what, ErrNotFound)
	case errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT:
		return fmt.Errorf("store: %s: %w", what, err)
	default:
		return fmt.Errorf("store: %s: %w: %v", what, ErrUnavailable, err)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(sc scanner) (row, error) {
	var (
		r      row
		health sql.NullInt64
		status sql.NullString
	)
	if err := sc.Scan(&r.id, &r.street, &r.location, &health, &status, &r.cars, &r.updated); err != nil {
		return row{}, err
	}
	if health.Valid {
		h := int(health.Int64)
		r.health = &h
	}
	if status.Valid {
		r.status = &status.String
	}
	return r, nil
}

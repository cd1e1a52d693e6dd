package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
)

// Postgres is a Repository backed by the hosted speed_bumps table.
type Postgres struct {
	pool *pgxpool.Pool
	mode bump.Mode
}

// OpenPostgres builds a connection pool for url. A non-empty key replaces the
// password in url. The pool connects lazily; use Ping to check reachability.
func OpenPostgres(ctx context.Context, url, key string, mode bump.Mode) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("store: parse postgres url: %w: %v", ErrNotConfigured, err)
	}
	if key != "" {
		cfg.ConnConfig.Password = key
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = "bumpwatch"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: postgres pool: %w", err)
	}
	return &Postgres{pool: pool, mode: mode}, nil
}

// Migrate creates the speed_bumps table when it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS speed_bumps (
		id TEXT PRIMARY KEY,
		street_name TEXT NOT NULL,
		exact_location TEXT NOT NULL DEFAULT '',
		health INTEGER,
		status TEXT,
		car_count BIGINT NOT NULL DEFAULT 0,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return p.wrap("migrate", "", err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]bump.Record, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM speed_bumps ORDER BY last_updated DESC, id`)
	if err != nil {
		return nil, p.wrap("list", "", err)
	}
	defer rows.Close()

	var out []bump.Record
	for rows.Next() {
		r, err := scanPostgres(rows)
		if err != nil {
			return nil, p.wrap("list", "", err)
		}
		out = append(out, r.record(p.mode))
	}
	if err := rows.Err(); err != nil {
		return nil, p.wrap("list", "", err)
	}
	return out, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (bump.Record, error) {
	r, err := scanPostgres(p.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM speed_bumps WHERE id = $1`, id))
	return p.one("get", id, r, err)
}

func (p *Postgres) UpdateCondition(ctx context.Context, id string, c bump.Condition, at time.Time) (bump.Record, error) {
	health, status := conditionColumns(c)
	q := `UPDATE speed_bumps SET health = $2, last_updated = $3 WHERE id = $1 RETURNING ` + selectColumns
	arg := health
	if c.Kind() == bump.KindStatus {
		q = `UPDATE speed_bumps SET status = $2, last_updated = $3 WHERE id = $1 RETURNING ` + selectColumns
		arg = status
	}
	r, err := scanPostgres(p.pool.QueryRow(ctx, q, id, arg, at))
	return p.one("update", id, r, err)
}

func (p *Postgres) ApplyImpact(ctx context.Context, id string, damage int, vehicles int64, at time.Time) (bump.Record, error) {
	q := `UPDATE speed_bumps
		SET health = GREATEST($2::int, LEAST($3::int, COALESCE(health, $3::int) - $4::int)),
		    car_count = car_count + $5,
		    last_updated = $6
		WHERE id = $1 RETURNING ` + selectColumns
	args := []any{id, bump.MinHealth, bump.MaxHealth, damage, vehicles, at}
	if p.mode == bump.ModeStatus {
		q = `UPDATE speed_bumps SET car_count = car_count + $2, last_updated = $3
			WHERE id = $1 RETURNING ` + selectColumns
		args = []any{id, vehicles, at}
	}
	r, err := scanPostgres(p.pool.QueryRow(ctx, q, args...))
	return p.one("impact", id, r, err)
}

func (p *Postgres) Insert(ctx context.Context, recs ...bump.Record) (int, error) {
	batch := &pgx.Batch{}
	for _, r := range recs {
		health, status := conditionColumns(r.Condition)
		batch.Queue(`INSERT INTO speed_bumps (`+selectColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
			r.ID, r.StreetName, r.ExactLocation, health, status, r.CarCount, r.LastUpdated)
	}
	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()

	added := 0
	for _, r := range recs {
		tag, err := br.Exec()
		if err != nil {
			return added, p.wrap("insert", r.ID, err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("store: ping: %w: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) one(op, id string, r row, err error) (bump.Record, error) {
	if err != nil {
		return bump.Record{}, p.wrap(op, id, err)
	}
	return r.record(p.mode), nil
}

// wrap classifies err: no rows is ErrNotFound, a server-side rejection keeps
// its own error, anything else (dial, timeout, closed pool) is ErrUnavailable.
func (p *Postgres) wrap(op, id string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("store: %s %q: %w", op, id, ErrNotFound)
	case errors.As(err, &pgErr):
		return fmt.Errorf("store: %s %q: %w", op, id, err)
	default:
		return fmt.Errorf("store: %s %q: %w: %v", op, id, ErrUnavailable, err)
	}
}

func scanPostgres(sc pgx.Row) (row, error) {
	var (
		r      row
		health pgtype.Int4
		status pgtype.Text
	)
	if err := sc.Scan(&r.id, &r.street, &r.location, &health, &status, &r.cars, &r.updated); err != nil {
		return row{}, err
	}
	if health.Valid {
		h := int(health.Int32)
		r.health = &h
	}
	if status.Valid {
		r.status = &status.String
	}
	return r, nil
}

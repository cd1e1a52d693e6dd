package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
)

// Sentinel errors. Backends wrap them so callers can use errors.Is.
var (
	ErrNotFound      = errors.New("speed bump not found")
	ErrUnavailable   = errors.New("record store unavailable")
	ErrNotConfigured = errors.New("record store not configured")
)

// Repository reads and writes speed-bump records.
type Repository interface {
	// List returns every record, newest last_updated first.
	List(ctx context.Context) ([]bump.Record, error)

	// Get returns one record or ErrNotFound.
	Get(ctx context.Context, id string) (bump.Record, error)

	// UpdateCondition writes c (already validated) and sets last_updated to at.
	UpdateCondition(ctx context.Context, id string, c bump.Condition, at time.Time) (bump.Record, error)

	// ApplyImpact subtracts damage from health (health mode only), adds
	// vehicles to car_count and sets last_updated to at.
	ApplyImpact(ctx context.Context, id string, damage int, vehicles int64, at time.Time) (bump.Record, error)

	// Insert adds records whose id is not present yet. Existing ids are left
	// untouched. It returns the number of rows added.
	Insert(ctx context.Context, recs ...bump.Record) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Options selects and parameterises a backend.
type Options struct {
	Backend string
	Mode    bump.Mode

	// Path is the SQLite database file.
	Path string

	// URL and Key are the hosted database's connection string and service
	// key. The key is used as the connection password.
	URL string
	Key string

	// AutoMigrate creates the speed_bumps table on Postgres when missing.
	// SQLite always migrates.
	AutoMigrate bool

	// SeedDemo loads bump.DemoRecords into an empty memory or SQLite store.
	SeedDemo bool
}

// Open returns a Repository for o. It always returns a usable Repository:
// when the backend cannot be configured it returns an Unconfigured one
// together with the configuration error, which the caller should log.
func Open(ctx context.Context, o Options) (Repository, error) {
	if !o.Mode.Valid() {
		o.Mode = bump.ModeHealth
	}
	switch o.Backend {
	case "", BackendMemory:
		var seed []bump.Record
		if o.SeedDemo {
			seed = bump.DemoRecords(time.Now().UTC(), o.Mode)
		}
		return NewMemory(o.Mode, seed...), nil

	case BackendSQLite:
		s, err := OpenSQLite(ctx, o.Path, o.Mode)
		if err != nil {
			return NewUnconfigured(err), err
		}
		if o.SeedDemo {
			if _, err := s.Insert(ctx, bump.DemoRecords(time.Now().UTC(), o.Mode)...); err != nil {
				return s, fmt.Errorf("store: seed demo records: %w", err)
			}
		}
		return s, nil

	case BackendPostgres:
		if o.URL == "" {
			err := fmt.Errorf("store: postgres service url is empty: %w", ErrNotConfigured)
			return NewUnconfigured(err), err
		}
		p, err := OpenPostgres(ctx, o.URL, o.Key, o.Mode)
		if err != nil {
			return NewUnconfigured(err), err
		}
		if o.AutoMigrate {
			if err := p.Migrate(ctx); err != nil {
				return p, err
			}
		}
		return p, nil

	default:
		err := fmt.Errorf("store: unknown backend %q: %w", o.Backend, ErrNotConfigured)
		return NewUnconfigured(err), err
	}
}

// sortNewestFirst orders recs by LastUpdated descending, then by ID.
func sortNewestFirst(recs []bump.Record) {
	slices.SortStableFunc(recs, func(a, b bump.Record) int {
		if c := b.LastUpdated.Compare(a.LastUpdated); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/metrics"
	"github.com/bumpwatch/bumpwatch/server/internal/store"
)

// Listener is called after every successful write, synchronously and in
// subscription order. Listeners must not block.
type Listener func(bump.Change)

// Options configures a Tracker.
type Options struct {
	Mode          bump.Mode
	FoldCritical  bool
	SpeedLimitKmh float64
	Metrics       *metrics.Metrics
}

// Tracker wraps a store.Repository.
type Tracker struct {
	repo store.Repository
	opts Options
	now  func() time.Time
	mu   sync.RWMutex
	subs []Listener
}

// New returns a Tracker over repo.
func New(repo store.Repository, opts Options) *Tracker {
	if !opts.Mode.Valid() {
		opts.Mode = bump.ModeHealth
	}
	if opts.SpeedLimitKmh <= 0 {
		opts.SpeedLimitKmh = bump.DefaultSpeedLimitKmh
	}
	return &Tracker{repo: repo, opts: opts, now: func() time.Time { return time.Now().UTC() }}
}

// Mode reports the authoritative condition variant.
func (t *Tracker) Mode() bump.Mode { return t.opts.Mode }

// FoldCritical reports whether the damaged filter includes critical records.
func (t *Tracker) FoldCritical() bool { return t.opts.FoldCritical }

// Subscribe registers fn for change notifications.
func (t *Tracker) Subscribe(fn Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, fn)
}

// List returns the records passing f, newest first.
func (t *Tracker) List(ctx context.Context, f bump.Filter) ([]bump.Record, error) {
	all, err := t.repo.List(ctx)
	t.opts.Metrics.Fetch(err)
	if err != nil {
		return nil, err
	}
	t.opts.Metrics.Observe(bump.Summarize(all))
	return bump.Select(all, f, t.opts.FoldCritical), nil
}

// Summary counts all records by status.
func (t *Tracker) Summary(ctx context.Context) (bump.Summary, error) {
	all, err := t.repo.List(ctx)
	t.opts.Metrics.Fetch(err)
	if err != nil {
		return bump.Summary{}, err
	}
	s := bump.Summarize(all)
	t.opts.Metrics.Observe(s)
	return s, nil
}

// Get returns one record.
func (t *Tracker) Get(ctx context.Context, id string) (bump.Record, error) {
	return t.repo.Get(ctx, id)
}

// Ping checks the store is reachable.
func (t *Tracker) Ping(ctx context.Context) error { return t.repo.Ping(ctx) }

// UpdateCondition validates c and writes it with last_updated set to now.
// Invalid input returns a *bump.ValidationError without touching the store.
func (t *Tracker) UpdateCondition(ctx context.Context, id string, c bump.Condition) (bump.Record, error) {
	if id == "" {
		t.opts.Metrics.Update("invalid")
		return bump.Record{}, &bump.ValidationError{Field: "id", Reason: "is required"}
	}
	if err := t.opts.Mode.Accept(c); err != nil {
		t.opts.Metrics.Update("invalid")
		return bump.Record{}, err
	}

	at := t.now()
	rec, err := t.repo.UpdateCondition(ctx, id, c, at)
	if err != nil {
		t.opts.Metrics.Update(classify(err))
		slog.Warn("tracker: update failed", "id", id, "condition", c.String(), "err", err)
		return bump.Record{}, err
	}
	t.opts.Metrics.Update("ok")
	slog.Info("tracker: condition updated", "id", id, "condition", rec.Condition.String())
	t.notify(bump.Change{Record: rec, Source: bump.SourceOperator, At: at})
	return rec, nil
}

// Impact is one batch of crossings observed on a bump.
type Impact struct {
	BumpID    string
	Vehicles  int64
	Damage    float64   // precomputed health damage
	SpeedsKmh []float64 // per-vehicle speeds, converted with the speed limit

	// ObservedAt is when the crossings were counted. It becomes the
	// record's last_updated; zero or future times mean now.
	ObservedAt time.Time
}

// TotalDamage combines precomputed damage with damage from speeds.
func (t *Tracker) TotalDamage(im Impact) float64 {
	total := im.Damage
	for _, s := range im.SpeedsKmh {
		total += bump.ImpactDamage(s, t.opts.SpeedLimitKmh)
	}
	return total
}

// ApplyImpact wears the bump down by the impact's damage and counts its
// vehicles.
func (t *Tracker) ApplyImpact(ctx context.Context, im Impact) (bump.Record, error) {
	switch {
	case im.BumpID == "":
		t.opts.Metrics.Impact("invalid", 0, 0)
		return bump.Record{}, &bump.ValidationError{Field: "bump_id", Reason: "is required"}
	case im.Vehicles < 0:
		t.opts.Metrics.Impact("invalid", 0, 0)
		return bump.Record{}, &bump.ValidationError{Field: "vehicles", Reason: fmt.Sprintf("must not be negative, got %d", im.Vehicles)}
	case im.Damage < 0:
		t.opts.Metrics.Impact("invalid", 0, 0)
		return bump.Record{}, &bump.ValidationError{Field: "damage", Reason: fmt.Sprintf("must not be negative, got %v", im.Damage)}
	}

	points := bump.DamagePoints(t.TotalDamage(im))
	at := t.now()
	if !im.ObservedAt.IsZero() && im.ObservedAt.Before(at) {
		at = im.ObservedAt.UTC()
	}
	rec, err := t.repo.ApplyImpact(ctx, im.BumpID, points, im.Vehicles, at)
	if err != nil {
		t.opts.Metrics.Impact(classify(err), 0, 0)
		return bump.Record{}, err
	}
	t.opts.Metrics.Impact("ok", points, im.Vehicles)
	slog.Debug("tracker: impact applied",
		"id", im.BumpID, "vehicles", im.Vehicles, "damage", points, "condition", rec.Condition.String())
	t.notify(bump.Change{Record: rec, Source: bump.SourceImpact, At: at})
	return rec, nil
}

func (t *Tracker) notify(c bump.Change) {
	t.mu.RLock()
	subs := append([]Listener(nil), t.subs...)
	t.mu.RUnlock()
	for _, fn := range subs {
		fn(c)
	}
}

func classify(err error) string {
	var ve *bump.ValidationError
	switch {
	case errors.As(err, &ve):
		return "invalid"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

package alerts

import (
	"context"
	"log/slog"
	"time"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/refresh"
)

// Lister is the read side a Sweep needs; *tracker.Tracker satisfies it.
type Lister interface {
	List(ctx context.Context, f bump.Filter) ([]bump.Record, error)
}

// Sweep re-evaluates every record on a timer. Change notifications only
// cover writes made through this server, so time-based rules
// (stale_hours), freshly reloaded rules and rows written to the store by
// other clients are picked up here.
type Sweep struct {
	engine *Engine
	poller *refresh.Poller[[]bump.Record]
}

// NewSweep returns a Sweep that lists src every interval and feeds the
// records to e.
func NewSweep(e *Engine, src Lister, interval time.Duration) *Sweep {
	s := &Sweep{engine: e}
	fetch := func(ctx context.Context) ([]bump.Record, error) {
		return src.List(ctx, bump.FilterAll)
	}
	s.poller = refresh.New(interval, fetch, s.deliver)
	return s
}

// Run sweeps immediately, then on every tick and Trigger until ctx is
// cancelled.
func (s *Sweep) Run(ctx context.Context) { s.poller.Run(ctx) }

// Trigger requests a sweep now, e.g. after the rules were reloaded.
func (s *Sweep) Trigger() { s.poller.Trigger(refresh.ReasonInvalidate) }

func (s *Sweep) deliver(r refresh.Result[[]bump.Record]) {
	if r.Err != nil {
		slog.Warn("alerts: sweep failed", "reason", r.Reason, "err", r.Err)
		return
	}
	s.engine.EvaluateAll(r.Value)
}

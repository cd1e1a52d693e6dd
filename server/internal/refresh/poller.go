package refresh

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the timer period when none is given.
const DefaultInterval = 5 * time.Second

// State is the poller's lifecycle state.
type State int

// Poller states.
const (
	Idle State = iota
	Fetching
)

func (s State) String() string {
	if s == Fetching {
		return "fetching"
	}
	return "idle"
}

// Reason says why a fetch started.
type Reason string

// Fetch reasons.
const (
	ReasonMount      Reason = "mount"
	ReasonFilter     Reason = "filter"
	ReasonRefresh    Reason = "refresh"
	ReasonInvalidate Reason = "invalidate"
	ReasonTick       Reason = "tick"
)

// Result is the outcome of one fetch.
type Result[T any] struct {
	Seq    uint64
	Reason Reason
	Value  T
	Err    error
	At     time.Time
}

// Poller drives fetches of T and hands results to a deliver callback.
type Poller[T any] struct {
	interval time.Duration
	fetch    func(context.Context) (T, error)
	deliver  func(Result[T])
	now      func() time.Time

	triggers chan Reason

	mu        sync.Mutex
	inFlight  int
	seq       uint64
	delivered uint64
	stopped   bool
}

// New returns a Poller. interval <= 0 means DefaultInterval. deliver is
// called from fetch goroutines, one call at a time, and must not call back
// into the Poller.
func New[T any](interval time.Duration, fetch func(context.Context) (T, error), deliver func(Result[T])) *Poller[T] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller[T]{
		interval: interval,
		fetch:    fetch,
		deliver:  deliver,
		now:      time.Now,
		triggers: make(chan Reason, 8),
	}
}

// Interval returns the timer period.
func (p *Poller[T]) Interval() time.Duration { return p.interval }

// State reports Fetching while any fetch is in flight.
func (p *Poller[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight > 0 {
		return Fetching
	}
	return Idle
}

// Trigger requests a fetch. It never blocks; triggers beyond the buffer
// are dropped since a fetch is already queued.
func (p *Poller[T]) Trigger(r Reason) {
	select {
	case p.triggers <- r:
	default:
	}
}

// Run mounts the poller: it fetches immediately, then on every trigger and
// tick until ctx is cancelled. It waits for in-flight fetches before
// returning.
func (p *Poller[T]) Run(ctx context.Context) {
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
	}()

	start := func(r Reason) {
		seq := p.begin()
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.run(ctx, seq, r)
		}()
	}

	start(ReasonMount)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case r := <-p.triggers:
			start(r)
		case <-t.C:
			start(ReasonTick)
		}
	}
}

func (p *Poller[T]) begin() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight++
	p.seq++
	return p.seq
}

func (p *Poller[T]) run(ctx context.Context, seq uint64, r Reason) {
	v, err := p.fetch(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight--
	if ctx.Err() != nil || p.stopped || seq < p.delivered {
		return
	}
	p.delivered = seq
	p.deliver(Result[T]{Seq: seq, Reason: r, Value: v, Err: err, At: p.now()})
}

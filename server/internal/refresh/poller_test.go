package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// collector gathers delivered results.
type collector struct {
	mu  sync.Mutex
	got []Result[int]
	ch  chan Result[int]
}

func newCollector() *collector { return &collector{ch: make(chan Result[int], 64)} }

func (c *collector) deliver(r Result[int]) {
	c.mu.Lock()
	c.got = append(c.got, r)
	c.mu.Unlock()
	c.ch <- r
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func (c *collector) next(t *testing.T) Result[int] {
	t.Helper()
	select {
	case r := <-c.ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a delivery")
		return Result[int]{}
	}
}

func startPoller(t *testing.T, p *Poller[int]) (cancel func(), done <-chan struct{}) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	d := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(d)
	}()
	t.Cleanup(func() {
		cancelFn()
		<-d
	})
	return cancelFn, d
}

func TestRun_FetchesOnMount(t *testing.T) {
	c := newCollector()
	p := New(time.Hour, func(context.Context) (int, error) { return 42, nil }, c.deliver)
	startPoller(t, p)

	r := c.next(t)
	if r.Reason != ReasonMount {
		t.Errorf("reason: got %q, want mount", r.Reason)
	}
	if r.Value != 42 || r.Err != nil {
		t.Errorf("result: got (%d, %v), want (42, nil)", r.Value, r.Err)
	}
}

func TestTrigger_StartsFetch(t *testing.T) {
	c := newCollector()
	var n atomic.Int32
	p := New(time.Hour, func(context.Context) (int, error) { return int(n.Add(1)), nil }, c.deliver)
	startPoller(t, p)
	c.next(t) // mount

	p.Trigger(ReasonFilter)
	r := c.next(t)
	if r.Reason != ReasonFilter || r.Value != 2 {
		t.Errorf("got reason=%q value=%d, want filter/2", r.Reason, r.Value)
	}

	p.Trigger(ReasonRefresh)
	if r := c.next(t); r.Reason != ReasonRefresh {
		t.Errorf("reason: got %q, want refresh", r.Reason)
	}
}

func TestRun_TicksOnInterval(t *testing.T) {
	c := newCollector()
	p := New(20*time.Millisecond, func(context.Context) (int, error) { return 0, nil }, c.deliver)
	startPoller(t, p)

	c.next(t) // mount
	if r := c.next(t); r.Reason != ReasonTick {
		t.Errorf("reason: got %q, want tick", r.Reason)
	}
}

func TestRun_FetchErrorIsDelivered(t *testing.T) {
	c := newCollector()
	boom := errors.New("store unavailable")
	p := New(time.Hour, func(context.Context) (int, error) { return 0, boom }, c.deliver)
	startPoller(t, p)

	if r := c.next(t); !errors.Is(r.Err, boom) {
		t.Errorf("err: got %v, want %v", r.Err, boom)
	}
}

func TestRun_StaleResultDiscarded(t *testing.T) {
	c := newCollector()
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context) (int, error) {
		n := int(calls.Add(1))
		if n == 1 {
			<-release // the mount fetch is slow
		}
		return n, nil
	}
	p := New(time.Hour, fetch, c.deliver)
	startPoller(t, p)

	// Wait until the slow mount fetch is in flight.
	deadline := time.Now().Add(2 * time.Second)
	for p.State() != Fetching {
		if time.Now().After(deadline) {
			t.Fatal("poller never entered Fetching")
		}
		time.Sleep(time.Millisecond)
	}

	p.Trigger(ReasonRefresh)
	r := c.next(t)
	if r.Value != 2 || r.Seq != 2 {
		t.Fatalf("first delivery: got value=%d seq=%d, want the newer fetch", r.Value, r.Seq)
	}

	close(release)
	for p.State() != Idle {
		if time.Now().After(deadline) {
			t.Fatal("poller never returned to Idle")
		}
		time.Sleep(time.Millisecond)
	}
	if n := c.count(); n != 1 {
		t.Errorf("deliveries: got %d, want 1 (stale mount result dropped)", n)
	}
}

func TestRun_CancelStopsTimerAndDeliveries(t *testing.T) {
	c := newCollector()
	var fetches atomic.Int32
	p := New(10*time.Millisecond, func(context.Context) (int, error) {
		fetches.Add(1)
		return 0, nil
	}, c.deliver)
	cancel, done := startPoller(t, p)
	c.next(t)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	after := fetches.Load()
	time.Sleep(50 * time.Millisecond)
	if fetches.Load() != after {
		t.Errorf("fetches continued after unmount: %d → %d", after, fetches.Load())
	}
	if p.State() != Idle {
		t.Errorf("state after unmount: got %s, want idle", p.State())
	}
}

func TestNew_DefaultInterval(t *testing.T) {
	p := New(0, func(context.Context) (int, error) { return 0, nil }, func(Result[int]) {})
	if p.Interval() != DefaultInterval {
		t.Errorf("interval: got %v, want %v", p.Interval(), DefaultInterval)
	}
}

package compute

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/bumpwatch/bumpwatch/agent/internal/scraper"
)

// uptimeWindow is the number of recent scrape outcomes tracked for uptime %.
const uptimeWindow = 20

// Impact is the wear one detector saw on one bump between two scrapes.
type Impact struct {
	DetectorID string
	BumpID     string
	Vehicles   int64
	Damage     float64
	ObservedAt time.Time
}

// Engine keeps the previous counter totals per detector and bump and turns
// each new scrape into deltas.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	detectors map[string]*detectorState
}

// NewEngine returns a ready-to-use Engine.
func NewEngine() *Engine {
	return &Engine{detectors: make(map[string]*detectorState)}
}

// Process ingests a ScrapeResult and returns the impacts since the previous
// scrape, ordered by bump id.
//
// A bump seen for the first time only records its baseline. A counter that
// went backwards means the detector restarted; its current value is taken
// as the delta. Bumps with no new vehicles and no new damage are omitted.
func (e *Engine) Process(res *scraper.ScrapeResult, now time.Time) []Impact {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateFor(res.DetectorID)
	st.recordScrape(res.Err == nil)

	if res.Err != nil {
		slog.Warn("compute: scrape failed, keeping baselines",
			"detector", res.DetectorID, "err", res.Err, "uptime_pct", st.uptimePct())
		return nil
	}

	var out []Impact
	for id, cur := range res.Bumps {
		prev, ok := st.prev[id]
		st.prev[id] = cur
		if !ok {
			continue
		}
		vehicles := int64(math.Round(deltaOf(cur.Vehicles, prev.Vehicles)))
		damage := deltaOf(cur.Damage, prev.Damage)
		if vehicles == 0 && damage == 0 {
			continue
		}
		out = append(out, Impact{
			DetectorID: res.DetectorID,
			BumpID:     id,
			Vehicles:   vehicles,
			Damage:     damage,
			ObservedAt: now,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BumpID < out[j].BumpID })
	return out
}

// Uptime returns the share of recent scrapes of detectorID that succeeded,
// as a percentage. An unseen detector reports 100.
func (e *Engine) Uptime(detectorID string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.detectors[detectorID]; ok {
		return st.uptimePct()
	}
	return 100
}

// Forget drops every baseline of detectorID. The next scrape starts fresh.
func (e *Engine) Forget(detectorID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.detectors, detectorID)
}

// detectorState holds per-bump baselines and uptime history.
type detectorState struct {
	prev    map[string]scraper.Counters
	history []bool // scrape outcomes, newest last
}

func (e *Engine) stateFor(id string) *detectorState {
	if st, ok := e.detectors[id]; ok {
		return st
	}
	st := &detectorState{prev: make(map[string]scraper.Counters)}
	e.detectors[id] = st
	return st
}

func (st *detectorState) recordScrape(success bool) {
	if len(st.history) >= uptimeWindow {
		st.history = st.history[1:]
	}
	st.history = append(st.history, success)
}

func (st *detectorState) uptimePct() float64 {
	if len(st.history) == 0 {
		return 100
	}
	var ok int
	for _, s := range st.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(st.history)) * 100
}

// deltaOf returns the growth of a monotonic counter. A smaller current
// value is a reset, so current itself is the growth since the reset.
func deltaOf(current, previous float64) float64 {
	if current < previous {
		return current
	}
	return current - previous
}

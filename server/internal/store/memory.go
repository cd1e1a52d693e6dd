package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
)

// Memory is a thread-safe in-process Repository keyed by record ID.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]bump.Record
	mode   bump.Mode
	closed bool
}

// NewMemory returns a Memory holding seed.
func NewMemory(mode bump.Mode, seed ...bump.Record) *Memory {
	m := &Memory{data: make(map[string]bump.Record, len(seed)), mode: mode}
	for _, r := range seed {
		m.data[r.ID] = r
	}
	return m
}

func (m *Memory) List(_ context.Context) ([]bump.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed
	}
	out := make([]bump.Record, 0, len(m.data))
	for _, r := range m.data {
		out = append(out, r)
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) Get(_ context.Context, id string) (bump.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return bump.Record{}, errClosed
	}
	r, ok := m.data[id]
	if !ok {
		return bump.Record{}, fmt.Errorf("store: get %q: %w", id, ErrNotFound)
	}
	return r, nil
}

func (m *Memory) UpdateCondition(_ context.Context, id string, c bump.Condition, at time.Time) (bump.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return bump.Record{}, errClosed
	}
	r, ok := m.data[id]
	if !ok {
		return bump.Record{}, fmt.Errorf("store: update %q: %w", id, ErrNotFound)
	}
	r.Condition = c
	r.LastUpdated = at
	m.data[id] = r
	return r, nil
}

func (m *Memory) ApplyImpact(_ context.Context, id string, damage int, vehicles int64, at time.Time) (bump.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return bump.Record{}, errClosed
	}
	r, ok := m.data[id]
	if !ok {
		return bump.Record{}, fmt.Errorf("store: impact %q: %w", id, ErrNotFound)
	}
	if m.mode == bump.ModeHealth {
		r.Condition = bump.Wear(r.Condition, damage)
	}
	r.CarCount += vehicles
	r.LastUpdated = at
	m.data[id] = r
	return r, nil
}

func (m *Memory) Insert(_ context.Context, recs ...bump.Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errClosed
	}
	added := 0
	for _, r := range recs {
		if _, exists := m.data[r.ID]; exists {
			continue
		}
		m.data[r.ID] = r
		added++
	}
	return added, nil
}

func (m *Memory) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errClosed
	}
	return nil
}

// Close releases the store. Later calls fail with ErrUnavailable.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Count returns the number of records held.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

var errClosed = fmt.Errorf("store: closed: %w", ErrUnavailable)

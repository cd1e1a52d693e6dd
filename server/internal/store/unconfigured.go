package store

import (
	"context"
	"errors"
	"time"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
)

// Unconfigured is the Repository used when connection parameters are
// missing. Every call fails with an error wrapping ErrNotConfigured.
type Unconfigured struct {
	err error
}

// NewUnconfigured returns an Unconfigured repository reporting cause.
func NewUnconfigured(cause error) *Unconfigured {
	if cause == nil || !errors.Is(cause, ErrNotConfigured) {
		cause = errors.Join(ErrNotConfigured, cause)
	}
	return &Unconfigured{err: cause}
}

func (u *Unconfigured) List(context.Context) ([]bump.Record, error) { return nil, u.err }

func (u *Unconfigured) Get(context.Context, string) (bump.Record, error) {
	return bump.Record{}, u.err
}

func (u *Unconfigured) UpdateCondition(context.Context, string, bump.Condition, time.Time) (bump.Record, error) {
	return bump.Record{}, u.err
}

func (u *Unconfigured) ApplyImpact(context.Context, string, int, int64, time.Time) (bump.Record, error) {
	return bump.Record{}, u.err
}

func (u *Unconfigured) Insert(context.Context, ...bump.Record) (int, error) { return 0, u.err }
func (u *Unconfigured) Ping(context.Context) error                        { return u.err }
func (u *Unconfigured) Close() error                                      { return nil }

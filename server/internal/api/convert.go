package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/store"
)

// ToBump maps a record to its JSON representation.
func ToBump(rec bump.Record, now time.Time) BumpResponse {
	out := BumpResponse{
		ID:            rec.ID,
		StreetName:    rec.StreetName,
		ExactLocation: rec.ExactLocation,
		Status:        rec.Status(),
		CarCount:      rec.CarCount,
		LastUpdated:   rec.LastUpdated.UTC().Format(time.RFC3339),
		Hints:         computeHints(rec, now),
	}
	if h, ok := rec.Condition.Health(); ok {
		pct := bump.HealthPercent(h)
		out.Health = &h
		out.HealthPct = &pct
	}
	return out
}

// BuildList maps already filtered records to a ListResponse.
func BuildList(recs []bump.Record, f bump.Filter, now time.Time) ListResponse {
	out := ListResponse{
		Filter:      f,
		Count:       len(recs),
		Bumps:       make([]BumpResponse, 0, len(recs)),
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}
	for _, r := range recs {
		out.Bumps = append(out.Bumps, ToBump(r, now))
	}
	if len(recs) == 0 {
		out.EmptyMessage = f.EmptyMessage()
	}
	return out
}

// Condition converts an update body into a Condition. It rejects bodies
// that set both or neither field.
func (u UpdateRequest) Condition() (bump.Condition, error) {
	switch {
	case u.Health != nil && u.Status != nil:
		return bump.Condition{}, &bump.ValidationError{Field: "condition", Reason: "set health or status, not both"}
	case u.Health != nil:
		return bump.HealthCondition(*u.Health), nil
	case u.Status != nil:
		s, err := bump.ParseStatus(*u.Status)
		if err != nil {
			return bump.Condition{}, err
		}
		return bump.StatusCondition(s), nil
	default:
		return bump.Condition{}, &bump.ValidationError{Field: "condition", Reason: "health or status is required"}
	}
}

// ErrorStatus maps a tracker error to an HTTP status code.
func ErrorStatus(err error) int {
	var ve *bump.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrNotConfigured), errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

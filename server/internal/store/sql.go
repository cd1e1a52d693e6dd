package store

import (
	"time"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
)

// Column list shared by the SQL backends, in scan order.
const selectColumns = `id, street_name, exact_location, health, status, car_count, last_updated`

// row is one speed_bumps row with nullable condition columns.
type row struct {
	id       string
	street   string
	location string
	health   *int
	status   *string
	cars     int64
	updated  time.Time
}

func (r row) record(mode bump.Mode) bump.Record {
	return bump.Record{
		ID:            r.id,
		StreetName:    r.street,
		ExactLocation: r.location,
		Condition:     mode.Condition(r.health, r.status),
		CarCount:      r.cars,
		LastUpdated:   r.updated.UTC(),
	}
}

// conditionColumns splits c into the (health, status) column values. The
// variant c does not carry is written as NULL.
func conditionColumns(c bump.Condition) (health, status any) {
	if h, ok := c.Health(); ok {
		return h, nil
	}
	if c.Kind() == bump.KindStatus {
		return nil, string(c.Status())
	}
	return nil, nil
}

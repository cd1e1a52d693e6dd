package alerts

import (
	"strconv"
	"strings"
	"time"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
)

// evalCondition evaluates a rule condition string against a record.
//
// Supported expressions (field operator value):
//
//	health < 3000
//	health_pct <= 50
//	car_count > 50000
//	stale_hours > 72
//	status == Critical
//	status != Good
//
// Health fields never fire for a status-variant record.
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, rec bump.Record, now time.Time) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if field == "status" {
		want, err := bump.ParseStatus(rhs)
		if err != nil {
			return false, 0
		}
		got := rec.Status()
		switch op {
		case "==":
			return got == want, float64(got.Rank())
		case "!=":
			return got != want, float64(got.Rank())
		}
		return false, 0
	}

	v, ok := numericField(field, rec, now)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value for rec.
func numericField(field string, rec bump.Record, now time.Time) (float64, bool) {
	switch field {
	case "health", "health_pct":
		h, ok := rec.Condition.Health()
		if !ok {
			return 0, false
		}
		if field == "health_pct" {
			return bump.HealthPercent(h), true
		}
		return float64(h), true
	case "car_count":
		return float64(rec.CarCount), true
	case "stale_hours":
		if rec.LastUpdated.IsZero() {
			return 0, false
		}
		return now.Sub(rec.LastUpdated).Hours(), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}

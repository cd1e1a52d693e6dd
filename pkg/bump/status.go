package bump

import (
	"fmt"
	"strings"
)

// Status is the maintenance tier of a speed bump.
type Status string

// Status constants.
const (
	StatusGood     Status = "Good"
	StatusDamaged  Status = "Damaged"
	StatusCritical Status = "Critical"
)

// Health bounds and the breakpoints that map health to a Status.
const (
	MinHealth = 0
	MaxHealth = 10000

	ThresholdGood    = 7000
	ThresholdDamaged = 3000
)

// Statuses lists every status from best to worst.
var Statuses = []Status{StatusGood, StatusDamaged, StatusCritical}

// DeriveStatus maps a health value to its Status. It is defined for every
// float64: values above the range are Good, values below it (and NaN) are
// Critical.
func DeriveStatus(health float64) Status {
	switch {
	case health >= ThresholdGood:
		return StatusGood
	case health >= ThresholdDamaged:
		return StatusDamaged
	default:
		return StatusCritical
	}
}

// Rank orders statuses Critical(0) < Damaged(1) < Good(2). Unknown values
// rank below Critical.
func (s Status) Rank() int {
	switch s {
	case StatusGood:
		return 2
	case StatusDamaged:
		return 1
	case StatusCritical:
		return 0
	default:
		return -1
	}
}

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool { return s.Rank() >= 0 }

// ParseStatus accepts a status name in any letter case.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
}

// HealthPercent returns health as a 0-100 percentage for progress bars.
func HealthPercent(health int) float64 {
	p := float64(health) / MaxHealth * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

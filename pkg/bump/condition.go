package bump

import (
	"encoding/json"
	"fmt"
)

// Kind identifies which variant a Condition carries.
type Kind uint8

// Condition kinds.
const (
	KindNone Kind = iota
	KindHealth
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindHealth:
		return "health"
	case KindStatus:
		return "status"
	default:
		return "none"
	}
}

// Condition is either a numeric health (status derived) or an enumerated
// status. The zero value carries nothing and reports KindNone.
type Condition struct {
	kind   Kind
	health int
	status Status
}

// HealthCondition returns a health-variant condition. The value is not
// range-checked; call Validate before persisting it.
func HealthCondition(h int) Condition {
	return Condition{kind: KindHealth, health: h}
}

// StatusCondition returns a status-variant condition.
func StatusCondition(s Status) Condition {
	return Condition{kind: KindStatus, status: s}
}

// Kind reports the variant.
func (c Condition) Kind() Kind { return c.kind }

// Health returns the health value and true for the health variant.
func (c Condition) Health() (int, bool) {
	if c.kind != KindHealth {
		return 0, false
	}
	return c.health, true
}

// Status returns the stored status for the status variant, or the status
// derived from health for the health variant.
func (c Condition) Status() Status {
	switch c.kind {
	case KindHealth:
		return DeriveStatus(float64(c.health))
	case KindStatus:
		return c.status
	default:
		return ""
	}
}

// Validate checks the condition is writable: health within
// [MinHealth, MaxHealth], status one of the known values.
func (c Condition) Validate() error {
	switch c.kind {
	case KindHealth:
		return ValidateHealth(c.health)
	case KindStatus:
		if !c.status.Valid() {
			return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", c.status)}
		}
		return nil
	default:
		return &ValidationError{Field: "condition", Reason: "either health or status is required"}
	}
}

func (c Condition) String() string {
	switch c.kind {
	case KindHealth:
		return fmt.Sprintf("health=%d (%s)", c.health, c.Status())
	case KindStatus:
		return "status=" + string(c.status)
	default:
		return "none"
	}
}

// MarshalJSON encodes the condition as {"health":N,"status":"..."} for the
// health variant and {"status":"..."} for the status variant.
func (c Condition) MarshalJSON() ([]byte, error) {
	type wire struct {
		Health *int   `json:"health,omitempty"`
		Status Status `json:"status,omitempty"`
	}
	w := wire{Status: c.Status()}
	if h, ok := c.Health(); ok {
		w.Health = &h
	}
	return json.Marshal(w)
}

// ValidateHealth rejects values outside [MinHealth, MaxHealth].
func ValidateHealth(h int) error {
	if h < MinHealth || h > MaxHealth {
		return &ValidationError{
			Field:  "health",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinHealth, MaxHealth, h),
		}
	}
	return nil
}

// ValidationError is returned for input that must be rejected before any
// store call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Mode selects the authoritative condition variant of a deployment.
type Mode string

// Supported modes.
const (
	ModeHealth Mode = "health"
	ModeStatus Mode = "status"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ModeHealth || m == ModeStatus }

// Kind returns the condition kind this mode persists.
func (m Mode) Kind() Kind {
	if m == ModeStatus {
		return KindStatus
	}
	return KindHealth
}

// Condition adapts raw storage columns into the authoritative variant.
// In health mode a missing health reads as MaxHealth; in status mode a
// missing or unrecognised status reads as Good.
func (m Mode) Condition(health *int, status *string) Condition {
	if m == ModeStatus {
		if status != nil {
			if s, err := ParseStatus(*status); err == nil {
				return StatusCondition(s)
			}
		}
		return StatusCondition(StatusGood)
	}
	if health != nil {
		return HealthCondition(*health)
	}
	return HealthCondition(MaxHealth)
}

// Accept validates c for writing under mode m.
func (m Mode) Accept(c Condition) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Kind() != m.Kind() {
		return &ValidationError{
			Field:  c.Kind().String(),
			Reason: fmt.Sprintf("this deployment records %s, not %s", m.Kind(), c.Kind()),
		}
	}
	return nil
}

package api

import "github.com/bumpwatch/bumpwatch/pkg/bump"

// BumpResponse is one record in GET /api/v1/bumps or GET /api/v1/bumps/{id}.
// Health and HealthPct are only present in health mode.
type BumpResponse struct {
	ID            string            `json:"id"`
	StreetName    string            `json:"street_name"`
	ExactLocation string            `json:"exact_location"`
	Status        bump.Status       `json:"status"`
	Health        *int              `json:"health,omitempty"`
	HealthPct     *float64          `json:"health_pct,omitempty"`
	CarCount      int64             `json:"car_count"`
	LastUpdated   string            `json:"last_updated"` // RFC3339
	Hints         []MaintenanceHint `json:"hints"`
}

// ListResponse is the payload for GET /api/v1/bumps and the WebSocket
// "bumps" event.
type ListResponse struct {
	Filter       bump.Filter    `json:"filter"`
	Count        int            `json:"count"`
	Bumps        []BumpResponse `json:"bumps"`
	EmptyMessage string         `json:"empty_message,omitempty"`
	GeneratedAt  string         `json:"generated_at"` // RFC3339
}

// SummaryResponse is the payload for GET /api/v1/summary.
type SummaryResponse struct {
	bump.Summary
	Mode         bump.Mode `json:"mode"`
	FoldCritical bool      `json:"fold_critical"`
}

// PreviewResponse is the payload for GET /api/v1/preview.
type PreviewResponse struct {
	Health    int         `json:"health"`
	HealthPct float64     `json:"health_pct"`
	Status    bump.Status `json:"status"`
}

// UpdateRequest is the body of PATCH /api/v1/bumps/{id}. Exactly one of
// Health and Status must be set.
type UpdateRequest struct {
	Health *int    `json:"health,omitempty"`
	Status *string `json:"status,omitempty"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State string    `json:"state"` // "ok" | "unavailable"
	Mode  bump.Mode `json:"mode"`
	Error string    `json:"error,omitempty"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

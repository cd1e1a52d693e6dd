package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/alerts"
)

// maxBodyBytes caps PATCH bodies.
const maxBodyBytes = 1 << 16

// Service is the record access the handler needs. *tracker.Tracker
// implements it.
type Service interface {
	Mode() bump.Mode
	FoldCritical() bool
	List(ctx context.Context, f bump.Filter) ([]bump.Record, error)
	Get(ctx context.Context, id string) (bump.Record, error)
	Summary(ctx context.Context) (bump.Summary, error)
	UpdateCondition(ctx context.Context, id string, c bump.Condition) (bump.Record, error)
	Ping(ctx context.Context) error
}

// AlertSource lists active and recently resolved alerts.
type AlertSource interface {
	Active() []*alerts.Alert
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	svc    Service
	alerts AlertSource
	mux    *http.ServeMux
	now    func() time.Time
}

// New creates a Handler over svc and registers all routes. al may be nil.
func New(svc Service, al AlertSource) http.Handler {
	h := &Handler{svc: svc, alerts: al, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/bumps", h.listBumps)
	h.mux.HandleFunc("/api/v1/bumps/", h.bump) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/summary", h.summary)
	h.mux.HandleFunc("/api/v1/preview", h.preview)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: 200 when the store answers, 503 otherwise.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := HealthResponse{State: "ok", Mode: h.svc.Mode()}
	if err := h.svc.Ping(r.Context()); err != nil {
		resp.State = "unavailable"
		resp.Error = err.Error()
		jsonResp(w, http.StatusServiceUnavailable, resp)
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// listBumps returns GET /api/v1/bumps?filter=: records passing the filter,
// newest first.
func (h *Handler) listBumps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	f, err := bump.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.svc.List(r.Context(), f)
	if err != nil {
		jsonErr(w, ErrorStatus(err), err.Error())
		return
	}
	jsonResp(w, http.StatusOK, BuildList(recs, f, h.now()))
}

// bump serves GET and PATCH /api/v1/bumps/{id}.
func (h *Handler) bump(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/bumps/")
	if id == "" {
		h.listBumps(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.getBump(w, r, id)
	case http.MethodPatch:
		h.updateBump(w, r, id)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) getBump(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		jsonErr(w, ErrorStatus(err), err.Error())
		return
	}
	jsonResp(w, http.StatusOK, ToBump(rec, h.now()))
}

// updateBump applies PATCH /api/v1/bumps/{id}. Malformed or invalid bodies
// are rejected with 400 before anything is written.
func (h *Handler) updateBump(w http.ResponseWriter, r *http.Request, id string) {
	var req UpdateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	c, err := req.Condition()
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := h.svc.UpdateCondition(r.Context(), id, c)
	if err != nil {
		jsonErr(w, ErrorStatus(err), err.Error())
		return
	}
	jsonResp(w, http.StatusOK, ToBump(rec, h.now()))
}

// summary returns GET /api/v1/summary: record counts per status.
func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s, err := h.svc.Summary(r.Context())
	if err != nil {
		jsonErr(w, ErrorStatus(err), err.Error())
		return
	}
	jsonResp(w, http.StatusOK, SummaryResponse{Summary: s, Mode: h.svc.Mode(), FoldCritical: h.svc.FoldCritical()})
}

// preview returns GET /api/v1/preview?health=N: the status a health value
// would derive to. Nothing is written.
func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	raw := r.URL.Query().Get("health")
	n, err := strconv.Atoi(raw)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid health: must be an integer, got "+strconv.Quote(raw))
		return
	}
	if err := bump.ValidateHealth(n); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, PreviewResponse{
		Health:    n,
		HealthPct: bump.HealthPercent(n),
		Status:    bump.DeriveStatus(float64(n)),
	})
}

// listAlerts returns GET /api/v1/alerts: active and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	active := h.alerts.Active()
	if active == nil {
		active = []*alerts.Alert{}
	}
	jsonResp(w, http.StatusOK, active)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

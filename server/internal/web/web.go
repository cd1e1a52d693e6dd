package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/api"
	"github.com/bumpwatch/bumpwatch/server/internal/auth"
)

//go:embed templates/*.html
var files embed.FS

// dateLayout is how timestamps are shown on cards and in the editor.
const dateLayout = "Jan 2, 2006, 3:04 PM"

// partialHeader asks GET / for the list fragment only, for embedding the
// list elsewhere. The page itself redraws from WebSocket payloads.
const partialHeader = "X-Partial"

var funcs = template.FuncMap{
	"lower": func(s bump.Status) string { return strings.ToLower(string(s)) },
}

// Options configures the dashboard.
type Options struct {
	// APIKey, when set, must be entered in the editor to save.
	APIKey string
	// RefreshInterval is shown on the list page.
	RefreshInterval time.Duration
}

// Handler serves the HTML dashboard.
type Handler struct {
	svc   api.Service
	opts  Options
	mux   *http.ServeMux
	pages map[string]*template.Template
	now   func() time.Time
}

// New parses the embedded templates and registers the dashboard routes.
func New(svc api.Service, opts Options) (*Handler, error) {
	h := &Handler{svc: svc, opts: opts, mux: http.NewServeMux(), pages: map[string]*template.Template{}, now: time.Now}
	for _, page := range []string{"list.html", "edit.html"} {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, err
		}
		h.pages[page] = t
	}

	h.mux.HandleFunc("/", h.list)
	h.mux.HandleFunc("/bumps/", h.bump) // subtree, /bumps/{id}/edit and /bumps/{id}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- view models ------------------------------------------------------------

type tab struct {
	Label  string
	Value  bump.Filter
	Active bool
}

type card struct {
	ID            string
	StreetName    string
	ExactLocation string
	Status        bump.Status
	HasHealth     bool
	Health        int
	HealthPct     float64
	CarCount      int64
	LastUpdated   string
}

type listView struct {
	Filter  bump.Filter
	Tabs    []tab
	Bumps   []card
	Empty   string
	Error   string
	Flash   string
	Mode    bump.Mode
	Refresh string
}

type editView struct {
	Bump     card
	Mode     bump.Mode
	Filter   bump.Filter
	Health   string // submitted or current value, kept verbatim on errors
	Statuses []bump.Status
	Error    string // validation error
	Notice   string // update error
	NeedKey  bool

	ThresholdGood    int
	ThresholdDamaged int
	MaxHealth        int
}

func toCard(rec bump.Record) card {
	c := card{
		ID:            rec.ID,
		StreetName:    rec.StreetName,
		ExactLocation: rec.ExactLocation,
		Status:        rec.Status(),
		CarCount:      rec.CarCount,
		LastUpdated:   rec.LastUpdated.Local().Format(dateLayout),
	}
	if hv, ok := rec.Condition.Health(); ok {
		c.HasHealth = true
		c.Health = hv
		c.HealthPct = bump.HealthPercent(hv)
	}
	return c
}

// --- route handlers ---------------------------------------------------------

// list serves GET /: filter tabs and the filtered list. A failed fetch
// replaces the list with an inline error.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v := listView{Mode: h.svc.Mode(), Refresh: h.opts.RefreshInterval.String()}
	code := http.StatusOK
	f, err := bump.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		v.Error = err.Error()
		code = http.StatusBadRequest
		f = bump.FilterAll
	}
	v.Filter = f
	for _, x := range bump.Filters {
		v.Tabs = append(v.Tabs, tab{Label: x.Label(), Value: x, Active: x == f})
	}
	if id := r.URL.Query().Get("updated"); id != "" {
		v.Flash = flashText(v.Mode)
	}

	if code == http.StatusOK {
		recs, err := h.svc.List(r.Context(), f)
		if err != nil {
			slog.Warn("web: list failed", "filter", f, "err", err)
			v.Error = "Could not load speed bumps: " + err.Error()
			code = api.ErrorStatus(err)
		}
		for _, rec := range recs {
			v.Bumps = append(v.Bumps, toCard(rec))
		}
		if err == nil && len(recs) == 0 {
			v.Empty = f.EmptyMessage()
		}
	}

	name := "layout"
	if r.Header.Get(partialHeader) != "" {
		name = "bumps"
	}
	h.render(w, code, "list.html", name, v)
}

// bump dispatches /bumps/{id}/edit (GET) and /bumps/{id} (POST).
func (h *Handler) bump(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/bumps/")
	switch {
	case strings.HasSuffix(rest, "/edit") && r.Method == http.MethodGet:
		h.edit(w, r, strings.TrimSuffix(rest, "/edit"))
	case rest != "" && !strings.Contains(rest, "/") && r.Method == http.MethodPost:
		h.save(w, r, rest)
	case strings.HasSuffix(rest, "/edit") || (rest != "" && !strings.Contains(rest, "/")):
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

// edit serves GET /bumps/{id}/edit.
func (h *Handler) edit(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), api.ErrorStatus(err))
		return
	}
	v := h.editView(rec, r.URL.Query().Get("filter"))
	h.render(w, http.StatusOK, "edit.html", "layout", v)
}

// save handles POST /bumps/{id}. The key check and validation run on the
// form alone: a rejected submission re-renders the editor (401 or 422) from
// the posted fields and never reaches the store. Update errors re-render it
// with a notice and the submitted value so the operator can retry.
func (h *Handler) save(w http.ResponseWriter, r *http.Request, id string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}
	mode := h.svc.Mode()

	if h.opts.APIKey != "" && !auth.Valid(r.PostForm.Get("api_key"), h.opts.APIKey) {
		v := h.formView(id, r.PostForm)
		v.Error = "invalid api key"
		h.render(w, http.StatusUnauthorized, "edit.html", "layout", v)
		return
	}

	c, err := formCondition(mode, r.PostForm)
	if err == nil {
		err = mode.Accept(c)
	}
	if err != nil {
		v := h.formView(id, r.PostForm)
		v.Error = err.Error()
		h.render(w, http.StatusUnprocessableEntity, "edit.html", "layout", v)
		return
	}

	if _, err := h.svc.UpdateCondition(r.Context(), id, c); err != nil {
		code := api.ErrorStatus(err)
		v := h.formView(id, r.PostForm)
		var ve *bump.ValidationError
		if errors.As(err, &ve) {
			v.Error = err.Error()
			code = http.StatusUnprocessableEntity
		} else {
			v.Notice = "Update failed: " + err.Error()
			if rec, gerr := h.svc.Get(r.Context(), id); gerr == nil {
				v.Bump = toCard(rec)
			}
		}
		h.render(w, code, "edit.html", "layout", v)
		return
	}

	q := url.Values{"updated": {id}}
	if f, _ := bump.ParseFilter(r.PostForm.Get("filter")); f != bump.FilterAll && f != "" {
		q.Set("filter", string(f))
	}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) editView(rec bump.Record, filter string) editView {
	f, err := bump.ParseFilter(filter)
	if err != nil {
		f = bump.FilterAll
	}
	v := editView{
		Bump:             toCard(rec),
		Mode:             h.svc.Mode(),
		Filter:           f,
		Statuses:         bump.Statuses,
		NeedKey:          h.opts.APIKey != "",
		ThresholdGood:    bump.ThresholdGood,
		ThresholdDamaged: bump.ThresholdDamaged,
		MaxHealth:        bump.MaxHealth,
	}
	if hv, ok := rec.Condition.Health(); ok {
		v.Health = strconv.Itoa(hv)
	}
	return v
}

// formView rebuilds the editor from a posted form. The editor carries the
// street and location as hidden fields so it can be redrawn without a read.
func (h *Handler) formView(id string, form url.Values) editView {
	v := h.editView(bump.Record{ID: id}, form.Get("filter"))
	v.Bump.StreetName = form.Get("street_name")
	v.Bump.ExactLocation = form.Get("exact_location")
	v.Bump.Status = ""
	v.Bump.LastUpdated = ""
	v.Health = form.Get("health")
	return v
}

// formCondition reads the editor form for mode.
func formCondition(mode bump.Mode, form url.Values) (bump.Condition, error) {
	if mode == bump.ModeStatus {
		s, err := bump.ParseStatus(form.Get("status"))
		if err != nil {
			return bump.Condition{}, err
		}
		return bump.StatusCondition(s), nil
	}
	raw := strings.TrimSpace(form.Get("health"))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return bump.Condition{}, &bump.ValidationError{Field: "health", Reason: "must be a whole number between 0 and 10000"}
	}
	return bump.HealthCondition(n), nil
}

func flashText(mode bump.Mode) string {
	if mode == bump.ModeStatus {
		return "Status Updated!"
	}
	return "Health Updated!"
}

// render executes a template into a buffer so a template error never
// leaves a half-written page.
func (h *Handler) render(w http.ResponseWriter, code int, page, name string, data interface{}) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("web: render failed", "page", page, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	buf.WriteTo(w) //nolint:errcheck
}

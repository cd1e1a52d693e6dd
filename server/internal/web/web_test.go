package web_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/api"
	"github.com/bumpwatch/bumpwatch/server/internal/store"
	"github.com/bumpwatch/bumpwatch/server/internal/tracker"
	"github.com/bumpwatch/bumpwatch/server/internal/web"
)

func newTracker(mode bump.Mode) *tracker.Tracker {
	t0 := time.Now().UTC().Add(-time.Hour)
	recs := []bump.Record{
		{ID: "a", StreetName: "Main Street", ExactLocation: "Near City Hall", Condition: bump.HealthCondition(8000), CarCount: 1245, LastUpdated: t0},
		{ID: "b", StreetName: "Oak Avenue", ExactLocation: "School zone", Condition: bump.HealthCondition(5000), LastUpdated: t0.Add(-time.Minute)},
		{ID: "c", StreetName: "Elm Street", ExactLocation: "Park entrance", Condition: bump.HealthCondition(1000), LastUpdated: t0.Add(-2 * time.Minute)},
	}
	if mode == bump.ModeStatus {
		for i := range recs {
			recs[i].Condition = bump.StatusCondition(recs[i].Status())
		}
	}
	return tracker.New(store.NewMemory(mode, recs...), tracker.Options{Mode: mode})
}

func newHandler(t *testing.T, svc api.Service, opts web.Options) http.Handler {
	t.Helper()
	h, err := web.New(svc, opts)
	require.NoError(t, err)
	return h
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func post(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type failingService struct{ api.Service }

func (failingService) UpdateCondition(context.Context, string, bump.Condition) (bump.Record, error) {
	return bump.Record{}, errors.New("write rejected")
}

func TestList_AllAndFiltered(t *testing.T) {
	h := newHandler(t, newTracker(bump.ModeHealth), web.Options{})

	rr := get(h, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	for _, street := range []string{"Main Street", "Oak Avenue", "Elm Street"} {
		assert.Contains(t, body, street)
	}
	assert.Contains(t, body, "1245 cars passed")
	assert.Contains(t, body, "Health 8000 / 10000 (80%)")

	rr = get(h, "/?filter=critical")
	body = rr.Body.String()
	assert.Contains(t, body, "Elm Street")
	assert.NotContains(t, body, "Main Street")
	assert.Contains(t, body, `class="active">Critical`)
}

func TestList_EmptyMessage(t *testing.T) {
	svc := tracker.New(store.NewMemory(bump.ModeHealth), tracker.Options{})
	rr := get(newHandler(t, svc, web.Options{}), "/?filter=damaged")
	assert.Contains(t, rr.Body.String(), "No damaged speed bumps found.")
}

func TestList_FetchErrorReplacesList(t *testing.T) {
	svc := tracker.New(store.NewUnconfigured(nil), tracker.Options{})
	rr := get(newHandler(t, svc, web.Options{}), "/")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "Could not load speed bumps")
}

func TestList_InvalidFilter(t *testing.T) {
	rr := get(newHandler(t, newTracker(bump.ModeHealth), web.Options{}), "/?filter=bogus")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestList_PartialAndFlash(t *testing.T) {
	h := newHandler(t, newTracker(bump.ModeHealth), web.Options{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Partial", "list")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.NotContains(t, rr.Body.String(), "<html")
	assert.Contains(t, rr.Body.String(), "Main Street")

	assert.Contains(t, get(h, "/?updated=a").Body.String(), "Health Updated!")
}

func TestList_LiveViewRendersPushedPayload(t *testing.T) {
	svc := &countingService{Service: newTracker(bump.ModeHealth)}
	body := get(newHandler(t, svc, web.Options{}), "/").Body.String()

	assert.Contains(t, body, "/ws/stream?filter=")
	assert.Contains(t, body, "m.data.bumps")
	assert.NotContains(t, body, "X-Partial", "updates must not refetch the list over HTTP")
	assert.Equal(t, 1, svc.calls, "one read per page load")
}

func TestEdit_ShowsEditor(t *testing.T) {
	h := newHandler(t, newTracker(bump.ModeHealth), web.Options{})
	rr := get(h, "/bumps/b/edit")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `value="5000"`)
	assert.Contains(t, rr.Body.String(), `action="/bumps/b"`)

	assert.Equal(t, http.StatusNotFound, get(h, "/bumps/zzz/edit").Code)
}

func TestEdit_StatusModeButtons(t *testing.T) {
	rr := get(newHandler(t, newTracker(bump.ModeStatus), web.Options{}), "/bumps/a/edit")
	body := rr.Body.String()
	for _, s := range []string{"Good", "Damaged", "Critical"} {
		assert.Contains(t, body, `name="status" value="`+s+`"`)
	}
	assert.NotContains(t, body, `name="health"`)
}

func TestSave_RedirectsWithFlash(t *testing.T) {
	tr := newTracker(bump.ModeHealth)
	h := newHandler(t, tr, web.Options{})

	rr := post(h, "/bumps/a", url.Values{"health": {"2500"}, "filter": {"critical"}})
	require.Equal(t, http.StatusSeeOther, rr.Code, rr.Body.String())
	loc := rr.Header().Get("Location")
	assert.Contains(t, loc, "updated=a")
	assert.Contains(t, loc, "filter=critical")

	rec, err := tr.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, bump.StatusCritical, rec.Status())
}

func TestSave_StatusMode(t *testing.T) {
	tr := newTracker(bump.ModeStatus)
	h := newHandler(t, tr, web.Options{})
	rr := post(h, "/bumps/a", url.Values{"status": {"Damaged"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	rec, _ := tr.Get(context.Background(), "a")
	assert.Equal(t, bump.StatusDamaged, rec.Status())
}

func TestSave_ValidationKeepsEditorOpen(t *testing.T) {
	tr := newTracker(bump.ModeHealth)
	h := newHandler(t, tr, web.Options{})

	for _, v := range []string{"-1", "10001", "abc", ""} {
		rr := post(h, "/bumps/a", url.Values{"health": {v}})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "health %q", v)
		assert.Contains(t, rr.Body.String(), `class="error"`, "health %q", v)
	}
	rec, _ := tr.Get(context.Background(), "a")
	h0, _ := rec.Condition.Health()
	assert.Equal(t, 8000, h0, "rejected input must not be written")
}

// countingService counts every call that reaches the record store.
type countingService struct {
	api.Service
	calls int
}

func (c *countingService) Get(ctx context.Context, id string) (bump.Record, error) {
	c.calls++
	return c.Service.Get(ctx, id)
}

func (c *countingService) List(ctx context.Context, f bump.Filter) ([]bump.Record, error) {
	c.calls++
	return c.Service.List(ctx, f)
}

func (c *countingService) UpdateCondition(ctx context.Context, id string, cond bump.Condition) (bump.Record, error) {
	c.calls++
	return c.Service.UpdateCondition(ctx, id, cond)
}

func TestSave_InvalidInputNeverReachesStore(t *testing.T) {
	svc := &countingService{Service: newTracker(bump.ModeHealth)}
	h := newHandler(t, svc, web.Options{})

	for _, v := range []string{"-1", "10001"} {
		rr := post(h, "/bumps/a", url.Values{"health": {v}, "street_name": {"Main Street"}})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "health %q", v)
		assert.Contains(t, rr.Body.String(), "Main Street", "editor is redrawn from the form")
		assert.Contains(t, rr.Body.String(), `value="`+v+`"`)
	}
	assert.Equal(t, 0, svc.calls, "rejected input must not touch the store")

	rr := post(h, "/bumps/a", url.Values{"health": {"100"}})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, 1, svc.calls, "a valid save is a single write")
}

func TestSave_BadAPIKeyNeverReachesStore(t *testing.T) {
	svc := &countingService{Service: newTracker(bump.ModeHealth)}
	h := newHandler(t, svc, web.Options{APIKey: "s3cret"})
	rr := post(h, "/bumps/a", url.Values{"health": {"100"}, "api_key": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, 0, svc.calls)
}

func TestSave_UpdateErrorShowsNotice(t *testing.T) {
	h := newHandler(t, failingService{newTracker(bump.ModeHealth)}, web.Options{})
	rr := post(h, "/bumps/a", url.Values{"health": {"4321"}})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "Update failed: write rejected")
	assert.Contains(t, rr.Body.String(), `value="4321"`, "submitted value is kept for retry")
}

func TestSave_RequiresAPIKey(t *testing.T) {
	tr := newTracker(bump.ModeHealth)
	h := newHandler(t, tr, web.Options{APIKey: "s3cret"})

	assert.Contains(t, get(h, "/bumps/a/edit").Body.String(), `name="api_key"`)

	rr := post(h, "/bumps/a", url.Values{"health": {"100"}, "api_key": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = post(h, "/bumps/a", url.Values{"health": {"100"}, "api_key": {"s3cret"}})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}

func TestRoutes_MethodsAndUnknownPaths(t *testing.T) {
	h := newHandler(t, newTracker(bump.ModeHealth), web.Options{})
	assert.Equal(t, http.StatusNotFound, get(h, "/nope").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, get(h, "/bumps/a").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, post(h, "/bumps/a/edit", nil).Code)
}

package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bumpwatch/bumpwatch/agent/internal/config"
)

func TestJSONScraper_Scrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accept := r.Header.Get("Accept"); accept != "application/json" {
			t.Errorf("Accept = %q, want application/json", accept)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"bumps":[
			{"bump_id":"2","vehicles_total":40,"damage_total":12.5},
			{"bump_id":"2","vehicles_total":10,"damage_total":0.5},
			{"bump_id":"5","vehicles_total":7},
			{"vehicles_total":99}
		]}`))
	}))
	defer srv.Close()

	s := &jsonScraper{det: config.Detector{ID: "oak", Endpoint: srv.URL}, client: srv.Client()}
	res := s.Scrape(context.Background())
	if res.Err != nil {
		t.Fatalf("res.Err = %v", res.Err)
	}
	if got := res.Bumps["2"]; got.Vehicles != 50 || got.Damage != 13 {
		t.Errorf("bump 2 = %+v, want {Vehicles:50 Damage:13}", got)
	}
	if got := res.Bumps["5"]; got.Vehicles != 7 {
		t.Errorf("bump 5 vehicles = %v, want 7", got.Vehicles)
	}
	if len(res.Bumps) != 2 {
		t.Errorf("bumps = %d, want 2 (entry without bump_id skipped)", len(res.Bumps))
	}
}

func TestJSONScraper_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	s := &jsonScraper{det: config.Detector{ID: "oak", Endpoint: srv.URL}, client: srv.Client()}
	if res := s.Scrape(context.Background()); res.Err == nil {
		t.Error("expected a decode error")
	}
}

func typeName(v any) string { return fmt.Sprintf("%T", v) }

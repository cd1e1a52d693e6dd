package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bumpwatch/bumpwatch/agent/internal/config"
)

// jsonCounters is the body served by JSON-format detectors.
type jsonCounters struct {
	Bumps []struct {
		BumpID        string  `json:"bump_id"`
		VehiclesTotal float64 `json:"vehicles_total"`
		DamageTotal   float64 `json:"damage_total"`
	} `json:"bumps"`
}

type jsonScraper struct {
	det    config.Detector
	client *http.Client
}

// Scrape fetches the detector's JSON counter document. Entries for the same
// bump are summed.
func (s *jsonScraper) Scrape(ctx context.Context) *ScrapeResult {
	res := newResult(s.det.ID)

	body, err := get(ctx, s.client, s.det.Endpoint, "application/json")
	if err != nil {
		res.Err = fmt.Errorf("json scrape %q: %w", s.det.ID, err)
		slog.Warn("scraper: detector fetch failed", "detector", s.det.ID, "err", err)
		return res
	}
	defer body.Close()

	var doc jsonCounters
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		res.Err = fmt.Errorf("json scrape %q: decode: %w", s.det.ID, err)
		return res
	}
	for _, b := range doc.Bumps {
		if b.BumpID == "" {
			continue
		}
		c := res.Bumps[b.BumpID]
		c.Vehicles += b.VehiclesTotal
		c.Damage += b.DamageTotal
		res.Bumps[b.BumpID] = c
	}
	keep(s.det, res)
	return res
}

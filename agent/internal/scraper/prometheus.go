package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/common/expfmt"

	"github.com/bumpwatch/bumpwatch/agent/internal/config"
)

// Counter names exported by Prometheus-format detectors. Both carry a
// bump_id label.
const (
	metricVehicles = "speedbump_vehicles_total"
	metricDamage   = "speedbump_impact_damage_total"

	labelBumpID = "bump_id"
)

type promScraper struct {
	det    config.Detector
	client *http.Client
}

// Scrape fetches the detector's /metrics page and collects per-bump
// vehicle and damage totals. A bump that only exposes one counter gets
// zero for the other.
func (s *promScraper) Scrape(ctx context.Context) *ScrapeResult {
	res := newResult(s.det.ID)

	body, err := get(ctx, s.client, s.det.Endpoint, string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if err != nil {
		res.Err = fmt.Errorf("prometheus scrape %q: %w", s.det.ID, err)
		slog.Warn("scraper: detector fetch failed", "detector", s.det.ID, "err", err)
		return res
	}
	defer body.Close()

	mfs, err := parseMetrics(body)
	if err != nil {
		res.Err = fmt.Errorf("prometheus scrape %q: %w", s.det.ID, err)
		return res
	}

	for id, v := range sumByLabel(mfs[metricVehicles], labelBumpID) {
		c := res.Bumps[id]
		c.Vehicles = v
		res.Bumps[id] = c
	}
	for id, v := range sumByLabel(mfs[metricDamage], labelBumpID) {
		c := res.Bumps[id]
		c.Damage = v
		res.Bumps[id] = c
	}
	keep(s.det, res)
	return res
}

// Command bumpwatch-agent runs next to roadside detectors. It scrapes their
// vehicle and damage counters, turns them into per-bump impacts and ships
// those to bumpwatch-server over gRPC.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bumpwatch/bumpwatch/agent/internal/compute"
	"github.com/bumpwatch/bumpwatch/agent/internal/config"
	"github.com/bumpwatch/bumpwatch/agent/internal/scraper"
	"github.com/bumpwatch/bumpwatch/agent/internal/security"
	"github.com/bumpwatch/bumpwatch/agent/internal/shipper"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("bumpwatch-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"detectors", len(cfg.Agent.Detectors),
		"scrape_interval", cfg.Agent.ScrapeInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine := compute.NewEngine()
	det := &detectors{engine: engine}
	det.set(cfg.Agent.Detectors)

	// Detector changes apply on the next tick. Server connection settings
	// need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			det.set(updated.Agent.Detectors)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	ship := shipper.New(cfg.Agent)
	go ship.Run(ctx)

	go checkCerts(ctx, det, cfg.Agent.CertInterval)

	ticker := time.NewTicker(cfg.Agent.ScrapeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("bumpwatch-agent shutting down", "unsent_reports", ship.Pending())
			return
		case t := <-ticker.C:
			for _, p := range det.list() {
				for _, im := range engine.Process(p.s.Scrape(ctx), t) {
					ship.Ship(im)
					slog.Debug("impact queued",
						"detector", im.DetectorID, "bump", im.BumpID,
						"vehicles", im.Vehicles, "damage", im.Damage)
				}
			}
		}
	}
}

type pipeline struct {
	det config.Detector
	s   scraper.Scraper
}

// detectors is the current scrape set, replaced on config reload.
type detectors struct {
	engine *compute.Engine

	mu        sync.Mutex
	pipelines []pipeline
}

func (d *detectors) set(list []config.Detector) {
	var next []pipeline
	keep := make(map[string]bool, len(list))
	for _, dc := range list {
		s, err := scraper.New(dc)
		if err != nil {
			slog.Error("skipping detector, could not build scraper", "detector", dc.ID, "err", err)
			continue
		}
		next = append(next, pipeline{det: dc, s: s})
		keep[dc.ID] = true
		slog.Info("registered detector", "id", dc.ID, "format", dc.Format, "endpoint", dc.Endpoint)
	}
	if len(next) == 0 {
		slog.Warn("no detectors configured, agent will idle")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pipelines {
		if !keep[p.det.ID] {
			d.engine.Forget(p.det.ID)
			slog.Info("removed detector", "id", p.det.ID)
		}
	}
	d.pipelines = next
}

func (d *detectors) list() []pipeline {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]pipeline(nil), d.pipelines...)
}

// checkCerts logs the certificate state of every HTTPS detector at start
// and then every interval.
func checkCerts(ctx context.Context, d *detectors, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		for _, p := range d.list() {
			cs := security.Check(ctx, p.det, time.Now())
			if cs == nil {
				continue
			}
			attrs := []any{"detector", cs.DetectorID, "status", cs.Status, "days_left", cs.DaysLeft, "issuer", cs.Issuer}
			switch cs.Status {
			case security.StatusValid:
				slog.Debug("detector certificate", attrs...)
			case security.StatusUnreachable:
				slog.Warn("detector certificate check failed", append(attrs, "err", cs.Err)...)
			default:
				slog.Warn("detector certificate needs renewal", attrs...)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

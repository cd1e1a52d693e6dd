// Package scraper reads roadside detectors. Each detector exposes running
// totals of vehicles and impact damage per bump, either as Prometheus text
// (speedbump_vehicles_total and speedbump_impact_damage_total, labelled by
// bump_id) or as a JSON document. New(config.Detector) picks the scraper
// for the detector's format.
//
// Authentication (mTLS, API key, bearer token, basic) is applied by the
// shared authRoundTripper in base.go.
package scraper

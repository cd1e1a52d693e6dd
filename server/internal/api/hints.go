package api

import (
	"fmt"
	"time"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
)

const (
	// staleAfter is how long a record may go without an update before it
	// is flagged for inspection.
	staleAfter = 30 * 24 * time.Hour

	// heavyTraffic is the car count above which wear is expected to
	// accelerate.
	heavyTraffic = 100_000
)

// MaintenanceHint is one human-readable insight about a speed bump. The
// dashboard displays these as chips on the record card; Detail is shown on
// hover.
type MaintenanceHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional number associated with the hint (e.g. health %).
	Value *float64 `json:"value,omitempty"`
}

// computeHints derives maintenance hints from a record, most severe first.
func computeHints(rec bump.Record, now time.Time) []MaintenanceHint {
	var hints []MaintenanceHint

	// ── Condition ────────────────────────────────────────────────────────────
	h, hasHealth := rec.Condition.Health()
	switch rec.Status() {
	case bump.StatusCritical:
		hint := MaintenanceHint{
			Key:   "repair_required",
			Level: "critical",
			Title: "Repair required",
			Detail: "This bump is in critical condition. Worn bumps stop slowing traffic " +
				"and can damage vehicles. Schedule a repair crew and re-inspect after the work.",
		}
		if hasHealth {
			pct := bump.HealthPercent(h)
			hint.Value = &pct
			hint.Detail = fmt.Sprintf(
				"Health is down to %.0f%%, below the %d point critical line. "+
					"Worn bumps stop slowing traffic and can damage vehicles. "+
					"Schedule a repair crew and re-inspect after the work.",
				pct, bump.ThresholdDamaged,
			)
		}
		hints = append(hints, hint)
	case bump.StatusDamaged:
		hint := MaintenanceHint{
			Key:    "wear_detected",
			Level:  "warning",
			Title:  "Wear detected",
			Detail: "This bump shows wear. Add it to the next inspection round before it becomes critical.",
		}
		if hasHealth {
			pct := bump.HealthPercent(h)
			hint.Value = &pct
			hint.Detail = fmt.Sprintf(
				"Health is %.0f%%. Below %d points the bump is critical. "+
					"Add it to the next inspection round.",
				pct, bump.ThresholdDamaged,
			)
		}
		hints = append(hints, hint)
	}

	// ── Stale data ───────────────────────────────────────────────────────────
	if !rec.LastUpdated.IsZero() && now.Sub(rec.LastUpdated) > staleAfter {
		days := now.Sub(rec.LastUpdated).Hours() / 24
		hints = append(hints, MaintenanceHint{
			Key:   "stale",
			Level: "warning",
			Title: "No recent update",
			Detail: fmt.Sprintf(
				"Nothing has been recorded for this bump in %.0f days. "+
					"The roadside detector may be offline, or the bump has not been inspected.",
				days,
			),
			Value: &days,
		})
	}

	// ── Traffic ──────────────────────────────────────────────────────────────
	if rec.CarCount > heavyTraffic {
		cars := float64(rec.CarCount)
		hints = append(hints, MaintenanceHint{
			Key:   "heavy_traffic",
			Level: "info",
			Title: "Heavy traffic",
			Detail: fmt.Sprintf(
				"%d vehicles have crossed this bump. Expect faster wear than on quieter streets.",
				rec.CarCount,
			),
			Value: &cars,
		})
	}

	// ── All clear ────────────────────────────────────────────────────────────
	if len(hints) == 0 {
		hints = append(hints, MaintenanceHint{
			Key:    "healthy",
			Level:  "ok",
			Title:  "All clear",
			Detail: "This bump is in good condition. No action needed.",
		})
	}
	return hints
}

package shipper

import (
	"github.com/bumpwatch/bumpwatch/agent/internal/compute"
	"github.com/bumpwatch/bumpwatch/pkg/impactrpc"
)

// toReport converts an Impact into the wire report. Damage is already
// computed by the detector, so no per-vehicle speeds are sent.
func toReport(im compute.Impact) *impactrpc.ImpactReport {
	r := &impactrpc.ImpactReport{
		BumpID:     im.BumpID,
		DetectorID: im.DetectorID,
		Vehicles:   im.Vehicles,
		Damage:     im.Damage,
	}
	if !im.ObservedAt.IsZero() {
		r.ObservedAtUnix = im.ObservedAt.Unix()
	}
	return r
}

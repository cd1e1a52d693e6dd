// Package receiver implements impactrpc.ImpactServiceServer: the gRPC
// endpoint that accepts ImpactReport messages from bumpwatch-agent instances.
//
// Receiver.ReportImpact requires a bump_id (codes.InvalidArgument if
// missing), applies the report through the tracker and acknowledges with the
// bump's new condition. Tracker errors map to codes: validation
// InvalidArgument, unknown bump NotFound, store down or unconfigured
// Unavailable, anything else Internal. The agent's shipper retries only
// Unavailable.
//
// Authentication is enforced upstream by the gRPC server interceptor
// (see package auth).
package receiver

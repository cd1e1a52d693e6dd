// Package shipper sends impact reports to bumpwatch-server over gRPC
// (bumpwatch.v1.ImpactService/ReportImpact, JSON codec).
//
// Ship is non-blocking: reports wait in an in-memory buffer (default 1000)
// and the oldest is evicted when it is full. Run drains the buffer and
// reconnects with truncated exponential backoff (1s to 60s, ±25% jitter)
// while the server is Unavailable. Any other error discards the report,
// since the server may already have applied it.
//
// Auth: mTLS via credentials.NewTLS, API key via gRPC metadata, or
// plaintext for local development.
package shipper

// Package api implements the HTTP REST API for bumpwatch-server.
//
// New(svc, alerts) returns an http.Handler that serves:
//
//	GET   /api/v1/health         : store reachability (200 / 503)
//	GET   /api/v1/bumps?filter=  : records passing all|damaged|critical, newest first
//	GET   /api/v1/bumps/{id}     : single record; 404 if unknown
//	PATCH /api/v1/bumps/{id}     : {"health":N} or {"status":"Damaged"}
//	GET   /api/v1/summary        : counts per status
//	GET   /api/v1/preview?health=: derived status for a health value
//	GET   /api/v1/alerts         : active and recently resolved alerts
//
// Errors map to status codes through ErrorStatus: validation 400, unknown
// id 404, unconfigured or unreachable store 503, anything else 502.
// Wrong methods get 405. API key enforcement for PATCH is applied by the
// caller with auth.RequireAPIKey.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api

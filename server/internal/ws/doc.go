// Package ws implements the WebSocket live views for bumpwatch-server.
//
// Every connection is one view of the record list with its own filter and
// its own refresh.Poller. A view fetches when it connects, on every tick
// (server.refresh.interval), when the client changes its filter or asks for
// a refresh, and when Hub.Invalidate is called after a write. Results older
// than one already sent are dropped by the poller. Closing the connection
// stops the view's timer.
//
// Server → client:
//
//	{"event": "bumps", "reason": "tick", "data": { /* GET /api/v1/bumps */ }}
//	{"event": "error", "reason": "tick", "data": {"error": "...", "filter": "all"}}
//
// Client → server:
//
//	{"type": "filter", "filter": "critical"}
//	{"type": "refresh"}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/stream by the server.
package ws

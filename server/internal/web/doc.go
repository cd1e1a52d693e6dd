// Package web serves the HTML maintenance dashboard.
//
//	GET  /                : filter tabs and the record list (?filter=, ?updated=)
//	GET  /bumps/{id}/edit : editor: numeric health with a live status preview,
//	                         or three status buttons in status mode
//	POST /bumps/{id}      : save; redirects to / with a flash on success
//
// The list page opens a WebSocket view (/ws/stream) and redraws its list
// fragment whenever the view reports new data. Templates are embedded.
package web

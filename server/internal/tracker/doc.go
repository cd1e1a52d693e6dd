// Package tracker is the single entry point for reading and changing
// speed-bump records. Every surface (REST, HTML dashboard, WebSocket views,
// gRPC impact receiver) goes through a Tracker so validation, timestamps,
// metrics and change notification happen the same way everywhere.
package tracker

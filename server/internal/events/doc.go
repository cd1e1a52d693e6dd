// Package events publishes record changes to NATS so other systems (work
// order tooling, city dashboards) can react without polling the API.
//
// Each change is published as JSON on "<prefix>.<bump id>". Publishing is
// fire-and-forget: failures are logged and never block or fail the write
// that caused them.
package events

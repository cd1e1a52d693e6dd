// Package client is a Go client for the bumpwatch-server REST API.
package client

// Package security inspects the TLS certificates of HTTPS detectors so the
// agent can warn before a roadside unit becomes unreachable.
package security

package security

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/bumpwatch/bumpwatch/agent/internal/config"
)

// ExpiringWithin is the window in which a certificate counts as expiring.
const ExpiringWithin = 30 * 24 * time.Hour

const dialTimeout = 10 * time.Second

// Certificate states.
const (
	StatusValid       = "valid"
	StatusExpiring    = "expiring"
	StatusExpired     = "expired"
	StatusUnreachable = "unreachable"
)

// CertStatus describes the leaf certificate a detector presents.
type CertStatus struct {
	DetectorID string
	Endpoint   string
	Issuer     string
	NotAfter   time.Time
	DaysLeft   int
	Status     string
	Err        error
}

// Check dials the detector's TLS endpoint and inspects the leaf
// certificate. It returns nil for plain-HTTP endpoints. The handshake skips
// verification so an expired certificate can still be reported.
func Check(ctx context.Context, d config.Detector, now time.Time) *CertStatus {
	u, err := url.Parse(d.Endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &CertStatus{DetectorID: d.ID, Endpoint: d.Endpoint}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config:    &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // inspection only, no data exchanged
	}
	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = StatusUnreachable
		cs.Err = err
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peers := conn.ConnectionState().PeerCertificates
	if len(peers) == 0 {
		cs.Status = StatusUnreachable
		return cs
	}

	leaf := peers[0]
	left := leaf.NotAfter.Sub(now)
	cs.NotAfter = leaf.NotAfter.UTC()
	cs.Issuer = leaf.Issuer.CommonName
	if cs.Issuer == "" && len(leaf.Issuer.Organization) > 0 {
		cs.Issuer = leaf.Issuer.Organization[0]
	}
	cs.DaysLeft = int(math.Floor(left.Hours() / 24))

	switch {
	case left <= 0:
		cs.Status = StatusExpired
	case left <= ExpiringWithin:
		cs.Status = StatusExpiring
	default:
		cs.Status = StatusValid
	}
	return cs
}

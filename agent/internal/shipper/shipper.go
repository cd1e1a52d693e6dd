package shipper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/bumpwatch/bumpwatch/agent/internal/compute"
	"github.com/bumpwatch/bumpwatch/agent/internal/config"
	"github.com/bumpwatch/bumpwatch/pkg/impactrpc"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// Shipper buffers impact reports and sends them to bumpwatch-server.
// Ship is non-blocking; when the buffer is full the oldest report is
// evicted. Run must be called in a goroutine to drain the buffer.
type Shipper struct {
	cfg    config.AgentConfig
	buf    chan *impactrpc.ImpactReport
	dialFn dialFunc
}

// dialFunc opens the connection to the server. Tests replace it.
type dialFunc func(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error)

// New creates a Shipper using the given agent config.
func New(cfg config.AgentConfig) *Shipper {
	size := cfg.BufferSize
	if size <= 0 {
		size = config.DefaultBufferSize
	}
	return &Shipper{
		cfg:    cfg,
		buf:    make(chan *impactrpc.ImpactReport, size),
		dialFn: defaultDial,
	}
}

// Ship converts im to a report and enqueues it.
func (s *Shipper) Ship(im compute.Impact) {
	s.enqueue(toReport(im))
}

// Pending returns the number of buffered reports.
func (s *Shipper) Pending() int { return len(s.buf) }

func (s *Shipper) enqueue(r *impactrpc.ImpactReport) {
	for {
		select {
		case s.buf <- r:
			return
		default:
		}
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest report",
				"bump", old.BumpID, "detector", old.DetectorID, "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Run drains the buffer, sending reports to the server. It reconnects with
// exponential backoff when the server is unavailable and blocks until ctx
// is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dialFn(ctx, s.cfg.ServerEndpoint, s.cfg)
		if err != nil {
			wait := bo.next()
			slog.Error("shipper: dial failed, will retry",
				"endpoint", s.cfg.ServerEndpoint, "err", err, "retry_in", wait)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		slog.Info("shipper: connected", "endpoint", s.cfg.ServerEndpoint)
		err = s.drain(ctx, conn, bo)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("shipper: server unavailable, will reconnect",
			"endpoint", s.cfg.ServerEndpoint, "err", err, "retry_in", wait)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// drain sends buffered reports until the server becomes unavailable or ctx
// is cancelled. The backoff is reset after every delivered report.
func (s *Shipper) drain(ctx context.Context, conn *grpc.ClientConn, bo *backoff) error {
	client := impactrpc.NewImpactServiceClient(conn)

	for {
		select {
		case <-ctx.Done():
			return nil

		case r := <-s.buf:
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			if s.cfg.ServerAuth.Mode == "apikey" {
				sendCtx = metadata.AppendToOutgoingContext(sendCtx, s.cfg.ServerAuth.Header, s.cfg.ServerAuth.Key())
			}
			ack, err := client.ReportImpact(sendCtx, r)
			cancel()

			if err != nil {
				if retryable(err) {
					s.enqueue(r)
					return fmt.Errorf("report impact: %w", err)
				}
				slog.Error("shipper: report rejected, discarding",
					"bump", r.BumpID, "detector", r.DetectorID, "code", status.Code(err).String(), "err", err)
				continue
			}

			bo.reset()
			slog.Debug("shipper: impact delivered",
				"bump", r.BumpID, "vehicles", r.Vehicles, "damage", r.Damage, "status", ack.Status)
		}
	}
}

// retryable reports whether a report may be resent without wearing the bump
// twice: only Unavailable guarantees the server did not apply it.
func retryable(err error) bool {
	return status.Code(err) == codes.Unavailable
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// defaultDial opens a gRPC connection to endpoint with auth configured from cfg.
func defaultDial(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error) {
	opts, err := dialOptions(cfg)
	if err != nil {
		return nil, err
	}
	return grpc.DialContext(ctx, endpoint, opts...) //nolint:staticcheck // DialContext kept for grpc 1.62
}

// dialOptions builds transport credentials for the server auth mode.
func dialOptions(cfg config.AgentConfig) ([]grpc.DialOption, error) {
	if cfg.ServerAuth.Mode == "mtls" {
		creds, err := buildMTLSCreds(cfg.ServerAuth)
		if err != nil {
			return nil, fmt.Errorf("shipper: build mtls creds: %w", err)
		}
		return []grpc.DialOption{grpc.WithTransportCredentials(creds)}, nil
	}
	// apikey and none run over plaintext; the key travels in metadata.
	return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, nil
}

// buildMTLSCreds loads client certificate and optional CA from the auth config.
func buildMTLSCreds(auth config.AuthConfig) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	if auth.CAFile != "" {
		caPEM, err := os.ReadFile(auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs in ca file %q", auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return credentials.NewTLS(tlsCfg), nil
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current wait with ±25% jitter and doubles the next one.
func (b *backoff) next() time.Duration {
	d := b.current
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}

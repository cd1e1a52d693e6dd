package scraper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/bumpwatch/bumpwatch/agent/internal/config"
)

const defaultScrapeTimeout = 10 * time.Second

// Counters are the running totals a detector reports for one bump.
type Counters struct {
	// Vehicles is the number of crossings since the detector started.
	Vehicles float64
	// Damage is the accumulated health damage since the detector started.
	Damage float64
}

// ScrapeResult is one scrape of one detector. Values are raw totals; the
// compute engine turns them into per-interval deltas.
type ScrapeResult struct {
	DetectorID string
	ScrapedAt  time.Time

	// Bumps maps bump id to its counters.
	Bumps map[string]Counters

	// Err is non-nil if the scrape failed (connectivity, auth, parse).
	Err error
}

// Scraper reads one detector.
type Scraper interface {
	Scrape(ctx context.Context) *ScrapeResult
}

// New returns the Scraper for the detector's format. The HTTP client is
// built once and reused across scrapes.
func New(d config.Detector) (Scraper, error) {
	client, err := buildHTTPClient(d)
	if err != nil {
		return nil, fmt.Errorf("scraper %q: build http client: %w", d.ID, err)
	}
	switch d.Format {
	case config.FormatPrometheus, "":
		return &promScraper{det: d, client: client}, nil
	case config.FormatJSON:
		return &jsonScraper{det: d, client: client}, nil
	default:
		return nil, fmt.Errorf("scraper: unsupported format %q", d.Format)
	}
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the detector's auth and TLS settings.
func buildHTTPClient(d config.Detector) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: d.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if d.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(d.Auth.CertFile, d.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if d.Auth.CAFile != "" {
			pool, err := loadCAPool(d.Auth.CAFile)
			if err != nil {
				return nil, err
			}
			tlsCfg.RootCAs = pool
		}
	}

	return &http.Client{
		Transport: &authRoundTripper{base: &http.Transport{TLSClientConfig: tlsCfg}, auth: d.Auth},
		Timeout:   defaultScrapeTimeout,
	}, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	caPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no valid certs found in ca file %q", path)
	}
	return pool, nil
}

// get performs an HTTP GET with the given Accept header and returns the
// open response body on 200.
func get(ctx context.Context, client *http.Client, url, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser // prometheus/common v0.62: zero value validates names as UTF-8 (model.NameValidationScheme default)
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumByLabel adds up counter, gauge and untyped samples in mf grouped by the
// value of label. Samples without the label are skipped.
func sumByLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		key := labelValue(m, label)
		if key == "" {
			continue
		}
		switch {
		case m.Counter != nil:
			out[key] += m.Counter.GetValue()
		case m.Gauge != nil:
			out[key] += m.Gauge.GetValue()
		case m.Untyped != nil:
			out[key] += m.Untyped.GetValue()
		}
	}
	return out
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// newResult initialises an empty ScrapeResult.
func newResult(detectorID string) *ScrapeResult {
	return &ScrapeResult{
		DetectorID: detectorID,
		ScrapedAt:  time.Now().UTC(),
		Bumps:      make(map[string]Counters),
	}
}

// keep drops bumps the detector is not configured to report.
func keep(d config.Detector, res *ScrapeResult) {
	for id := range res.Bumps {
		if !d.Covers(id) {
			delete(res.Bumps, id)
		}
	}
}

package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bumpwatch/bumpwatch/agent/internal/config"
)

func TestCheck_PlainHTTP(t *testing.T) {
	if cs := Check(context.Background(), config.Detector{ID: "d", Endpoint: "http://10.0.0.1/metrics"}, time.Now()); cs != nil {
		t.Errorf("Check(http) = %+v, want nil", cs)
	}
}

func TestCheck_States(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()
	notAfter := srv.Certificate().NotAfter
	d := config.Detector{ID: "tls", Endpoint: srv.URL + "/metrics"}

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"valid", notAfter.Add(-90 * 24 * time.Hour), StatusValid},
		{"expiring", notAfter.Add(-10 * 24 * time.Hour), StatusExpiring},
		{"expired", notAfter.Add(time.Hour), StatusExpired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cs := Check(context.Background(), d, tc.now)
			if cs == nil {
				t.Fatal("Check returned nil for an https endpoint")
			}
			if cs.Status != tc.want {
				t.Errorf("Status = %q, want %q (err %v)", cs.Status, tc.want, cs.Err)
			}
			if cs.DetectorID != "tls" {
				t.Errorf("DetectorID = %q, want tls", cs.DetectorID)
			}
			if !cs.NotAfter.Equal(notAfter.UTC()) {
				t.Errorf("NotAfter = %v, want %v", cs.NotAfter, notAfter)
			}
		})
	}
}

func TestCheck_Unreachable(t *testing.T) {
	cs := Check(context.Background(), config.Detector{ID: "d", Endpoint: "https://127.0.0.1:1/metrics"}, time.Now())
	if cs == nil || cs.Status != StatusUnreachable {
		t.Errorf("Check(closed port) = %+v, want unreachable", cs)
	}
}

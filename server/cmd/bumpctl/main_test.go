package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaswdr/faker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/api"
	"github.com/bumpwatch/bumpwatch/server/internal/store"
	"github.com/bumpwatch/bumpwatch/server/internal/tracker"
)

// newServer serves the REST API over an in-memory store and counts the
// requests it receives.
func newServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	now := time.Now().UTC()
	repo := store.NewMemory(bump.ModeHealth,
		bump.Record{ID: "a", StreetName: "Main Street", Condition: bump.HealthCondition(8000), LastUpdated: now},
		bump.Record{ID: "b", StreetName: "Oak Avenue", Condition: bump.HealthCondition(5000), LastUpdated: now.Add(-time.Hour)},
		bump.Record{ID: "c", StreetName: "Elm Street", Condition: bump.HealthCondition(1000), LastUpdated: now.Add(-2 * time.Hour)},
	)
	h := api.New(tracker.New(repo, tracker.Options{Mode: bump.ModeHealth}), nil)
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

// run executes bumpctl with args against srv and returns stdout.
func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	cmd := rootCmd(&stdout, &stderr)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestList_TableFiltersCritical(t *testing.T) {
	srv, _ := newServer(t)
	out, err := run(t, srv, "list", "--filter", "critical")
	require.NoError(t, err)
	assert.Contains(t, out, "Elm Street")
	assert.NotContains(t, out, "Main Street")
	assert.True(t, strings.HasPrefix(out, "ID"), "table header first, got %q", out)
}

func TestList_BadFilter(t *testing.T) {
	srv, requests := newServer(t)
	_, err := run(t, srv, "list", "--filter", "broken")
	require.Error(t, err)
	assert.EqualValues(t, 0, requests.Load())
}

func TestList_JSONFromEnvironment(t *testing.T) {
	srv, _ := newServer(t)
	t.Setenv("BUMPCTL_OUTPUT", "json")
	out, err := run(t, srv, "list")
	require.NoError(t, err)

	var l api.ListResponse
	require.NoError(t, json.Unmarshal([]byte(out), &l))
	assert.Equal(t, 3, l.Count)
	assert.Equal(t, "a", l.Bumps[0].ID, "newest first")
}

func TestList_ConfigFile(t *testing.T) {
	srv, _ := newServer(t)
	path := filepath.Join(t.TempDir(), "bumpctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output: json\n"), 0o600))
	out, err := run(t, srv, "--config", path, "summary")
	require.NoError(t, err)

	var s api.SummaryResponse
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Critical)
}

func TestUnknownOutputFormat(t *testing.T) {
	srv, _ := newServer(t)
	_, err := run(t, srv, "-o", "xml", "list")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestUpdate_ThenGet(t *testing.T) {
	srv, _ := newServer(t)
	_, err := run(t, srv, "update", "a", "--health", "2500")
	require.NoError(t, err)

	out, err := run(t, srv, "get", "a")
	require.NoError(t, err)
	assert.Contains(t, out, "Critical")
	assert.Contains(t, out, "2500 (25%)")
}

func TestUpdate_RejectedLocally(t *testing.T) {
	srv, requests := newServer(t)
	tests := [][]string{
		{"update", "a", "--health", "20000"},
		{"update", "a", "--status", "Broken"},
		{"update", "a", "--health", "100", "--status", "Good"},
		{"update", "a"},
	}
	for _, args := range tests {
		_, err := run(t, srv, args...)
		assert.Error(t, err, "%v", args)
	}
	assert.EqualValues(t, 0, requests.Load(), "invalid input must not reach the server")
}

func TestGet_NotFound(t *testing.T) {
	srv, _ := newServer(t)
	_, err := run(t, srv, "get", "zzz")
	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	srv, _ := newServer(t)
	out, err := run(t, srv, "preview", "6999")
	require.NoError(t, err)
	assert.Equal(t, "6999 (70%) Damaged\n", out)
}

func TestExport_LocalCSV(t *testing.T) {
	srv, _ := newServer(t)
	dest := filepath.Join(t.TempDir(), "bumps.csv")
	_, err := run(t, srv, "export", dest, "--format", "csv", "--filter", "damaged")
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "b,Oak Avenue"), "got %q", lines[1])
}

func TestGenerateRecords(t *testing.T) {
	now := time.Now().UTC()
	for _, mode := range []bump.Mode{bump.ModeHealth, bump.ModeStatus} {
		recs := generateRecords(faker.New(), 20, mode, now)
		require.Len(t, recs, 20)
		seen := map[string]bool{}
		for _, r := range recs {
			assert.NoError(t, mode.Accept(r.Condition), "mode %s", mode)
			assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
			seen[r.ID] = true
			assert.NotEmpty(t, r.StreetName)
			assert.False(t, r.LastUpdated.After(now))
		}
	}
}

func TestInsertAll_Batches(t *testing.T) {
	repo := store.NewMemory(bump.ModeHealth)
	recs := generateRecords(faker.New(), 7, bump.ModeHealth, time.Now().UTC())
	var progress bytes.Buffer
	added, err := insertAll(context.Background(), repo, recs, 3, &progress)
	require.NoError(t, err)
	assert.Equal(t, 7, added)
	assert.Equal(t, 7, repo.Count())

	// A second pass inserts nothing.
	added, err = insertAll(context.Background(), repo, recs, 3, &progress)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
}

func TestSeed_SQLiteDemo(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "bumps.db")
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("server:\n  store:\n    backend: sqlite\n    path: "+db+"\n"), 0o600))

	srv, _ := newServer(t)
	out, err := run(t, srv, "seed", "--server-config", cfg, "--demo")
	require.NoError(t, err)
	assert.Equal(t, "inserted 8 of 8 records\n", out)

	s, err := store.OpenSQLite(context.Background(), db, bump.ModeHealth)
	require.NoError(t, err)
	defer s.Close()
	recs, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 8)
}

func TestSeed_MemoryBackendRejected(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("server:\n  store:\n    backend: memory\n"), 0o600))
	srv, _ := newServer(t)
	_, err := run(t, srv, "seed", "--server-config", cfg)
	assert.ErrorContains(t, err, "does not persist")
}

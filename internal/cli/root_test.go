package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeAPI serves device and sensor history, honoring the from parameter.
type fakeAPI struct {
	mu      sync.Mutex
	devices []map[string]any
	sensors []map[string]any
	fail    bool
	calls   int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.fail {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
		return
	}

	var rows []map[string]any
	switch r.URL.Path {
	case "/device/history":
		rows = f.devices
	case "/sensor/history":
		rows = f.sensors
	default:
		http.NotFound(w, r)
		return
	}

	var from int64
	if v := r.URL.Query().Get("from"); v != "" {
		from, _ = strconv.ParseInt(v, 10, 64)
	}
	out := []map[string]any{}
	for _, row := range rows {
		if row["ts"].(int64) >= from {
			out = append(out, row)
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"history": out})
}

func (f *fakeAPI) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func deviceRow(ts int64, state int, origin string) map[string]any {
	return map[string]any{"ts": ts, "state": state, "stateValue": "", "origin": origin, "successStatus": 0}
}

func sensorRow(ts int64, temp string) map[string]any {
	return map[string]any{"ts": ts, "data": []map[string]any{
		{"name": "temp", "value": temp, "scale": "0"},
		{"name": "wdir", "value": 90, "scale": "0"},
	}}
}

// setupEnv points the CLI at api and a fresh database file.
func setupEnv(t *testing.T, api *fakeAPI) string {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	t.Setenv("LIVE_API_URL", server.URL)
	t.Setenv("SYNC_RETRY_DELAY", "10ms")
	t.Setenv("LOG_LEVEL", "error")
	return filepath.Join(t.TempDir(), "history.db")
}

func runCLI(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	return runCLIContext(context.Background(), t, db, args...)
}

func runCLIContext(ctx context.Context, t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db", db}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func mustRun(t *testing.T, db string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, db, args...)
	require.NoError(t, err, out)
	return out
}

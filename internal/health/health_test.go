package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct{ err error }

func (f fakeStore) Ping(context.Context) error { return f.err }

func writeSnapshot(t *testing.T, modified time.Time) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.toml")
	require.NoError(t, os.WriteFile(path, []byte("# empty"), 0644))
	require.NoError(t, os.Chtimes(path, modified, modified))
	return path
}

func TestCheck(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name       string
		opts       Options
		wantStatus CheckStatus
		wantChecks []string
	}{
		{
			name:       "no checks enabled",
			opts:       Options{},
			wantStatus: StatusOK,
		},
		{
			name:       "healthy database",
			opts:       Options{Store: fakeStore{}},
			wantStatus: StatusOK,
			wantChecks: []string{"database"},
		},
		{
			name:       "database down",
			opts:       Options{Store: fakeStore{err: errors.New("connection refused")}},
			wantStatus: StatusError,
			wantChecks: []string{"database"},
		},
		{
			name:       "fresh snapshot",
			opts:       Options{SnapshotPath: writeSnapshot(t, now.Add(-time.Minute)), SnapshotMaxAge: 10 * time.Minute},
			wantStatus: StatusOK,
			wantChecks: []string{"snapshot"},
		},
		{
			name:       "stale snapshot",
			opts:       Options{SnapshotPath: writeSnapshot(t, now.Add(-time.Hour)), SnapshotMaxAge: 10 * time.Minute},
			wantStatus: StatusDegraded,
			wantChecks: []string{"snapshot"},
		},
		{
			name:       "no max age never stale",
			opts:       Options{SnapshotPath: writeSnapshot(t, now.Add(-24 * time.Hour))},
			wantStatus: StatusOK,
			wantChecks: []string{"snapshot"},
		},
		{
			name:       "missing snapshot",
			opts:       Options{SnapshotPath: filepath.Join(t.TempDir(), "missing.toml")},
			wantStatus: StatusError,
			wantChecks: []string{"snapshot"},
		},
		{
			name: "error beats degraded",
			opts: Options{
				Store:          fakeStore{err: errors.New("down")},
				SnapshotPath:   writeSnapshot(t, now.Add(-time.Hour)),
				SnapshotMaxAge: time.Minute,
			},
			wantStatus: StatusError,
			wantChecks: []string{"database", "snapshot"},
		},
		{
			name:       "daemon not yet run",
			opts:       Options{Interval: time.Minute},
			wantStatus: StatusOK,
			wantChecks: []string{"daemon"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewChecker(tt.opts).Check(context.Background())
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Len(t, resp.Checks, len(tt.wantChecks))
			for _, name := range tt.wantChecks {
				assert.Contains(t, resp.Checks, name)
			}
		})
	}
}

func TestCheckDaemon(t *testing.T) {
	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	t.Run("recent successful run", func(t *testing.T) {
		c := NewChecker(Options{Interval: 5 * time.Minute})
		c.now = func() time.Time { return base }
		c.UpdateLastRun(true)
		c.now = func() time.Time { return base.Add(4 * time.Minute) }

		resp := c.Check(context.Background())
		assert.Equal(t, StatusOK, resp.Status)
		assert.Equal(t, "last executed 4m0s ago", resp.Checks["daemon"].Message)
	})

	t.Run("failed run degrades", func(t *testing.T) {
		c := NewChecker(Options{Interval: 5 * time.Minute})
		c.UpdateLastRun(false)

		resp := c.Check(context.Background())
		assert.Equal(t, StatusDegraded, resp.Status)
		assert.Equal(t, StatusDegraded, resp.Checks["daemon"].Status)
	})

	t.Run("overdue run degrades", func(t *testing.T) {
		c := NewChecker(Options{Interval: 5 * time.Minute})
		c.now = func() time.Time { return base }
		c.UpdateLastRun(true)
		c.now = func() time.Time { return base.Add(11 * time.Minute) }

		resp := c.Check(context.Background())
		assert.Equal(t, StatusDegraded, resp.Status)
		assert.Contains(t, resp.Checks["daemon"].Message, "no execution in 11m0s")
	})
}

func TestHandler(t *testing.T) {
	t.Run("healthy returns 200", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewChecker(Options{Store: fakeStore{}}).Handler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, StatusOK, resp.Status)
		assert.Equal(t, StatusOK, resp.Checks["database"].Status)
	})

	t.Run("error returns 503", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewChecker(Options{Store: fakeStore{err: errors.New("down")}}).Handler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

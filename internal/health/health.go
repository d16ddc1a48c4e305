// Package health reports the state of token-pricer's dependencies.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// Pinger is implemented by the storage layer
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckStatus represents the health status of a component
type CheckStatus string

const (
	StatusOK       CheckStatus = "ok"
	StatusDegraded CheckStatus = "degraded"
	StatusError    CheckStatus = "error"
)

// HealthResponse is the JSON response structure
type HealthResponse struct {
	Status    CheckStatus            `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckDetail `json:"checks"`
	Uptime    string                 `json:"uptime,omitempty"`
}

// CheckDetail contains details about a specific health check
type CheckDetail struct {
	Status  CheckStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

// Options selects the checks a Checker runs. Zero values disable a check.
type Options struct {
	Store          Pinger
	SnapshotPath   string
	SnapshotMaxAge time.Duration
	Interval       time.Duration // daemon interval
}

// Checker performs health checks on application dependencies
type Checker struct {
	opts           Options
	started        time.Time
	now            func() time.Time
	lastRunTime    time.Time
	lastRunSuccess bool
	mu             sync.RWMutex
}

// NewChecker creates a new health checker
func NewChecker(opts Options) *Checker {
	return &Checker{opts: opts, started: time.Now(), now: time.Now}
}

// UpdateLastRun updates the timestamp and status of the last execution
func (c *Checker) UpdateLastRun(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRunTime = c.now()
	c.lastRunSuccess = success
}

// worse returns the more severe of two statuses
func worse(a, b CheckStatus) CheckStatus {
	rank := map[CheckStatus]int{StatusOK: 0, StatusDegraded: 1, StatusError: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Check performs all enabled checks and returns the aggregated status
func (c *Checker) Check(ctx context.Context) HealthResponse {
	checks := make(map[string]CheckDetail)
	overall := StatusOK

	if c.opts.Store != nil {
		checks["database"] = c.checkDatabase(ctx)
		overall = worse(overall, checks["database"].Status)
	}

	if c.opts.SnapshotPath != "" {
		checks["snapshot"] = c.checkSnapshot()
		overall = worse(overall, checks["snapshot"].Status)
	}

	// A failing daemon never makes the service unavailable
	if c.opts.Interval > 0 {
		checks["daemon"] = c.checkDaemon()
		if checks["daemon"].Status != StatusOK {
			overall = worse(overall, StatusDegraded)
		}
	}

	return HealthResponse{
		Status:    overall,
		Timestamp: c.now(),
		Checks:    checks,
		Uptime:    c.now().Sub(c.started).Round(time.Second).String(),
	}
}

// checkDatabase verifies PostgreSQL connectivity
func (c *Checker) checkDatabase(ctx context.Context) CheckDetail {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.opts.Store.Ping(ctx); err != nil {
		slog.Error("Health check: database ping failed", "error", err)
		return CheckDetail{
			Status:  StatusError,
			Message: "database unreachable: " + err.Error(),
		}
	}

	return CheckDetail{Status: StatusOK, Message: "database connection healthy"}
}

// checkSnapshot verifies the snapshot file exists and is recent enough
func (c *Checker) checkSnapshot() CheckDetail {
	info, err := os.Stat(c.opts.SnapshotPath)
	if err != nil {
		slog.Error("Health check: snapshot unavailable", "path", c.opts.SnapshotPath, "error", err)
		return CheckDetail{
			Status:  StatusError,
			Message: "snapshot unavailable: " + err.Error(),
		}
	}

	age := c.now().Sub(info.ModTime()).Round(time.Second)
	if c.opts.SnapshotMaxAge > 0 && age > c.opts.SnapshotMaxAge {
		return CheckDetail{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("snapshot is %s old (max %s)", age, c.opts.SnapshotMaxAge),
		}
	}

	return CheckDetail{Status: StatusOK, Message: fmt.Sprintf("snapshot updated %s ago", age)}
}

// checkDaemon verifies the daemon is executing at expected intervals
func (c *Checker) checkDaemon() CheckDetail {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.lastRunTime.IsZero() {
		return CheckDetail{Status: StatusOK, Message: "daemon not yet executed (startup)"}
	}

	if !c.lastRunSuccess {
		return CheckDetail{Status: StatusDegraded, Message: "last execution failed"}
	}

	// Allow a 2x interval grace period
	sinceLastRun := c.now().Sub(c.lastRunTime)
	if sinceLastRun > c.opts.Interval*2 {
		return CheckDetail{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("no execution in %s (expected every %s)", sinceLastRun.Round(time.Second), c.opts.Interval),
		}
	}

	return CheckDetail{
		Status:  StatusOK,
		Message: fmt.Sprintf("last executed %s ago", sinceLastRun.Round(time.Second)),
	}
}

// Handler returns an http.HandlerFunc for the health endpoint
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.Check(r.Context())

		statusCode := http.StatusOK
		if status.Status == StatusError {
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		if err := json.NewEncoder(w).Encode(status); err != nil {
			slog.Error("Failed to encode health response", "error", err)
		}
	}
}

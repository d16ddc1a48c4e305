// Package scheduler runs a job on clock-aligned boundaries using gocron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// JobFunc is the function signature for scheduled jobs
type JobFunc func(ctx context.Context) error

// Config holds scheduler configuration
type Config struct {
	Interval       string         // Duration (e.g., "5m") or cron expression (e.g., "*/5 * * * *")
	Timezone       *time.Location // Timezone for cron expressions (default: UTC)
	RunImmediately bool           // Execute once before the first aligned tick
	Logger         *slog.Logger
}

// Scheduler wraps a single gocron job
type Scheduler struct {
	cron           gocron.Scheduler
	job            gocron.Job
	interval       string
	timezone       *time.Location
	runImmediately bool
	logger         *slog.Logger
}

// alignment describes how a duration unit maps onto a cron field.
// A step is accepted only if it divides span evenly.
type alignment struct {
	unit   time.Duration
	suffix string
	span   int
	format string
}

var (
	bySecond = alignment{time.Second, "s", 60, "*/%d * * * * *"}
	byMinute = alignment{time.Minute, "m", 60, "*/%d * * * *"}
	byHour   = alignment{time.Hour, "h", 24, "0 */%d * * *"}
)

// NewScheduler creates a scheduler running jobFunc on cfg.Interval
func NewScheduler(ctx context.Context, cfg Config, jobFunc JobFunc) (*Scheduler, error) {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	cronExpr := cfg.Interval
	if !isCronExpression(cronExpr) {
		var err error
		if cronExpr, err = durationToCron(cfg.Interval); err != nil {
			return nil, fmt.Errorf("invalid interval: %w", err)
		}
	}
	cfg.Logger.Info("Schedule resolved", "schedule", DescribeSchedule(cfg.Interval, cfg.Timezone))

	cron, err := gocron.NewScheduler(
		gocron.WithLocation(cfg.Timezone),
		gocron.WithLogger(newGocronLoggerAdapter(cfg.Logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	s := &Scheduler{
		cron:           cron,
		interval:       cfg.Interval,
		timezone:       cfg.Timezone,
		runImmediately: cfg.RunImmediately,
		logger:         cfg.Logger,
	}

	s.job, err = cron.NewJob(
		gocron.CronJob(cronExpr, len(strings.Fields(cronExpr)) == 6),
		gocron.NewTask(func() {
			if err := jobFunc(ctx); err != nil {
				s.logger.Error("Job execution failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = cron.Shutdown()
		return nil, fmt.Errorf("failed to create scheduled job: %w", err)
	}

	return s, nil
}

// Start begins the scheduler
func (s *Scheduler) Start() error {
	s.cron.Start()

	if s.runImmediately {
		s.logger.Info("Executing job immediately")
		if err := s.job.RunNow(); err != nil {
			// Keep the schedule even if the first run could not be queued
			s.logger.Error("Immediate execution failed", "error", err)
		}
	}

	if nextRun, err := s.NextRun(); err == nil {
		s.logger.Info("Scheduler started", "next_run", nextRun.Format(time.RFC3339), "timezone", s.timezone.String())
	} else {
		s.logger.Info("Scheduler started")
	}
	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.cron.Shutdown()
}

// NextRun returns the next scheduled run time
func (s *Scheduler) NextRun() (time.Time, error) {
	nextRun, err := s.job.NextRun()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get next run: %w", err)
	}
	return nextRun, nil
}

// LastRun returns the last run time
func (s *Scheduler) LastRun() (time.Time, error) {
	lastRun, err := s.job.LastRun()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last run: %w", err)
	}
	return lastRun, nil
}

// ExpectedInterval returns the period between runs. Cron expressions may be
// irregular, so they report a conservative 5 minutes.
func (s *Scheduler) ExpectedInterval() time.Duration {
	if d, err := time.ParseDuration(s.interval); err == nil {
		return d
	}
	return 5 * time.Minute
}

// isCronExpression reports whether s has 5 or 6 space-separated fields
func isCronExpression(s string) bool {
	n := len(strings.Fields(s))
	return n == 5 || n == 6
}

// durationToCron converts a duration string to a clock-aligned cron expression
//
//	"5m"  -> "*/5 * * * *"
//	"1h"  -> "0 */1 * * *"
//	"30s" -> "*/30 * * * * *"
func durationToCron(durationStr string) (string, error) {
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return "", fmt.Errorf("invalid duration format: %w", err)
	}
	if d <= 0 {
		return "", fmt.Errorf("duration must be positive (got %s)", durationStr)
	}

	var a alignment
	switch {
	case d < time.Minute:
		a = bySecond
	case d < time.Hour:
		a = byMinute
	default:
		a = byHour
	}

	if d%a.unit != 0 {
		return "", fmt.Errorf("duration must be whole seconds, minutes, or hours (got %s)", durationStr)
	}
	step := int(d / a.unit)
	if a.span%step != 0 {
		return "", fmt.Errorf("interval %s does not divide evenly into %d%s", durationStr, a.span, a.suffix)
	}
	return fmt.Sprintf(a.format, step), nil
}

// ValidateScheduleInterval validates a schedule interval (duration or cron).
// Empty means one-shot mode and is valid.
func ValidateScheduleInterval(interval string) error {
	if interval == "" {
		return nil
	}
	if strings.ContainsAny(interval, "*") || len(strings.Fields(interval)) > 1 {
		if !isCronExpression(interval) {
			return errors.New("cron expression must have 5 or 6 fields")
		}
		return nil
	}
	_, err := durationToCron(interval)
	return err
}

// DescribeSchedule returns a human-readable description of the schedule
func DescribeSchedule(interval string, timezone *time.Location) string {
	if timezone == nil {
		timezone = time.UTC
	}

	if isCronExpression(interval) {
		return fmt.Sprintf("cron: %s (%s)", interval, timezone.String())
	}

	duration, err := time.ParseDuration(interval)
	if err != nil {
		return fmt.Sprintf("invalid: %s", interval)
	}

	cronExpr, err := durationToCron(interval)
	if err != nil {
		return fmt.Sprintf("duration: %s (non-aligned)", interval)
	}

	return fmt.Sprintf("every %s (aligned to clock, cron: %s, %s)", duration, cronExpr, timezone.String())
}

// gocronLoggerAdapter adapts slog.Logger to the gocron.Logger interface
type gocronLoggerAdapter struct {
	logger *slog.Logger
}

func newGocronLoggerAdapter(logger *slog.Logger) gocron.Logger {
	return &gocronLoggerAdapter{logger: logger.With("component", "gocron")}
}

func (a *gocronLoggerAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a *gocronLoggerAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *gocronLoggerAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *gocronLoggerAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }

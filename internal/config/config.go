package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/matrixise/token-pricer/internal/fixedpoint"
	"github.com/matrixise/token-pricer/internal/scheduler"
	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	SnapshotFile   string        `mapstructure:"snapshot_file" validate:"required"`
	SnapshotMaxAge string        `mapstructure:"snapshot_max_age" validate:"omitempty,duration"`
	NativeCurrency string        `mapstructure:"native_currency" validate:"required"`
	Watches        []WatchConfig `mapstructure:"watches" validate:"dive"`
	Interval       string        `mapstructure:"interval" validate:"omitempty,schedule"`
	Timezone       string        `mapstructure:"timezone" validate:"omitempty,timezone"`
	RunImmediately *bool         `mapstructure:"run_immediately"`
	LogLevel       string        `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	HTTPPort       int           `mapstructure:"http_port" validate:"omitempty,min=1024,max=65535"`
}

// WatchConfig describes a wallet/price pair evaluated by quote and run
type WatchConfig struct {
	Label         string   `mapstructure:"label" validate:"required,min=1,max=100"`
	Wallet        string   `mapstructure:"wallet" validate:"required,eth_addr"`
	Target        string   `mapstructure:"target" validate:"required"`
	Targets       []string `mapstructure:"targets" validate:"dive,required"`
	PriceCurrency string   `mapstructure:"price_currency" validate:"required"`
	PriceAmount   string   `mapstructure:"price_amount" validate:"required,decimal"`
}

// Normalize trims target lists and makes sure each watch prices its own target
func (c *Config) Normalize() error {
	labels := make(map[string]struct{}, len(c.Watches))
	for i := range c.Watches {
		w := &c.Watches[i]
		if _, dup := labels[w.Label]; dup {
			return fmt.Errorf("duplicate watch label %q", w.Label)
		}
		labels[w.Label] = struct{}{}

		targets := make([]string, 0, len(w.Targets)+1)
		for _, t := range w.Targets {
			t = strings.TrimSpace(t)
			if t != "" && !slices.Contains(targets, t) {
				targets = append(targets, t)
			}
		}
		if w.Target != "" && !slices.Contains(targets, w.Target) {
			targets = append(targets, w.Target)
		}
		w.Targets = targets
	}
	return nil
}

// GetTimezone returns the configured location, UTC when unset or invalid
func (c *Config) GetTimezone() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ShouldRunImmediately defaults to true
func (c *Config) ShouldRunImmediately() bool {
	if c.RunImmediately == nil {
		return true
	}
	return *c.RunImmediately
}

// IsCronExpression reports whether Interval is a cron expression
func (c *Config) IsCronExpression() bool {
	return len(strings.Fields(c.Interval)) >= 5
}

// GetSnapshotMaxAge returns the snapshot freshness threshold, zero if unset
func (c *Config) GetSnapshotMaxAge() time.Duration {
	d, err := time.ParseDuration(c.SnapshotMaxAge)
	if err != nil {
		return 0
	}
	return d
}

// ethAddressValidator validates Ethereum addresses
func ethAddressValidator(fl validator.FieldLevel) bool {
	return common.IsHexAddress(fl.Field().String())
}

// durationValidator validates duration strings
func durationValidator(fl validator.FieldLevel) bool {
	_, err := time.ParseDuration(fl.Field().String())
	return err == nil
}

// scheduleValidator accepts clock-aligned durations and cron expressions
func scheduleValidator(fl validator.FieldLevel) bool {
	return scheduler.ValidateScheduleInterval(fl.Field().String()) == nil
}

// decimalValidator validates non-negative decimal strings of bounded size
func decimalValidator(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && !d.IsNegative() && fixedpoint.CheckRange(d) == nil
}

// NewValidator creates a validator with custom validation rules
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterValidation("eth_addr", ethAddressValidator)
	validate.RegisterValidation("duration", durationValidator)
	validate.RegisterValidation("schedule", scheduleValidator)
	validate.RegisterValidation("decimal", decimalValidator)
	return validate
}

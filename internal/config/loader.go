package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("interval", "") // Run once by default
	v.SetDefault("http_port", 8080)
	v.SetDefault("run_immediately", true)
	v.SetDefault("timezone", "UTC")
	v.SetDefault("native_currency", "token-ETH")
	v.SetDefault("snapshot_file", "snapshot.toml")

	// 2. Configure config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	// 3. Environment variables (TOKEN_PRICER_LOG_LEVEL -> log_level)
	v.SetEnvPrefix("TOKEN_PRICER")
	v.AutomaticEnv()

	v.BindEnv("snapshot_file", "TOKEN_PRICER_SNAPSHOT_FILE", "SNAPSHOT_FILE")
	v.BindEnv("snapshot_max_age", "TOKEN_PRICER_SNAPSHOT_MAX_AGE", "SNAPSHOT_MAX_AGE")
	v.BindEnv("native_currency", "TOKEN_PRICER_NATIVE_CURRENCY", "NATIVE_CURRENCY")
	v.BindEnv("log_level", "TOKEN_PRICER_LOG_LEVEL", "LOG_LEVEL")
	v.BindEnv("interval", "TOKEN_PRICER_INTERVAL", "INTERVAL")
	v.BindEnv("http_port", "TOKEN_PRICER_HTTP_PORT", "HTTP_PORT")
	v.BindEnv("run_immediately", "TOKEN_PRICER_RUN_IMMEDIATELY", "RUN_IMMEDIATELY")
	v.BindEnv("timezone", "TOKEN_PRICER_TIMEZONE", "TIMEZONE")

	// 4. Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 5. Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Normalize watch targets
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("config normalization failed: %w", err)
	}

	// 7. Validate with validator
	validate := NewValidator()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// DatabaseURL reads DATABASE_URL from the environment
func DatabaseURL() (string, error) {
	v := viper.New()
	v.BindEnv("database_url", "DATABASE_URL")
	dsn := v.GetString("database_url")
	if dsn == "" {
		return "", fmt.Errorf("DATABASE_URL is required")
	}
	return dsn, nil
}

// LoadWithDefaults loads config along with the required DATABASE_URL
func LoadWithDefaults(configPath string) (*Config, string, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, "", err
	}

	databaseURL, err := DatabaseURL()
	if err != nil {
		return nil, "", err
	}

	return cfg, databaseURL, nil
}

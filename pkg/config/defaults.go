package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shmkit/itsgate/pkg/directory/store"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	applyGatewayDefaults(&cfg.Gateway)
	applyMetricsDefaults(&cfg.Metrics)

	for key, inst := range cfg.Instances {
		inst.Directory.ApplyDefaults()
		cfg.Instances[key] = inst
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyGatewayDefaults sets listener defaults.
func applyGatewayDefaults(cfg *GatewayConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8443
	}
	if cfg.SessionLogInterval == 0 {
		cfg.SessionLogInterval = 5 * time.Second
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a configuration with all defaults applied and a
// single local sqlite instance. It is the starting point for `itsgate init`.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Gateway: GatewayConfig{
			CertFile: "server.crt",
			KeyFile:  "server.key",
		},
		Instances: map[string]InstanceConfig{
			"1": {
				Directory: store.Config{Type: store.DatabaseTypeSQLite},
				TimeSeries: TimeSeriesConfig{
					Host:   "localhost",
					Port:   "8086",
					Org:    "monitoring",
					Bucket: "sensordata",
				},
			},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// Validate checks the configuration for structural problems beyond what the
// validator tags express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	for key, inst := range cfg.Instances {
		if err := inst.Directory.Validate(); err != nil {
			return fmt.Errorf("instance %q directory: %w", key, err)
		}
	}

	return nil
}

// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Database   DatabaseConfig    `yaml:"database"`
	Monitoring MonitoringConfig  `yaml:"monitoring"`
	Prometheus PrometheusConfig  `yaml:"prometheus"`
	Logging    LoggingConfig     `yaml:"logging"`
	Thresholds []ThresholdConfig `yaml:"thresholds"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Type             string        `yaml:"type"`
	Path             string        `yaml:"path"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
	EventRetention   time.Duration `yaml:"event_retention"`
	MetricRetention  time.Duration `yaml:"metric_retention"`
	ReportRetention  time.Duration `yaml:"report_retention"`
	AlertRetention   time.Duration `yaml:"alert_retention"`
	CompactOnCleanup bool          `yaml:"compact_on_cleanup"`
}

type MonitoringConfig struct {
	CheckInterval time.Duration `yaml:"check_interval"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	UptimeWindow  time.Duration `yaml:"uptime_window"`
	Services      []string      `yaml:"services"`
}

type PrometheusConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MetricsPath string `yaml:"metrics_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ThresholdConfig overrides the default warning/critical cutoffs for one
// metric type.
type ThresholdConfig struct {
	Metric   string  `yaml:"metric"`
	Warning  float64 `yaml:"warning"`
	Critical float64 `yaml:"critical"`
	Unit     string  `yaml:"unit"`
}

func Load(filename string) (*Config, error) {
	config, err := loadConfigFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Set defaults
	setDefaults(config)

	// Validate
	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadConfigFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &config, nil
}

func setDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}

	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "boltdb"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/argus.db"
	}
	if cfg.Database.CleanupInterval == 0 {
		cfg.Database.CleanupInterval = 6 * time.Hour
	}
	if cfg.Database.EventRetention == 0 {
		cfg.Database.EventRetention = 90 * 24 * time.Hour
	}
	if cfg.Database.MetricRetention == 0 {
		cfg.Database.MetricRetention = 30 * 24 * time.Hour
	}
	if cfg.Database.ReportRetention == 0 {
		cfg.Database.ReportRetention = 30 * 24 * time.Hour
	}
	if cfg.Database.AlertRetention == 0 {
		cfg.Database.AlertRetention = 7 * 24 * time.Hour
	}

	// Monitoring defaults
	if cfg.Monitoring.CheckInterval == 0 {
		cfg.Monitoring.CheckInterval = 30 * time.Second
	}
	if cfg.Monitoring.ProbeTimeout == 0 {
		cfg.Monitoring.ProbeTimeout = 5 * time.Second
	}
	if cfg.Monitoring.UptimeWindow == 0 {
		cfg.Monitoring.UptimeWindow = 24 * time.Hour
	}
	if len(cfg.Monitoring.Services) == 0 {
		cfg.Monitoring.Services = []string{"system", "database", "api"}
	}

	// Prometheus defaults
	if cfg.Prometheus.MetricsPath == "" {
		cfg.Prometheus.MetricsPath = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func validate(cfg *Config) error {
	if cfg.Database.Type != "boltdb" {
		return fmt.Errorf("only boltdb is supported currently")
	}

	// Validate monitoring configuration
	if cfg.Monitoring.CheckInterval <= 0 {
		return fmt.Errorf("monitoring.check_interval must be positive")
	}
	if cfg.Monitoring.ProbeTimeout <= 0 {
		return fmt.Errorf("monitoring.probe_timeout must be positive")
	}
	if cfg.Monitoring.UptimeWindow <= 0 {
		return fmt.Errorf("monitoring.uptime_window must be positive")
	}

	// Validate for duplicate monitored services
	services := make(map[string]bool)
	for _, name := range cfg.Monitoring.Services {
		if name == "" {
			return fmt.Errorf("monitoring.services contains empty service name")
		}
		if services[name] {
			return fmt.Errorf("duplicate monitored service: %s", name)
		}
		services[name] = true
	}

	// Validate threshold overrides
	seen := make(map[string]bool)
	for _, t := range cfg.Thresholds {
		if t.Metric == "" {
			return fmt.Errorf("thresholds entry missing metric name")
		}
		if seen[t.Metric] {
			return fmt.Errorf("duplicate threshold for metric: %s", t.Metric)
		}
		seen[t.Metric] = true

		if t.Critical < t.Warning {
			return fmt.Errorf("threshold for %s: critical (%v) must be >= warning (%v)", t.Metric, t.Critical, t.Warning)
		}
	}

	return nil
}

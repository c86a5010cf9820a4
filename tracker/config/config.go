package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the top level tracker configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Detection DetectionConfig `yaml:"detection"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Server    ServerConfig    `yaml:"server"`
}

// DatabaseConfig selects the storage driver. The default is a local SQLite
// file; PostgreSQL is available for shared deployments.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite3" or "postgres"
	Path   string `yaml:"path"`   // sqlite3 database file

	// PostgreSQL settings, used only when driver is "postgres"
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Database     string `yaml:"database"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// ConnectionString builds the driver-specific DSN.
func (c *DatabaseConfig) ConnectionString() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
			c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode)
	}
	return c.Path
}

// DetectionConfig holds the regression detection policy. ThresholdPercent is
// the minimum positive change that fires an alert; the band cutoffs map a
// change percentage to a severity.
type DetectionConfig struct {
	ThresholdPercent float64 `yaml:"threshold_percent"`
	MediumPercent    float64 `yaml:"medium_percent"`
	HighPercent      float64 `yaml:"high_percent"`
	CriticalPercent  float64 `yaml:"critical_percent"`
}

// AnalysisConfig holds the reporting policy defaults.
type AnalysisConfig struct {
	TrendDays            int     `yaml:"trend_days"`
	StabilityBandPercent float64 `yaml:"stability_band_percent"` // comparison: |change| <= band is stable
	SignificanceLevel    float64 `yaml:"significance_level"`     // p-value cutoff for a degrading trend
}

// ServerConfig configures the optional HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the documented default configuration: local SQLite store,
// 10% detection threshold, 15/25/50 severity bands, 5% comparison stability
// band.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:       "sqlite3",
			Path:         "benchmarks/performance.db",
			Host:         "localhost",
			Port:         5432,
			Database:     "benchmarks",
			User:         "postgres",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Detection: DetectionConfig{
			ThresholdPercent: 10.0,
			MediumPercent:    15.0,
			HighPercent:      25.0,
			CriticalPercent:  50.0,
		},
		Analysis: AnalysisConfig{
			TrendDays:            30,
			StabilityBandPercent: 5.0,
			SignificanceLevel:    0.05,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the path is empty or the file does not exist. Missing fields are filled
// with their defaults.
func Load(path string, log logrus.FieldLogger) (*Config, error) {
	log = log.WithField("component", "config")

	if path == "" {
		log.Debug("No config path provided, using defaults")
		return Default(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.WithField("path", path).Info("Config file not found, using defaults")
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.WithField("path", path).Debug("Loaded configuration")
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()

	if c.Database.Driver == "" {
		c.Database.Driver = def.Database.Driver
	}
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.Database.Host == "" {
		c.Database.Host = def.Database.Host
	}
	if c.Database.Port == 0 {
		c.Database.Port = def.Database.Port
	}
	if c.Database.Database == "" {
		c.Database.Database = def.Database.Database
	}
	if c.Database.User == "" {
		c.Database.User = def.Database.User
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = def.Database.SSLMode
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = def.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = def.Database.MaxIdleConns
	}
	if c.Detection.ThresholdPercent == 0 {
		c.Detection.ThresholdPercent = def.Detection.ThresholdPercent
	}
	if c.Detection.MediumPercent == 0 {
		c.Detection.MediumPercent = def.Detection.MediumPercent
	}
	if c.Detection.HighPercent == 0 {
		c.Detection.HighPercent = def.Detection.HighPercent
	}
	if c.Detection.CriticalPercent == 0 {
		c.Detection.CriticalPercent = def.Detection.CriticalPercent
	}
	if c.Analysis.TrendDays == 0 {
		c.Analysis.TrendDays = def.Analysis.TrendDays
	}
	if c.Analysis.StabilityBandPercent == 0 {
		c.Analysis.StabilityBandPercent = def.Analysis.StabilityBandPercent
	}
	if c.Analysis.SignificanceLevel == 0 {
		c.Analysis.SignificanceLevel = def.Analysis.SignificanceLevel
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
}

// Validate rejects configurations the analyzers cannot work with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Detection.ThresholdPercent < 0 {
		return fmt.Errorf("detection threshold must be non-negative, got %f", c.Detection.ThresholdPercent)
	}
	if c.Detection.MediumPercent > c.Detection.HighPercent || c.Detection.HighPercent > c.Detection.CriticalPercent {
		return fmt.Errorf("severity bands must be ordered medium <= high <= critical")
	}
	if c.Analysis.SignificanceLevel <= 0 || c.Analysis.SignificanceLevel >= 1 {
		return fmt.Errorf("significance level must be in (0, 1), got %f", c.Analysis.SignificanceLevel)
	}
	return nil
}

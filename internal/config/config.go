// Package config loads harvester settings from defaults, an optional YAML
// file, and environment-variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all harvester settings.
type Config struct {
	Archive ArchiveConfig `yaml:"archive"`
	Box     BoxConfig     `yaml:"box"`
	Paths   PathsConfig   `yaml:"paths"`
	Run     RunConfig     `yaml:"run"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Publish PublishConfig `yaml:"publish"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// ArchiveConfig describes the remote OpenDAP archive.
type ArchiveConfig struct {
	BaseURL string        `yaml:"base_url"`
	Product string        `yaml:"product"`
	Timeout time.Duration `yaml:"timeout"`
}

// BoxConfig holds the geographic bounding box as four scalar bounds.
type BoxConfig struct {
	LatMin float64 `yaml:"lat_min"`
	LatMax float64 `yaml:"lat_max"`
	LonMin float64 `yaml:"lon_min"`
	LonMax float64 `yaml:"lon_max"`
}

// PathsConfig holds the local file locations the harvester writes to.
type PathsConfig struct {
	LedgerDir   string `yaml:"ledger_dir"`
	ScratchPath string `yaml:"scratch_path"`
	TablePath   string `yaml:"table_path"`
}

// RunConfig bounds the date walk.
type RunConfig struct {
	StartDate string `yaml:"start_date"` // inclusive lower bound, ISO date

	start time.Time
}

// Start returns the parsed inclusive lower bound of the date walk.
func (r RunConfig) Start() time.Time { return r.start }

// LogConfig controls structured log output.
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `yaml:"format"` // "json" | "text"
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// PublishConfig controls the optional post-run upload of the table and
// ledgers to a blob bucket. An empty BucketURL disables publishing.
type PublishConfig struct {
	BucketURL string `yaml:"bucket_url"` // file://, gs://, or s3:// URL
	Prefix    string `yaml:"prefix"`
}

// CatalogConfig controls the optional sqlite run catalog. An empty Path
// disables the catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Load builds a Config from defaults, the YAML file at path (if non-empty),
// and environment variables, then validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Archive: ArchiveConfig{
			BaseURL: "https://oco2.gesdisc.eosdis.nasa.gov/opendap",
			Product: "OCO2_L2_IMAPDOAS.7r",
			Timeout: 60 * time.Second,
		},
		Box: BoxConfig{
			LatMin: 45,
			LatMax: 47,
			LonMin: -91,
			LonMax: -89,
		},
		Paths: PathsConfig{
			LedgerDir:   "./data/ledger",
			ScratchPath: "./data/granule.scratch",
			TablePath:   "./data/soundings.csv",
		},
		Run: RunConfig{
			StartDate: "2014-09-06",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Archive.BaseURL = getenvDefault("ARCHIVE_BASE_URL", cfg.Archive.BaseURL)
	cfg.Archive.Product = getenvDefault("ARCHIVE_PRODUCT", cfg.Archive.Product)
	if v := os.Getenv("ARCHIVE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Archive.Timeout = d
		}
	}

	cfg.Box.LatMin = getenvFloat("BOX_LAT_MIN", cfg.Box.LatMin)
	cfg.Box.LatMax = getenvFloat("BOX_LAT_MAX", cfg.Box.LatMax)
	cfg.Box.LonMin = getenvFloat("BOX_LON_MIN", cfg.Box.LonMin)
	cfg.Box.LonMax = getenvFloat("BOX_LON_MAX", cfg.Box.LonMax)

	cfg.Paths.LedgerDir = getenvDefault("LEDGER_DIR", cfg.Paths.LedgerDir)
	cfg.Paths.ScratchPath = getenvDefault("SCRATCH_PATH", cfg.Paths.ScratchPath)
	cfg.Paths.TablePath = getenvDefault("TABLE_PATH", cfg.Paths.TablePath)

	cfg.Run.StartDate = getenvDefault("START_DATE", cfg.Run.StartDate)

	cfg.Log.Level = getenvDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenvDefault("LOG_FORMAT", cfg.Log.Format)

	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true"
	}
	cfg.Metrics.Address = getenvDefault("METRICS_ADDRESS", cfg.Metrics.Address)

	cfg.Publish.BucketURL = getenvDefault("PUBLISH_BUCKET_URL", cfg.Publish.BucketURL)
	cfg.Publish.Prefix = getenvDefault("PUBLISH_PREFIX", cfg.Publish.Prefix)

	cfg.Catalog.Path = getenvDefault("CATALOG_PATH", cfg.Catalog.Path)
}

func (c *Config) validate() error {
	if c.Archive.BaseURL == "" {
		return fmt.Errorf("archive base_url is required")
	}
	if c.Archive.Product == "" {
		return fmt.Errorf("archive product is required")
	}
	if c.Archive.Timeout <= 0 {
		return fmt.Errorf("archive timeout must be positive, got %s", c.Archive.Timeout)
	}
	if c.Box.LatMin >= c.Box.LatMax {
		return fmt.Errorf("box lat_min %v must be below lat_max %v", c.Box.LatMin, c.Box.LatMax)
	}
	if c.Box.LonMin >= c.Box.LonMax {
		return fmt.Errorf("box lon_min %v must be below lon_max %v", c.Box.LonMin, c.Box.LonMax)
	}
	if c.Paths.LedgerDir == "" || c.Paths.ScratchPath == "" || c.Paths.TablePath == "" {
		return fmt.Errorf("ledger_dir, scratch_path, and table_path are all required")
	}

	start, err := time.ParseInLocation("2006-01-02", c.Run.StartDate, time.UTC)
	if err != nil {
		return fmt.Errorf("parse start_date %q: %w", c.Run.StartDate, err)
	}
	c.Run.start = start

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics address is required when metrics are enabled")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return def
}

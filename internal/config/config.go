package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	appLog "shiftwage/internal/log"
	"shiftwage/internal/payroll"
	"shiftwage/internal/period"
)

const (
	DefaultInput          = "data/example.ics"
	DefaultTimezone       = "UTC"
	DefaultCacheDir       = "./cache/ics-cache"
	DefaultMaxOccurrences = 5000
	DefaultLogLevel       = "info"
)

// Environment variables that override file values.
const (
	EnvInput      = "SHIFTWAGE_INPUT"
	EnvHourlyRate = "SHIFTWAGE_HOURLY_RATE"
	EnvTimezone   = "SHIFTWAGE_TIMEZONE"
	EnvPeriod     = "SHIFTWAGE_PERIOD"
	EnvOrder      = "SHIFTWAGE_ORDER"
	EnvLogLevel   = "SHIFTWAGE_LOG_LEVEL"
)

// Config is the top-level application configuration.
type Config struct {
	// Input is the calendar to report on: a file path or an http(s) URL.
	Input string `yaml:"input" json:"input"`

	// HourlyRate is the wage paid per hour of shift. Left out, it defaults
	// to payroll.DefaultHourlyRate; zero or negative values are rejected.
	HourlyRate float64 `yaml:"hourly_rate" json:"hourly_rate"`

	// Timezone is the IANA zone used for floating date-times and pay period
	// boundaries (e.g. "America/Toronto"). "Local" selects the host zone
	// explicitly.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Order controls output ordering:
	//   - "title" (default): sorted by employee name
	//   - "first_seen": order of first appearance in the calendar
	Order string `yaml:"order" json:"order"`

	// Period is a cron expression whose activations delimit pay periods
	// (e.g. "0 0 1 * *" for monthly). Empty reports on every event in the
	// calendar without recurrence expansion.
	Period string `yaml:"period,omitempty" json:"period,omitempty"`

	// CacheDir holds the HTTP cache for URL inputs.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// MaxOccurrences caps recurrence expansion per event in period mode.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`

	// LogLevel is one of debug, info or error.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Input:          DefaultInput,
		HourlyRate:     payroll.DefaultHourlyRate,
		Timezone:       DefaultTimezone,
		Order:          string(payroll.OrderTitle),
		CacheDir:       DefaultCacheDir,
		MaxOccurrences: DefaultMaxOccurrences,
		LogLevel:       DefaultLogLevel,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Input == "" {
		c.Input = DefaultInput
	}
	if c.HourlyRate == 0 {
		c.HourlyRate = payroll.DefaultHourlyRate
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.Order == "" {
		c.Order = string(payroll.OrderTitle)
	}
	c.Period = strings.TrimSpace(c.Period)
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = DefaultMaxOccurrences
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate rejects values that Normalize cannot repair.
func (c *Config) Validate() error {
	if c.HourlyRate <= 0 {
		return fmt.Errorf("config: hourly_rate must be positive, got %v", c.HourlyRate)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := payroll.ParseOrder(c.Order); err != nil {
		return err
	}
	if c.Period != "" {
		if err := period.Validate(c.Period); err != nil {
			return err
		}
	}
	if _, err := appLog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// A missing file is not an error: defaults are returned and nothing is
// written. Use Save to materialize a config file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// LoadEnv reads envFile (if present) into the process environment and then
// applies SHIFTWAGE_* overrides to c. Variables already set in the
// environment win over the file.
func (c *Config) LoadEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	if v, ok := os.LookupEnv(EnvInput); ok && v != "" {
		c.Input = v
	}
	if v, ok := os.LookupEnv(EnvHourlyRate); ok && v != "" {
		rate, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvHourlyRate, err)
		}
		if rate <= 0 {
			return fmt.Errorf("config: %s must be positive, got %v", EnvHourlyRate, rate)
		}
		c.HourlyRate = rate
	}
	if v, ok := os.LookupEnv(EnvTimezone); ok && v != "" {
		c.Timezone = v
	}
	if v, ok := os.LookupEnv(EnvPeriod); ok {
		c.Period = v
	}
	if v, ok := os.LookupEnv(EnvOrder); ok && v != "" {
		c.Order = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}

	c.Normalize()
	return nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".shiftwage-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// Package config loads soilfit settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/soilfit/internal/fit"
)

// Config is the complete soilfit configuration
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
	Fit     FitConfig     `yaml:"fit"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ServerConfig controls the HTTP job server
type ServerConfig struct {
	Address         string        `yaml:"address"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	// DataDir restricts the data files a job may reference by path.
	// Empty disables path-based jobs.
	DataDir string `yaml:"dataDir"`
}

// FitConfig holds the model, driver and solver settings
type FitConfig struct {
	Method string `yaml:"method"`
	LSQ    string `yaml:"lsq"`

	Terms     int     `yaml:"terms"`
	Tolerance float64 `yaml:"tolerance"`

	Bounds             fit.Bounds  `yaml:"bounds"`
	Starts             StartConfig `yaml:"starts"`
	Workers            int         `yaml:"workers"`
	RepeatGlobalSearch bool        `yaml:"repeatGlobalSearch"`
	Solvers            fit.Solvers `yaml:"solvers"`
}

// StartConfig selects and configures the starting-point policy
type StartConfig struct {
	// Policy is one of grid, random or fixed
	Policy string           `yaml:"policy"`
	Grid   fit.GridPolicy   `yaml:"grid"`
	Random fit.RandomPolicy `yaml:"random"`
	Fixed  []fit.Params     `yaml:"fixed"`
}

// Load initialises Config from a YAML file and optional environment overrides.
// An empty path falls back to $SOILFIT_CONFIG and then to the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SOILFIT_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	opts := fit.DefaultOptions()
	return &Config{
		Logging: LoggingConfig{Level: "info", JSON: true},
		Server: ServerConfig{
			Address:         ":8080",
			GracefulTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Fit: FitConfig{
			Method:  "least-squares",
			LSQ:     "trf",
			Terms:   opts.Model.Terms,
			Bounds:  opts.Bounds,
			Workers: opts.Workers,
			Starts: StartConfig{
				Policy: "grid",
				Grid:   fit.DefaultGridPolicy(),
				Random: fit.RandomPolicy{N: 10, Seed: 1},
			},
			Solvers: opts.Solvers,
		},
	}
}

// Validate checks the settings that cannot be repaired by defaults
func (c *Config) Validate() error {
	if _, err := c.Method(); err != nil {
		return fmt.Errorf("fit.method: %w", err)
	}
	if _, err := c.StartPolicy(); err != nil {
		return fmt.Errorf("fit.starts: %w", err)
	}
	if err := c.Fit.Bounds.Validate(); err != nil {
		return fmt.Errorf("fit.bounds: %w", err)
	}
	if c.Fit.Terms < 0 {
		return fmt.Errorf("fit.terms: must not be negative")
	}
	return nil
}

// Method resolves the configured optimization strategy
func (c *Config) Method() (fit.Method, error) {
	return fit.ParseMethod(c.Fit.Method, c.Fit.LSQ)
}

// StartPolicy builds the configured starting-point policy
func (c *Config) StartPolicy() (fit.StartPolicy, error) {
	switch strings.ToLower(c.Fit.Starts.Policy) {
	case "", "grid":
		return c.Fit.Starts.Grid, nil
	case "random":
		return c.Fit.Starts.Random, nil
	case "fixed":
		return fit.FixedPolicy(c.Fit.Starts.Fixed), nil
	default:
		return nil, fmt.Errorf("unknown start policy %q (want grid, random or fixed)", c.Fit.Starts.Policy)
	}
}

// DriverOptions converts the fit settings into driver options
func (c *Config) DriverOptions() fit.Options {
	return fit.Options{
		Model:              fit.Model{Terms: c.Fit.Terms, Tolerance: c.Fit.Tolerance},
		Bounds:             c.Fit.Bounds,
		Solvers:            c.Fit.Solvers,
		RepeatGlobalSearch: c.Fit.RepeatGlobalSearch,
		Workers:            c.Fit.Workers,
	}
}

// Logger returns a slog.Logger configured for the desired verbosity and format
func (l LoggingConfig) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(l.Level)}
	if l.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps debug, info, warn and error to a slog level; anything else is info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SOILFIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SOILFIT_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}
	if v := os.Getenv("SOILFIT_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SOILFIT_SERVER_GRACEFUL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.GracefulTimeout = d
		}
	}
	if v := os.Getenv("SOILFIT_SERVER_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("SOILFIT_DATA_DIR"); v != "" {
		cfg.Server.DataDir = v
	}
	if v := os.Getenv("SOILFIT_METHOD"); v != "" {
		cfg.Fit.Method = v
	}
	if v := os.Getenv("SOILFIT_LSQ_METHOD"); v != "" {
		cfg.Fit.LSQ = v
	}
	if v := os.Getenv("SOILFIT_START_POLICY"); v != "" {
		cfg.Fit.Starts.Policy = v
	}
	if v := os.Getenv("SOILFIT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fit.Workers = n
		}
	}
	if v := os.Getenv("SOILFIT_TERMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fit.Terms = n
		}
	}
	if v := os.Getenv("SOILFIT_REPEAT_GLOBAL_SEARCH"); v != "" {
		cfg.Fit.RepeatGlobalSearch = strings.EqualFold(v, "true") || v == "1"
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pario-ai/headroom/pkg/credits"
	"github.com/pario-ai/headroom/pkg/models"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvConfig     = "HEADROOM_CONFIG"
	EnvPlan       = "HEADROOM_PLAN"
	EnvLogDirs    = "HEADROOM_LOG_DIRS"
	EnvStateFile  = "HEADROOM_STATE_FILE"
	EnvDaemonFile = "HEADROOM_DAEMON_FILE"
	EnvHistoryDB  = "HEADROOM_HISTORY_DB"
	EnvLogLevel   = "HEADROOM_LOG_LEVEL"
)

// Config holds all Headroom configuration.
type Config struct {
	Plan       string                       `yaml:"plan"`
	LogDirs    []string                     `yaml:"log_dirs"`
	StateFile  string                       `yaml:"state_file"`
	DaemonFile string                       `yaml:"daemon_file"`
	HistoryDB  string                       `yaml:"history_db"`
	LogLevel   string                       `yaml:"log_level"`
	LogFormat  string                       `yaml:"log_format"`
	Rates      map[string]credits.Rate      `yaml:"rates"`
	Plans      map[string]models.PlanLimits `yaml:"plans"`
	Credits    CreditsConfig                `yaml:"credits"`
	Ingest     IngestConfig                 `yaml:"ingest"`
	State      StateConfig                  `yaml:"state"`
	Daemon     DaemonConfig                 `yaml:"daemon"`

	// PlanOverride is set from the environment or the command line and takes
	// precedence over the plan stored by set-plan.
	PlanOverride string `yaml:"-"`
}

// CreditsConfig controls how tokens are priced.
// FallbackModel, when set, prices unknown models like that model family;
// otherwise FallbackRate is used (zero by default).
type CreditsConfig struct {
	FallbackModel        string       `yaml:"fallback_model"`
	FallbackRate         credits.Rate `yaml:"fallback_rate"`
	CacheCreationAsInput bool         `yaml:"cache_creation_as_input"`
}

// IngestConfig controls session log reading.
type IngestConfig struct {
	Dedupe bool `yaml:"dedupe"`
}

// StateConfig controls staleness of persisted sources.
type StateConfig struct {
	CacheMaxAge  time.Duration `yaml:"cache_max_age"`
	PushedMaxAge time.Duration `yaml:"pushed_max_age"`
	DaemonMaxAge time.Duration `yaml:"daemon_max_age"`
}

// DaemonConfig controls the background recompute loop.
type DaemonConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MinGap      time.Duration `yaml:"min_gap"`
	MetricsFile string        `yaml:"metrics_file"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	claude := filepath.Join(homeDir(), ".claude")
	return &Config{
		Plan:       string(models.PlanMax5x),
		LogDirs:    []string{filepath.Join(claude, "projects")},
		StateFile:  filepath.Join(claude, "usage.json"),
		DaemonFile: filepath.Join(claude, "usage-daemon.json"),
		HistoryDB:  filepath.Join(claude, "headroom.db"),
		LogLevel:   "warn",
		LogFormat:  "json",
		Ingest: IngestConfig{
			Dedupe: true,
		},
		State: StateConfig{
			CacheMaxAge:  time.Minute,
			DaemonMaxAge: 5 * time.Minute,
		},
		Daemon: DaemonConfig{
			Interval: time.Minute,
			MinGap:   2 * time.Second,
		},
	}
}

// DefaultPath is where the config file is looked up when none is named.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".config", "headroom", "headroom.yaml")
}

// Load reads a YAML config file, expands environment variables and applies
// the HEADROOM_* overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(cfg)
}

// LoadOrDefault loads the named file. With an empty path it tries
// $HEADROOM_CONFIG and then DefaultPath; only the default file may be missing.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		return Load(path)
	}

	cfg, err := Load(DefaultPath())
	if errors.Is(err, fs.ErrNotExist) {
		return finish(Default())
	}
	return cfg, err
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	cfg.expandHome()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPlan); v != "" {
		cfg.PlanOverride = v
	}
	if v := os.Getenv(EnvLogDirs); v != "" {
		cfg.LogDirs = filepath.SplitList(v)
	}
	if v := os.Getenv(EnvStateFile); v != "" {
		cfg.StateFile = v
	}
	if v := os.Getenv(EnvDaemonFile); v != "" {
		cfg.DaemonFile = v
	}
	if v := os.Getenv(EnvHistoryDB); v != "" {
		cfg.HistoryDB = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
}

// Validate rejects settings that cannot produce a meaningful computation.
func (c *Config) Validate() error {
	for name, r := range c.Rates {
		if !models.ModelID(strings.ToLower(strings.TrimSpace(name))).IsFamily() {
			return fmt.Errorf("rates.%s: %w", name, credits.ErrUnknownFamily)
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rates.%s: %w", name, err)
		}
	}
	if err := c.Credits.FallbackRate.Validate(); err != nil {
		return fmt.Errorf("credits.fallback_rate: %w", err)
	}
	for name, l := range c.Plans {
		if l.FiveHour < 0 || l.SevenDay < 0 {
			return fmt.Errorf("plans.%s: negative limit", name)
		}
	}
	if c.State.CacheMaxAge < 0 || c.State.PushedMaxAge < 0 || c.State.DaemonMaxAge < 0 {
		return errors.New("state: negative max age")
	}
	if c.Daemon.Interval < 0 || c.Daemon.MinGap < 0 {
		return errors.New("daemon: negative interval")
	}
	return nil
}

// RateTable returns the default rates with the configured overrides applied.
func (c *Config) RateTable() (credits.Table, error) {
	return credits.DefaultTable().WithOverrides(c.Rates)
}

// FallbackRate returns the rate used for unknown models.
func (c *Config) FallbackRate(table credits.Table) (credits.Rate, error) {
	if c.Credits.FallbackModel == "" {
		return c.Credits.FallbackRate, nil
	}
	r, ok := table.Lookup(models.ResolveModel(c.Credits.FallbackModel))
	if !ok {
		return credits.Rate{}, fmt.Errorf("credits.fallback_model: unknown model %q", c.Credits.FallbackModel)
	}
	return r, nil
}

func (c *Config) expandHome() {
	c.StateFile = expandHome(c.StateFile)
	c.DaemonFile = expandHome(c.DaemonFile)
	c.HistoryDB = expandHome(c.HistoryDB)
	c.Daemon.MetricsFile = expandHome(c.Daemon.MetricsFile)
	for i, d := range c.LogDirs {
		c.LogDirs[i] = expandHome(d)
	}
}

func expandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

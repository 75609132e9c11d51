package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const appDirName = "corepin"

// Duration wraps time.Duration so yaml values read as "2s" or "500ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds the runtime tunables. Sweep interval and unit timeout are
// policy, not protocol: they ship with conservative defaults and are never
// part of any contract.
type Config struct {
	StateURL      string   `yaml:"state_url"`
	LogPath       string   `yaml:"log_path"`
	SweepInterval Duration `yaml:"sweep_interval"`
	UnitTimeout   Duration `yaml:"unit_timeout"`
	LowerSelf     bool     `yaml:"lower_self_priority"`
}

func Default() *Config {
	dir := defaultDir()
	return &Config{
		StateURL:      filepath.Join(dir, "state.json"),
		LogPath:       filepath.Join(dir, "corepin.log"),
		SweepInterval: Duration(2 * time.Second),
		UnitTimeout:   Duration(time.Second),
		LowerSelf:     true,
	}
}

// Load reads the config file, falling back to defaults when it is absent.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func DefaultPath() string {
	return filepath.Join(defaultDir(), "config.yaml")
}

func defaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "." + appDirName
	}
	return filepath.Join(base, appDirName)
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.StateURL == "" {
		c.StateURL = def.StateURL
	}
	if c.LogPath == "" {
		c.LogPath = def.LogPath
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.UnitTimeout == 0 {
		c.UnitTimeout = def.UnitTimeout
	}
}

func (c *Config) validate() error {
	if time.Duration(c.SweepInterval) < 100*time.Millisecond {
		return fmt.Errorf("sweep_interval %s is below 100ms", time.Duration(c.SweepInterval))
	}
	if time.Duration(c.UnitTimeout) <= 0 {
		return fmt.Errorf("unit_timeout must be positive")
	}
	return nil
}

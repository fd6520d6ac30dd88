// Package config loads the runtime configuration of the record service
// and the screen server from a YAML file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matthewbaird/recordview/internal/query"
)

// Config holds server configuration.
type Config struct {
	Port        int    `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	// RemoteURL is the record service screens query and save through.
	// Empty runs offline against the local database.
	RemoteURL string `yaml:"remote_url"`
	// RequestOption routes saves: offline always queues locally, online
	// requires the remote, best and fastest fall back to the queue.
	RequestOption string `yaml:"request_option"`
	// SpecDir holds the CUE or JSON screen definitions.
	SpecDir      string        `yaml:"spec_dir"`
	SyncInterval time.Duration `yaml:"sync_interval"`
	SessionIdle  time.Duration `yaml:"session_idle"`
	SessionMax   time.Duration `yaml:"session_max_age"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Port:          8080,
		DatabaseURL:   "file:recordview.db?_pragma=foreign_keys(1)",
		RequestOption: query.BestAvailable.String(),
		SpecDir:       "specs",
		SyncInterval:  30 * time.Second,
		SessionIdle:   30 * time.Minute,
		SessionMax:    24 * time.Hour,
	}
}

// Load reads path over the defaults, then applies the DATABASE_URL, PORT,
// REMOTE_URL and SPEC_DIR environment variables. An empty path skips the
// file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.DatabaseURL = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Port = p
	}
	if v, ok := lookup("REMOTE_URL"); ok {
		c.RemoteURL = v
	}
	if v, ok := lookup("SPEC_DIR"); ok && v != "" {
		c.SpecDir = v
	}
	return nil
}

// Validate checks the values are usable.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url is required"))
	}
	if _, err := c.DefaultRequestOption(); err != nil {
		errs = append(errs, err)
	}
	if c.SyncInterval <= 0 {
		errs = append(errs, errors.New("sync_interval must be positive"))
	}
	return errors.Join(errs...)
}

// DefaultRequestOption parses RequestOption.
func (c Config) DefaultRequestOption() (query.RequestOption, error) {
	return query.ParseRequestOption(c.RequestOption, query.BestAvailable)
}

// Addr returns the listen address.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// Package config loads the YAML configuration file and supplies defaults
// from XDG paths when the file or a field is absent.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "4s".
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

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// OAuth holds the Google OAuth app identity. Empty fields fall back to the
// AXIOM_CLIENT_ID and AXIOM_CLIENT_SECRET environment variables.
type OAuth struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type Config struct {
	Database      string   `yaml:"database"`
	Credential    string   `yaml:"credential"`
	Folder        string   `yaml:"folder"`
	Retention     int      `yaml:"retention"`
	Debounce      Duration `yaml:"debounce"`
	WeekStart     string   `yaml:"week_start"`
	IdleThreshold Duration `yaml:"idle_threshold"`
	OAuth         OAuth    `yaml:"oauth"`
}

// DefaultPath returns the XDG location of the config file, creating parent
// directories as needed.
func DefaultPath() (string, error) {
	return xdg.ConfigFile("axiom/config.yaml")
}

func defaults() (*Config, error) {
	db, err := xdg.DataFile("axiom/axiom.db")
	if err != nil {
		return nil, fmt.Errorf("resolve data path: %w", err)
	}
	cred, err := xdg.StateFile("axiom/credential.json")
	if err != nil {
		return nil, fmt.Errorf("resolve state path: %w", err)
	}
	return &Config{
		Database:      db,
		Credential:    cred,
		Folder:        "Axiom",
		Retention:     20,
		Debounce:      Duration(4 * time.Second),
		WeekStart:     "sunday",
		IdleThreshold: Duration(720 * time.Hour),
	}, nil
}

// Load reads the config at path. A missing file yields pure defaults; a
// present file overrides only the fields it sets.
func Load(path string) (*Config, error) {
	cfg, err := defaults()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.OAuth.ClientID == "" {
		c.OAuth.ClientID = os.Getenv("AXIOM_CLIENT_ID")
	}
	if c.OAuth.ClientSecret == "" {
		c.OAuth.ClientSecret = os.Getenv("AXIOM_CLIENT_SECRET")
	}
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func (c *Config) validate() error {
	if c.Retention <= 0 {
		return fmt.Errorf("retention must be positive, got %d", c.Retention)
	}
	if c.Debounce.Std() <= 0 {
		return fmt.Errorf("debounce must be positive, got %s", c.Debounce.Std())
	}
	if c.IdleThreshold.Std() <= 0 {
		return fmt.Errorf("idle_threshold must be positive, got %s", c.IdleThreshold.Std())
	}
	if _, ok := weekdays[strings.ToLower(c.WeekStart)]; !ok {
		return fmt.Errorf("unknown week_start %q", c.WeekStart)
	}
	if strings.TrimSpace(c.Folder) == "" {
		return fmt.Errorf("folder must not be empty")
	}
	return nil
}

// WeekStartDay resolves the configured week start. Load has already
// validated the name.
func (c *Config) WeekStartDay() time.Weekday {
	return weekdays[strings.ToLower(c.WeekStart)]
}

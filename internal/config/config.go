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

// PortalConfig describes the ESS portal connection.
type PortalConfig struct {
	// URL is the portal root, e.g. "https://ess.emplive.net/".
	URL string `yaml:"url" json:"url"`

	// Driver selects how the portal is driven. Supported values:
	//   - "http" (default): form postbacks over plain HTTP
	//   - "browser": headless Chromium, for script-dependent logins
	Driver string `yaml:"driver" json:"driver"`

	// CredentialsFile is a JSON file holding {"username", "password"}.
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`

	// MaxReloads caps the week-navigation postbacks per fetch.
	MaxReloads int `yaml:"max_reloads" json:"max_reloads"`
}

// GoogleConfig holds Google Calendar target settings.
type GoogleConfig struct {
	// CalendarID is the target calendar; "primary" is the account default.
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`

	// OAuthClientFile is the OAuth client configuration JSON.
	OAuthClientFile string `yaml:"oauth_client_file" json:"oauth_client_file"`

	// TokenFile is the stored OAuth token JSON.
	TokenFile string `yaml:"token_file" json:"token_file"`
}

// CalendarConfig selects and configures the sync target.
type CalendarConfig struct {
	// Target is "ics" (default) or "google".
	Target string `yaml:"target" json:"target"`

	// ICSPath is the output .ics file for the ics target.
	ICSPath string `yaml:"ics_path" json:"ics_path"`

	Google GoogleConfig `yaml:"google" json:"google"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA timezone the portal's times are interpreted in
	// (e.g. "Australia/Sydney"). Empty means the system local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the weekday the portal's roster period begins on.
	// Supported values: "monday" (default), "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// ReminderMinutes is how long before a shift's start the calendar
	// reminder fires.
	ReminderMinutes int `yaml:"reminder_minutes" json:"reminder_minutes"`

	// RefreshCron is the cron schedule used by watch mode, e.g.
	// "*/30 * * * *".
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// WeeksAhead is how many future weeks watch mode keeps synced, in
	// addition to the current week.
	WeeksAhead int `yaml:"weeks_ahead" json:"weeks_ahead"`

	Portal   PortalConfig   `yaml:"portal" json:"portal"`
	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:        "",
		WeekStart:       "monday",
		ReminderMinutes: 120,
		RefreshCron:     "*/30 * * * *",
		WeeksAhead:      1,
		Portal: PortalConfig{
			URL:             "https://ess.emplive.net/",
			Driver:          "http",
			CredentialsFile: "token.json",
			MaxReloads:      10,
		},
		Calendar: CalendarConfig{
			Target:  "ics",
			ICSPath: "roster.ics",
			Google: GoogleConfig{
				CalendarID: "primary",
			},
		},
	}
}

// Normalize fills in missing/zero values with defaults so partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = "monday"
	}
	if c.ReminderMinutes <= 0 {
		c.ReminderMinutes = 120
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/30 * * * *"
	}
	if c.WeeksAhead < 0 {
		c.WeeksAhead = 0
	}
	if c.Portal.URL == "" {
		c.Portal.URL = "https://ess.emplive.net/"
	}
	switch c.Portal.Driver {
	case "http", "browser":
	default:
		c.Portal.Driver = "http"
	}
	if c.Portal.CredentialsFile == "" {
		c.Portal.CredentialsFile = "token.json"
	}
	if c.Portal.MaxReloads <= 0 {
		c.Portal.MaxReloads = 10
	}
	switch c.Calendar.Target {
	case "ics", "google":
	default:
		c.Calendar.Target = "ics"
	}
	if c.Calendar.ICSPath == "" {
		c.Calendar.ICSPath = "roster.ics"
	}
	if c.Calendar.Google.CalendarID == "" {
		c.Calendar.Google.CalendarID = "primary"
	}
}

// WeekStartDay returns the configured week boundary as a time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Location resolves the configured timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: bad timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there with
//     0600 perms and returned.
//   - Otherwise the YAML is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
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

	tmp, err := os.CreateTemp(dir, ".empkiller-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
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

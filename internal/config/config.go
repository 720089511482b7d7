package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"coursedash/internal/classify"
)

// NOTE: Load creates a default config file on first run; Save writes
// atomically with 0600 permissions.

// ICSConfig describes one timetable calendar.
type ICSConfig struct {
	// URL is the subscription endpoint, or a local .ics path.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the dashboard.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// ClassifierConfig is the title grammar. Empty lists take the defaults.
type ClassifierConfig struct {
	Marker       string   `yaml:"marker" json:"marker"`
	Tutorial     []string `yaml:"tutorial" json:"tutorial"`
	Practical    []string `yaml:"practical" json:"practical"`
	Assessment   []string `yaml:"assessment" json:"assessment"`
	CodePatterns []string `yaml:"code_patterns" json:"code_patterns"`
}

// CohortColors are the label colors of the two cohorts.
type CohortColors struct {
	Apprentice string `yaml:"apprentice" json:"apprentice"`
	Standard   string `yaml:"standard" json:"initial"`
}

// PastDateColors shade dates before today, per theme.
type PastDateColors struct {
	Light string `yaml:"light" json:"light"`
	Dark  string `yaml:"dark" json:"dark"`
}

// Display holds the dashboard preferences that are also saved in
// session files.
type Display struct {
	// TableWidth is the dashboard width in percent of the page.
	TableWidth int `yaml:"table_width" json:"tableWidth"`
	// TooltipDelay is in milliseconds.
	TooltipDelay   int            `yaml:"tooltip_delay" json:"tooltipDelay"`
	SortOrder      string         `yaml:"sort_order" json:"sortOrder"`
	Theme          string         `yaml:"theme" json:"theme"`
	CohortColors   CohortColors   `yaml:"cohort_colors" json:"classTypeColors"`
	PastDateColors PastDateColors `yaml:"past_date_colors" json:"pastDateColors"`
}

// Period is the default date range, as YYYY-MM-DD. Empty values mean the
// current school year.
type Period struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// SnapshotConfig controls the headless-browser PDF snapshot.
type SnapshotConfig struct {
	// ChromePath overrides the browser binary; empty lets chromedp find one.
	ChromePath string `yaml:"chrome_path" json:"chrome_path"`
	TimeoutSec int    `yaml:"timeout_sec" json:"timeout_sec"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the dashboard.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for the HH:MM display strings.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Locale drives number and date formatting (BCP 47, e.g. "fr").
	Locale string `yaml:"locale" json:"locale"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is the cron schedule (e.g. "*/30 * * * *") for reloading
	// subscribed calendars while serving.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir keeps downloaded calendars and their HTTP validators.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// DataDir holds the saved-sessions database.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// ICS is the list of timetable calendars.
	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`
	Display    Display          `yaml:"display" json:"display"`
	Period     Period           `yaml:"period" json:"period"`
	Snapshot   SnapshotConfig   `yaml:"snapshot" json:"snapshot"`
}

// Default display values, shared with session loading.
const (
	DefaultTableWidth   = 100
	DefaultTooltipDelay = 200
	DefaultSortOrder    = "date"
	DefaultTheme        = "light"
)

// DefaultDisplay returns the dashboard defaults.
func DefaultDisplay() Display {
	return Display{
		TableWidth:     DefaultTableWidth,
		TooltipDelay:   DefaultTooltipDelay,
		SortOrder:      DefaultSortOrder,
		Theme:          DefaultTheme,
		CohortColors:   CohortColors{Apprentice: "#ef4444", Standard: "#0ea5e9"},
		PastDateColors: PastDateColors{Light: "#e5e7eb", Dark: "#111827"},
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	rules := classify.DefaultRules()
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Europe/Paris",
		Locale:      "fr",
		LogLevel:    "info",
		RefreshCron: "*/30 * * * *",
		CacheDir:    "./var/ics-cache",
		DataDir:     "./var",
		ICS:         []ICSConfig{},
		Classifier: ClassifierConfig{
			Marker:       rules.Marker,
			Tutorial:     rules.Tutorial,
			Practical:    rules.Practical,
			Assessment:   rules.Assessment,
			CodePatterns: rules.CodePatterns,
		},
		Display:  DefaultDisplay(),
		Snapshot: SnapshotConfig{TimeoutSec: 30},
	}
}

// Normalize fills in missing/zero values so that partial or older
// config files still behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.Locale == "" {
		c.Locale = def.Locale
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}

	if c.Classifier.Marker == "" {
		c.Classifier.Marker = def.Classifier.Marker
	}
	if len(c.Classifier.Tutorial)+len(c.Classifier.Practical)+len(c.Classifier.Assessment) == 0 {
		c.Classifier.Tutorial = def.Classifier.Tutorial
		c.Classifier.Practical = def.Classifier.Practical
		c.Classifier.Assessment = def.Classifier.Assessment
	}
	if len(c.Classifier.CodePatterns) == 0 {
		c.Classifier.CodePatterns = def.Classifier.CodePatterns
	}

	c.Display.Normalize()

	if c.Snapshot.TimeoutSec <= 0 {
		c.Snapshot.TimeoutSec = def.Snapshot.TimeoutSec
	}
}

// Normalize fills zero display values with defaults.
func (d *Display) Normalize() {
	def := DefaultDisplay()
	if d.TableWidth <= 0 || d.TableWidth > 100 {
		d.TableWidth = def.TableWidth
	}
	if d.TooltipDelay <= 0 {
		d.TooltipDelay = def.TooltipDelay
	}
	switch d.SortOrder {
	case "date", "code":
	default:
		d.SortOrder = def.SortOrder
	}
	switch d.Theme {
	case "light", "dark", "system":
	default:
		d.Theme = def.Theme
	}
	if d.CohortColors.Apprentice == "" {
		d.CohortColors.Apprentice = def.CohortColors.Apprentice
	}
	if d.CohortColors.Standard == "" {
		d.CohortColors.Standard = def.CohortColors.Standard
	}
	if d.PastDateColors.Light == "" {
		d.PastDateColors.Light = def.PastDateColors.Light
	}
	if d.PastDateColors.Dark == "" {
		d.PastDateColors.Dark = def.PastDateColors.Dark
	}
}

// Validate reports values that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	for _, d := range []string{c.Period.Start, c.Period.End} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			errs = append(errs, fmt.Errorf("period date %q: %w", d, err))
		}
	}
	if _, err := classify.New(c.Rules()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Rules converts the classifier section.
func (c *Config) Rules() classify.Rules {
	return classify.Rules{
		Marker:       c.Classifier.Marker,
		Tutorial:     c.Classifier.Tutorial,
		Practical:    c.Classifier.Practical,
		Assessment:   c.Classifier.Assessment,
		CodePatterns: c.Classifier.CodePatterns,
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ApplyEnv overrides fields from COURSEDASH_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("COURSEDASH_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("COURSEDASH_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("COURSEDASH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("COURSEDASH_ICS_URL"); v != "" {
		c.ICS = append(c.ICS, ICSConfig{ID: "env", Name: "env", URL: v})
	}
	user, pass := os.Getenv("COURSEDASH_AUTH_USER"), os.Getenv("COURSEDASH_AUTH_PASSWORD")
	if user != "" && pass != "" {
		c.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg anyway so the caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
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

	tmp, err := os.CreateTemp(dir, ".coursedash-config-*.tmp")
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

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

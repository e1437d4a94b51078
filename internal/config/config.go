package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bookingdesk/internal/timeutil"
)

type Config struct {
	Server struct {
		Port               int    `yaml:"port"`
		APIKey             string `yaml:"api_key"`
		ReadTimeoutSeconds int    `yaml:"read_timeout_seconds"`
	} `yaml:"server"`

	BookingAPI struct {
		BaseURL         string  `yaml:"base_url"`
		APIKey          string  `yaml:"api_key"`
		TimeoutSeconds  int     `yaml:"timeout_seconds"`
		CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
		RateLimitRPS    float64 `yaml:"rate_limit_rps"`
		RateLimitBurst  int     `yaml:"rate_limit_burst"`
	} `yaml:"booking_api"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Identity struct {
		Domain          string   `yaml:"domain"`
		ClientID        string   `yaml:"client_id"`
		ClientSecret    string   `yaml:"client_secret"`
		Audience        string   `yaml:"audience"`
		Scopes          []string `yaml:"scopes"`
		CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	} `yaml:"identity"`

	Site struct {
		Timezone           string `yaml:"timezone"`
		UTCOffset          string `yaml:"utc_offset"`
		LocationID         string `yaml:"location_id"`
		ValidDays          int    `yaml:"valid_days"`
		DisplayStart       string `yaml:"display_start"`
		DisplayEnd         string `yaml:"display_end"`
		DisplayStepMinutes int    `yaml:"display_step_minutes"`
		ClosedDatesPath    string `yaml:"closed_dates_path"`
	} `yaml:"site"`

	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Reminders struct {
		Enabled              bool `yaml:"enabled"`
		LeadMinutes          int  `yaml:"lead_minutes"`
		CheckIntervalSeconds int  `yaml:"check_interval_seconds"`
	} `yaml:"reminders"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		Endpoint    string  `yaml:"endpoint"`
		SampleRatio float64 `yaml:"sample_ratio"`
		ServiceName string  `yaml:"service_name"`
	} `yaml:"tracing"`

	Logging struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"logging"`
}

// Load reads the YAML config at path. Variables from a .env file next to the
// process are loaded first so that ${ENV_VAR} placeholders can use them.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Site.Timezone == "" {
		c.Site.Timezone = "Asia/Hong_Kong"
	}
	if c.Site.LocationID == "" {
		c.Site.LocationID = "9cacb96e-65d7-44e2-a754-3a405c072250"
	}
	if c.Site.ValidDays <= 0 {
		c.Site.ValidDays = 365
	}
	if c.Site.DisplayStart == "" {
		c.Site.DisplayStart = "08:00"
	}
	if c.Site.DisplayEnd == "" {
		c.Site.DisplayEnd = "23:00"
	}
	if c.Site.DisplayStepMinutes <= 0 {
		c.Site.DisplayStepMinutes = 30
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "data/bookingdesk.db"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "bookingdesk"
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		c.Tracing.SampleRatio = 1
	}
}

// Validate checks the fields that have no usable default.
func (c *Config) Validate() error {
	if c.BookingAPI.BaseURL == "" {
		return fmt.Errorf("booking_api.base_url is required")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		return fmt.Errorf("site.timezone: %w", err)
	}
	if c.Site.UTCOffset != "" {
		if err := c.checkOffset(); err != nil {
			return err
		}
	}
	from, err := timeutil.ParseTimeOfDay(c.Site.DisplayStart)
	if err != nil {
		return fmt.Errorf("site.display_start: %w", err)
	}
	to, err := timeutil.ParseTimeOfDay(c.Site.DisplayEnd)
	if err != nil {
		return fmt.Errorf("site.display_end: %w", err)
	}
	if from >= to {
		return fmt.Errorf("site: display_end must be after display_start")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing.endpoint is required when tracing is enabled")
	}
	return nil
}

// checkOffset rejects a utc_offset that the zone does not keep all year.
func (c *Config) checkOffset() error {
	fixed, err := timeutil.ParseOffset(c.Site.UTCOffset)
	if err != nil {
		return fmt.Errorf("site.utc_offset: %w", err)
	}
	_, want := time.Now().In(fixed).Zone()

	zone := c.Location()
	year := time.Now().Year()
	for _, month := range []time.Month{time.January, time.July} {
		name, got := time.Date(year, month, 1, 12, 0, 0, 0, zone).Zone()
		if got != want {
			return fmt.Errorf("site.utc_offset %s does not match %s (%s in %s)",
				c.Site.UTCOffset, c.Site.Timezone, name, month)
		}
	}
	return nil
}

// Location is the zone all local dates and times are computed in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WireOffset is the zone written into booking timestamps: the explicit
// utc_offset when set, else the site zone itself.
func (c *Config) WireOffset() *time.Location {
	if c.Site.UTCOffset != "" {
		if loc, err := timeutil.ParseOffset(c.Site.UTCOffset); err == nil {
			return loc
		}
	}
	return c.Location()
}

// DisplayWindow is the day grid used by the resource timeline.
func (c *Config) DisplayWindow() (from, to timeutil.TimeOfDay, step int) {
	from, _ = timeutil.ParseTimeOfDay(c.Site.DisplayStart)
	to, _ = timeutil.ParseTimeOfDay(c.Site.DisplayEnd)
	return from, to, c.Site.DisplayStepMinutes
}

func (c *Config) BookingAPITimeout() time.Duration {
	if c.BookingAPI.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.BookingAPI.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.BookingAPI.CacheTTLSeconds) * time.Second
}

func (c *Config) IdentityCacheTTL() time.Duration {
	if c.Identity.CacheTTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Identity.CacheTTLSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) ReminderLead() time.Duration {
	if c.Reminders.LeadMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Reminders.LeadMinutes) * time.Minute
}

func (c *Config) ReminderInterval() time.Duration {
	if c.Reminders.CheckIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Reminders.CheckIntervalSeconds) * time.Second
}

func (c *Config) ReadTimeout() time.Duration {
	if c.Server.ReadTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"bookingdesk/internal/timeutil"
)

// HolidayConfig represents a holiday configuration.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-01-01"
	Name string `yaml:"name"`
}

// ClosedDatesConfig is the root of closed_dates.yaml: site-wide days on which
// nothing can be booked regardless of resource schedules.
type ClosedDatesConfig struct {
	Holidays []HolidayConfig `yaml:"holidays"`
}

// LoadClosedDates loads and validates the closed dates file.
func LoadClosedDates(path string) (*ClosedDatesConfig, error) {
	if path == "" {
		path = "configs/closed_dates.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read closed dates: %w", err)
	}

	var cfg ClosedDatesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse closed dates: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate closed dates: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *ClosedDatesConfig) Validate() error {
	seen := make(map[string]bool)
	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := timeutil.ParseDate(h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date format '%s', expected YYYY-MM-DD", i, h.Date)
		}
		if seen[h.Date] {
			return fmt.Errorf("holiday[%d]: duplicate date %s", i, h.Date)
		}
		seen[h.Date] = true
	}
	return nil
}

// Dates returns the closed dates.
func (c *ClosedDatesConfig) Dates() []timeutil.Date {
	if c == nil {
		return nil
	}
	out := make([]timeutil.Date, 0, len(c.Holidays))
	for _, h := range c.Holidays {
		if d, err := timeutil.ParseDate(h.Date); err == nil {
			out = append(out, d)
		}
	}
	return out
}

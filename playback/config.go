package playback

import (
	"fmt"
	"strings"

	"github.com/vidyalaya/prayerbell/prayer"
)

// Config contains the controller's playback options.
type Config struct {
	Volume             int     `yaml:"volume"`
	Muted              bool    `yaml:"muted"`
	Rate               float64 `yaml:"rate"`
	Pitch              float64 `yaml:"pitch"`
	AnnouncementLocale string  `yaml:"announcement_locale"`
}

// DefaultConfig returns the defaults used by the school dashboards.
func DefaultConfig() Config {
	return Config{
		Volume:             80,
		Muted:              false,
		Rate:               0.85,
		Pitch:              1.0,
		AnnouncementLocale: prayer.DefaultLocale,
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	var errs []string

	if c.Volume < 0 || c.Volume > 100 {
		errs = append(errs, fmt.Sprintf("volume must be between 0 and 100, got %d", c.Volume))
	}
	if c.Rate < 0.1 || c.Rate > 10 {
		errs = append(errs, fmt.Sprintf("rate must be between 0.1 and 10, got %.2f", c.Rate))
	}
	if c.Pitch < 0 || c.Pitch > 2 {
		errs = append(errs, fmt.Sprintf("pitch must be between 0 and 2, got %.2f", c.Pitch))
	}
	if strings.TrimSpace(c.AnnouncementLocale) == "" {
		errs = append(errs, "announcement locale is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("playback config: %s", strings.Join(errs, "; "))
	}
	return nil
}

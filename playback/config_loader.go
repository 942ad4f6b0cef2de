package playback

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadConfigFromViper reads the playback section of the global configuration.
func LoadConfigFromViper(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()

	if v.IsSet("playback.volume") {
		cfg.Volume = v.GetInt("playback.volume")
	}
	if v.IsSet("playback.muted") {
		cfg.Muted = v.GetBool("playback.muted")
	}
	if v.IsSet("playback.rate") {
		cfg.Rate = v.GetFloat64("playback.rate")
	}
	if v.IsSet("playback.pitch") {
		cfg.Pitch = v.GetFloat64("playback.pitch")
	}
	if v.IsSet("playback.announcement_locale") {
		cfg.AnnouncementLocale = v.GetString("playback.announcement_locale")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid playback configuration: %w", err)
	}
	return cfg, nil
}

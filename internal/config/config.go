// Package config loads the prayerbell configuration from viper and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/vidyalaya/prayerbell/internal/backend"
	"github.com/vidyalaya/prayerbell/playback"
)

// AppName names config files, dirs and the env prefix.
const AppName = "prayerbell"

// Config is the validated configuration of a prayerbell process.
type Config struct {
	SchoolID string

	CatalogPath  string
	WatchCatalog bool

	Playback playback.Config

	SampleRate int
	FFmpeg     string
	Espeak     string
	Voices     map[string]string

	Listen string

	Backend backend.Options
	Minio   backend.MinioConfig

	BlobDir         string
	BlobMemoryBytes int64
	BlobDiskBytes   int64
	BlobCompression int

	LogLevel string
	LogFile  string
}

// Secrets come from the environment only.
type Secrets struct {
	BackendToken   string `env:"PRAYERBELL_BACKEND_TOKEN"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY"`
}

// SetDefaults registers the defaults of every key.
func SetDefaults(v *viper.Viper) {
	def := playback.DefaultConfig()
	v.SetDefault("school_id", "default")
	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.watch", true)
	v.SetDefault("playback.volume", def.Volume)
	v.SetDefault("playback.muted", def.Muted)
	v.SetDefault("playback.rate", def.Rate)
	v.SetDefault("playback.pitch", def.Pitch)
	v.SetDefault("playback.announcement_locale", def.AnnouncementLocale)
	v.SetDefault("audio.sample_rate", 22050)
	v.SetDefault("audio.ffmpeg", "ffmpeg")
	v.SetDefault("audio.espeak", "espeak-ng")
	v.SetDefault("audio.voices", map[string]string{"hi-IN": "hi", "en-IN": "en"})
	v.SetDefault("server.listen", "127.0.0.1:8420")
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.timeout", "30s")
	v.SetDefault("backend.requests_per_minute", 120)
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.bucket", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.public_base", "")
	v.SetDefault("blobs.dir", "")
	v.SetDefault("blobs.memory_mb", 64)
	v.SetDefault("blobs.disk_mb", 512)
	v.SetDefault("blobs.compression", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// Load reads the configuration from v and the environment and validates it.
func Load(v *viper.Viper) (Config, error) {
	pb, err := playback.LoadConfigFromViper(v)
	if err != nil {
		return Config{}, err
	}
	secrets, err := env.ParseAs[Secrets]()
	if err != nil {
		return Config{}, fmt.Errorf("error parsing environment: %w", err)
	}

	cfg := Config{
		SchoolID:     strings.TrimSpace(v.GetString("school_id")),
		WatchCatalog: v.GetBool("catalog.watch"),
		Playback:     pb,
		SampleRate:   v.GetInt("audio.sample_rate"),
		FFmpeg:       v.GetString("audio.ffmpeg"),
		Espeak:       v.GetString("audio.espeak"),
		Voices:       canonicalVoices(v.GetStringMapString("audio.voices")),
		Listen:       v.GetString("server.listen"),
		Backend: backend.Options{
			BaseURL:           v.GetString("backend.url"),
			Token:             secrets.BackendToken,
			Timeout:           v.GetDuration("backend.timeout"),
			RequestsPerMinute: v.GetInt("backend.requests_per_minute"),
		},
		Minio: backend.MinioConfig{
			Endpoint:   v.GetString("minio.endpoint"),
			Bucket:     v.GetString("minio.bucket"),
			UseSSL:     v.GetBool("minio.use_ssl"),
			PublicBase: v.GetString("minio.public_base"),
			AccessKey:  secrets.MinioAccessKey,
			SecretKey:  secrets.MinioSecretKey,
		},
		BlobMemoryBytes: int64(v.GetInt("blobs.memory_mb")) << 20,
		BlobDiskBytes:   int64(v.GetInt("blobs.disk_mb")) << 20,
		BlobCompression: v.GetInt("blobs.compression"),
		LogLevel:        v.GetString("log.level"),
	}

	if cfg.CatalogPath, err = ExpandPath(v.GetString("catalog.path")); err != nil {
		return Config{}, err
	}
	if cfg.BlobDir, err = ExpandPath(v.GetString("blobs.dir")); err != nil {
		return Config{}, err
	}
	if cfg.LogFile, err = ExpandPath(v.GetString("log.file")); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	var errs []string

	if c.SchoolID == "" {
		errs = append(errs, "school_id is required")
	}
	if c.SampleRate < 8000 || c.SampleRate > 96000 {
		errs = append(errs, fmt.Sprintf("audio.sample_rate must be between 8000 and 96000, got %d", c.SampleRate))
	}
	if c.Backend.Timeout < 0 || c.Backend.Timeout > 10*time.Minute {
		errs = append(errs, fmt.Sprintf("backend.timeout must be between 0 and 10m, got %s", c.Backend.Timeout))
	}
	if c.Backend.RequestsPerMinute < 0 {
		errs = append(errs, "backend.requests_per_minute must not be negative")
	}
	if c.BlobMemoryBytes <= 0 {
		errs = append(errs, "blobs.memory_mb must be positive")
	}
	if c.BlobCompression < 0 || c.BlobCompression > 22 {
		errs = append(errs, fmt.Sprintf("blobs.compression must be between 0 and 22, got %d", c.BlobCompression))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("log.level: %v", err))
	}
	if (c.Minio.Endpoint == "") != (c.Minio.Bucket == "") {
		errs = append(errs, "minio.endpoint and minio.bucket must be set together")
	}

	if len(errs) > 0 {
		return errors.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// canonicalVoices restores locale case, which viper folds in map keys.
func canonicalVoices(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for loc, voice := range in {
		lang, region, ok := strings.Cut(loc, "-")
		loc = strings.ToLower(lang)
		if ok {
			loc += "-" + strings.ToUpper(region)
		}
		out[loc] = voice
	}
	return out
}

// ExpandPath expands a leading ~ and environment variables.
func ExpandPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", nil
	}
	p, err := homedir.Expand(os.ExpandEnv(p))
	if err != nil {
		return "", fmt.Errorf("unable to expand %q: %w", p, err)
	}
	return p, nil
}

// Dirs returns the directories searched for prayerbell.yml, most specific
// first.
func Dirs() ([]string, error) {
	scope := gap.NewScope(gap.User, AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		return nil, err
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, AppName)}, dirs...)
	}
	if c := os.Getenv("PRAYERBELL_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs, nil
}

// DataDir returns the directory for local state such as stored clips.
func DataDir() (string, error) {
	scope := gap.NewScope(gap.User, AppName)
	dirs, err := scope.DataDirs()
	if err != nil {
		return "", err
	}
	if len(dirs) == 0 {
		return "", errors.New("no data directory")
	}
	return dirs[0], nil
}

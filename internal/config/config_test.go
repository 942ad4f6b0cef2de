package config_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/vidyalaya/prayerbell/internal/config"
)

func newViper(t *testing.T, yml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	if yml != "" {
		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(yml)); err != nil {
			t.Fatalf("ReadConfig: %v", err)
		}
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PRAYERBELL_BACKEND_TOKEN", "")
	cfg, err := config.Load(newViper(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Playback.Volume != 80 || cfg.Playback.Rate != 0.85 {
		t.Errorf("playback = %+v", cfg.Playback)
	}
	if cfg.SampleRate != 22050 || cfg.Listen != "127.0.0.1:8420" {
		t.Errorf("audio/server = %d %s", cfg.SampleRate, cfg.Listen)
	}
	if cfg.BlobMemoryBytes != 64<<20 {
		t.Errorf("blob memory = %d", cfg.BlobMemoryBytes)
	}
	if cfg.Voices["hi-IN"] != "hi" {
		t.Errorf("voices = %v", cfg.Voices)
	}
}

func TestLoad_FileAndSecrets(t *testing.T) {
	t.Setenv("PRAYERBELL_BACKEND_TOKEN", "tok")
	t.Setenv("MINIO_ACCESS_KEY", "ak")
	t.Setenv("MINIO_SECRET_KEY", "sk")

	cfg, err := config.Load(newViper(t, `
school_id: school-7
playback:
  volume: 55
  muted: true
backend:
  url: https://api.example.com
  timeout: 5s
minio:
  endpoint: minio:9000
  bucket: prayers
blobs:
  dir: ~/clips
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SchoolID != "school-7" || cfg.Playback.Volume != 55 || !cfg.Playback.Muted {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Backend.Token != "tok" || cfg.Backend.BaseURL != "https://api.example.com" {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if cfg.Minio.AccessKey != "ak" || cfg.Minio.SecretKey != "sk" || !cfg.Minio.Enabled() {
		t.Errorf("minio = %+v", cfg.Minio)
	}
	home, _ := homedir.Dir()
	if cfg.BlobDir != filepath.Join(home, "clips") {
		t.Errorf("blob dir = %q", cfg.BlobDir)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"volume":      "playback:\n  volume: 150\n",
		"sample rate": "audio:\n  sample_rate: 100\n",
		"log level":   "log:\n  level: loud\n",
		"minio":       "minio:\n  endpoint: minio:9000\n",
		"school":      "school_id: \"  \"\n",
		"compression": "blobs:\n  compression: 40\n",
	}
	for name, yml := range tests {
		if _, err := config.Load(newViper(t, yml)); err == nil {
			t.Errorf("%s: invalid config accepted", name)
		}
	}
}

func TestDirs_Overrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv("PRAYERBELL_CONFIG_HOME", "/custom")

	dirs, err := config.Dirs()
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) < 2 || dirs[0] != "/custom" || dirs[1] != filepath.Join("/xdg", "prayerbell") {
		t.Errorf("dirs = %v", dirs)
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("CLIPS", "/srv/clips")
	if got, _ := config.ExpandPath("$CLIPS/a"); got != "/srv/clips/a" {
		t.Errorf("ExpandPath = %q", got)
	}
	if got, _ := config.ExpandPath(""); got != "" {
		t.Errorf("ExpandPath(\"\") = %q", got)
	}
}

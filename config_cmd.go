package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vidyalaya/prayerbell/internal/config"
)

const defaultConfig = `# school this installation belongs to
school_id: "default"

catalog:
  # YAML catalog of prayers; the built-in catalog is used when empty
  path: ""
  # reload the catalog when the file changes
  watch: true

playback:
  # volume from 0 to 100
  volume: 80
  muted: false
  # speech rate and pitch for synthesized lyrics
  rate: 0.85
  pitch: 1.0
  announcement_locale: "hi-IN"

audio:
  sample_rate: 22050
  ffmpeg: "ffmpeg"
  espeak: "espeak-ng"
  # espeak-ng voice per locale
  voices:
    hi-IN: "hi"
    en-IN: "en"

server:
  listen: "127.0.0.1:8420"

# school management API; the token is read from PRAYERBELL_BACKEND_TOKEN
backend:
  url: ""
  timeout: "30s"
  requests_per_minute: 120

# object storage for recordings; keys come from MINIO_ACCESS_KEY and
# MINIO_SECRET_KEY
minio:
  endpoint: ""
  bucket: ""
  use_ssl: false
  public_base: ""

# local copies of uploaded recordings
blobs:
  dir: ""
  memory_mb: 64
  disk_mb: 512
  compression: 3

log:
  level: "info"
  file: ""
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the prayerbell config file",
	Long:    paragraph(fmt.Sprintf("\n%s the prayerbell config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("prayerbell config\nprayerbell config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Prayerbell", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
	}
	if configFile == "" {
		dirs, err := config.Dirs()
		if err != nil {
			return fmt.Errorf("could not find configuration directory: %w", err)
		}
		configFile = filepath.Join(dirs[0], config.AppName+".yml")
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}

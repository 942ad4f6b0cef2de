// Package main provides the entry point for the prayerbell CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vidyalaya/prayerbell/internal/config"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string

	rootCmd = &cobra.Command{
		Use:   "prayerbell",
		Short: "Morning assembly prayers, one at a time",
		Long: paragraph(
			fmt.Sprintf("\nPlay school assembly prayers from recordings or %s, "+
				"and start the assembly on schedule.", keyword("synthesized speech")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := readExplicitConfig(); err != nil {
				return err
			}
			return applyLogLevel()
		},
	}
)

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	config.SetDefaults(viper.GetViper())
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("school", "", "school id")

	// Config bindings
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("school_id", rootCmd.PersistentFlags().Lookup("school"))

	rootCmd.AddCommand(serveCmd, listCmd, playCmd, uploadCmd, scheduleCmd, configCmd, manCmd)
}

// readExplicitConfig reads the file given with --config, if any.
func readExplicitConfig() error {
	if configFile == "" || configFile == viper.ConfigFileUsed() {
		return nil
	}
	p, err := config.ExpandPath(configFile)
	if err != nil {
		return err
	}
	configFile = p
	if _, err := os.Stat(p); err != nil {
		// config creates it.
		return nil //nolint:nilerr
	}
	viper.SetConfigFile(p)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read %s: %w", p, err)
	}
	log.Debug("Using configuration file", "path", p)
	return nil
}

func tryLoadConfigFromDefaultPlaces() {
	dirs, err := config.Dirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(config.AppName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], config.AppName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}

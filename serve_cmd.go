package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vidyalaya/prayerbell/internal/scheduler"
	"github.com/vidyalaya/prayerbell/internal/server"
	"github.com/vidyalaya/prayerbell/prayer"
)

var (
	dryRun bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the player and its HTTP API",
		Long: paragraph(fmt.Sprintf("\n%s the playback controller behind a small HTTP API. "+
			"The daily assembly starts on its own when the schedule says so.", keyword("Run"))),
		Example: paragraph("prayerbell serve\nprayerbell serve --listen :8080 --dry-run"),
		Args:    cobra.NoArgs,
		RunE:    runServe,
	}
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, appOptions{audio: true, dryRun: dryRun})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	caps := a.controller.Capabilities()
	log.Info("Audio ready", "recording", caps.Recording, "speech", caps.Speech)

	if cfg.WatchCatalog && cfg.CatalogPath != "" {
		if err := prayer.WatchCatalog(ctx, cfg.CatalogPath, a.catalog); err != nil {
			log.Warn("Catalog changes will not be picked up", "err", err)
		}
	}

	sched := scheduler.New(a.controller, time.Local)
	snap := a.settings.Get(ctx, cfg.SchoolID)
	if snap.SyncError != "" {
		log.Warn("Using local schedule", "err", snap.SyncError)
	}
	if err := sched.Apply(snap.Schedule); err != nil {
		log.Warn("Saved schedule not installed", "err", err)
	}
	if next, ok := sched.Next(); ok {
		log.Info("Next assembly", "at", next.Format(time.RFC1123))
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Deps{
		SchoolID:   cfg.SchoolID,
		Controller: a.controller,
		Catalog:    a.catalog,
		Uploader:   a.uploader,
		Blobs:      a.blobs,
		Settings:   a.settings,
		Scheduler:  sched,
	})
	err = srv.Run(ctx, cfg.Listen)
	a.controller.Stop()
	return err
}

func init() {
	serveCmd.Flags().BoolVar(&dryRun, "dry-run", false, "simulate audio instead of using the sound card")
	serveCmd.Flags().String("listen", "", "address to serve the API on")
	_ = viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

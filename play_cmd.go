package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/vidyalaya/prayerbell/playback"
	"github.com/vidyalaya/prayerbell/prayer"
)

var (
	playDryRun bool

	playCmd = &cobra.Command{
		Use:   "play NAME",
		Short: "Play a single prayer",
		Long: paragraph(fmt.Sprintf("\n%s a prayer until it ends. The name is matched fuzzily, "+
			"so %s finds %s. Press Ctrl-C to stop early.",
			keyword("Play"), bold("gayatri"), bold("Gayatri Mantra"))),
		Example: paragraph("prayerbell play gayatri\nprayerbell play \"jana gana\""),
		Args:    cobra.MinimumNArgs(1),
		RunE:    runPlay,
	}
)

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, appOptions{audio: true, dryRun: playDryRun})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	p, err := prayer.Find(a.catalog, strings.Join(args, " "))
	if err != nil {
		return err
	}

	done := make(chan struct{})
	var once sync.Once
	a.controller.OnStateChange(func(s playback.Session) {
		if !s.IsPlaying() {
			once.Do(func() { close(done) })
		}
	})
	failed := make(chan error, 1)
	a.controller.OnError(func(err error) {
		select {
		case failed <- err:
		default:
		}
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if err := a.controller.Play(ctx, p); err != nil {
		return err
	}
	source := "speech"
	if p.HasRecording() {
		source = "recording"
	}
	fmt.Printf("%s %s %s\n", keyword("Playing"), bold(p.Name), faint("("+source+")"))

	select {
	case <-done:
	case <-ctx.Done():
		a.controller.Stop()
		fmt.Println(faint("Stopped."))
	}

	select {
	case err := <-failed:
		return err
	default:
		return nil
	}
}

func init() {
	playCmd.Flags().BoolVar(&playDryRun, "dry-run", false, "simulate audio instead of using the sound card")
}

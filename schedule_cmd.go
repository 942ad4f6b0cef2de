package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vidyalaya/prayerbell/internal/scheduler"
	"github.com/vidyalaya/prayerbell/prayer"
)

var (
	scheduleCmd = &cobra.Command{
		Use:   "schedule",
		Short: "Show or change the assembly schedule",
		Args:  cobra.NoArgs,
		RunE:  runScheduleGet,
	}

	scheduleGetCmd = &cobra.Command{
		Use:   "get",
		Short: "Print the saved schedule",
		Args:  cobra.NoArgs,
		RunE:  runScheduleGet,
	}

	scheduleSetCmd = &cobra.Command{
		Use:     "set",
		Short:   "Change the saved schedule",
		Example: paragraph("prayerbell schedule set --time 07:45 --auto-start --prayers gayatri-mantra,jana-gana-mana"),
		Args:    cobra.NoArgs,
		RunE:    runScheduleSet,
	}
)

func runScheduleGet(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	snap := a.settings.Get(cmd.Context(), cfg.SchoolID)
	if snap.SyncError != "" {
		fmt.Fprintln(os.Stderr, warning("Backend unavailable, showing defaults: "+snap.SyncError))
	}
	return printSchedule(snap.Schedule)
}

func runScheduleSet(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	sched := a.settings.Get(cmd.Context(), cfg.SchoolID).Schedule
	flags := cmd.Flags()
	if flags.Changed("enabled") {
		sched.Enabled, _ = flags.GetBool("enabled")
	}
	if flags.Changed("time") {
		sched.Time, _ = flags.GetString("time")
	}
	if flags.Changed("duration") {
		sched.Duration, _ = flags.GetInt("duration")
	}
	if flags.Changed("auto-start") {
		sched.AutoStart, _ = flags.GetBool("auto-start")
	}
	if flags.Changed("prayers") {
		ids, _ := flags.GetStringSlice("prayers")
		sched.PrayersSequence = sched.PrayersSequence[:0]
		for _, id := range ids {
			if id = strings.TrimSpace(id); id == "" {
				continue
			}
			p, err := prayer.Find(a.catalog, id)
			if err != nil {
				return err
			}
			sched.PrayersSequence = append(sched.PrayersSequence, p.ID)
		}
	}
	if flags.Changed("announce") {
		sched.AnnouncementText, _ = flags.GetString("announce")
		sched.PreAnnouncement = strings.TrimSpace(sched.AnnouncementText) != ""
	}
	if flags.Changed("no-announce") {
		sched.PreAnnouncement = false
	}

	if _, err := scheduler.Spec(sched.Time); err != nil {
		return err
	}

	a.settings.Save(cmd.Context(), cfg.SchoolID, sched)
	a.settings.Wait()
	snap := a.settings.Get(cmd.Context(), cfg.SchoolID)
	switch {
	case snap.Persisted:
		fmt.Println(keyword("Saved."))
	case snap.SyncError != "":
		fmt.Println(warning("Saved locally only: " + snap.SyncError))
	default:
		fmt.Println(faint("Saved locally only; no backend configured."))
	}
	return printSchedule(snap.Schedule)
}

func printSchedule(s prayer.Schedule) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("unable to print schedule: %w", err)
	}
	return enc.Close()
}

func init() {
	f := scheduleSetCmd.Flags()
	f.Bool("enabled", false, "enable the daily assembly")
	f.String("time", "", "assembly time as HH:MM")
	f.Int("duration", 0, "assembly length in minutes")
	f.Bool("auto-start", false, "start the session automatically at the scheduled time")
	f.StringSlice("prayers", nil, "prayer names or ids in order")
	f.String("announce", "", "announcement spoken before the first prayer")
	f.Bool("no-announce", false, "disable the announcement")

	scheduleCmd.AddCommand(scheduleGetCmd, scheduleSetCmd)
}

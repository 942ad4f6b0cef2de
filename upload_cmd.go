package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vidyalaya/prayerbell/internal/upload"
	"github.com/vidyalaya/prayerbell/prayer"
)

var uploadCmd = &cobra.Command{
	Use:   "upload NAME FILE",
	Short: "Attach a recording to a prayer",
	Long: paragraph(fmt.Sprintf("\n%s an audio file to a prayer. The clip is stored locally first "+
		"and then sent to the backend or object storage.", keyword("Attach"))),
	Example: paragraph("prayerbell upload gayatri ~/recordings/gayatri.mp3"),
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		p, err := prayer.Find(a.catalog, args[0])
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("unable to read recording: %w", err)
		}
		f := upload.File{
			Name:        filepath.Base(args[1]),
			ContentType: mime.TypeByExtension(filepath.Ext(args[1])),
			Data:        data,
		}

		st, err := a.uploader.Upload(cmd.Context(), cfg.SchoolID, p.ID, f)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s to %s (%s)\n", keyword("Attached"), f.Name, bold(p.Name), humanize.Bytes(uint64(st.Size))) //nolint:gosec

		a.uploader.Wait()
		if final, ok := a.uploader.Status(p.ID); ok {
			st = final
		}
		switch st.State {
		case upload.StatePersisted:
			fmt.Println("Persisted at", st.PersistedURL)
		case upload.StateLocalOnly:
			msg := "Kept locally"
			if st.Error != "" {
				msg += ": " + st.Error
			}
			fmt.Println(warning(msg))
		default:
			fmt.Println(faint(string(st.State)))
		}
		return nil
	},
}

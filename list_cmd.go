package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vidyalaya/prayerbell/internal/blobstore"
	"github.com/vidyalaya/prayerbell/prayer"
)

const listGap = "  "

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the prayers in the catalog",
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		width := 100
		if term.IsTerminal(int(os.Stdout.Fd())) {
			if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				width = w
			}
		}
		return renderCatalog(os.Stdout, a.catalog.List(), a.blobs, width)
	},
}

// blobSizer reports the size of locally stored recordings.
type blobSizer interface {
	Get(url string) (blobstore.Blob, error)
}

func renderCatalog(w io.Writer, prayers []prayer.Prayer, blobs blobSizer, width int) error {
	if len(prayers) == 0 {
		_, err := fmt.Fprintln(w, faint("The catalog is empty."))
		return err
	}

	idW, nameW := runewidth.StringWidth("ID"), runewidth.StringWidth("NAME")
	for _, p := range prayers {
		idW = max(idW, runewidth.StringWidth(p.ID))
		nameW = max(nameW, runewidth.StringWidth(p.Name))
	}
	nameW = min(nameW, 40)
	const sourceW = 16

	header := runewidth.FillRight("ID", idW) + listGap +
		runewidth.FillRight("NAME", nameW) + listGap +
		runewidth.FillRight("SOURCE", sourceW) + listGap + "LYRICS"
	if _, err := fmt.Fprintln(w, bold(header)); err != nil {
		return err
	}

	lyricsW := width - idW - nameW - sourceW - 3*len(listGap)
	for _, p := range prayers {
		name := runewidth.FillRight(runewidth.Truncate(p.Name, nameW, "…"), nameW)
		line := keyword(runewidth.FillRight(p.ID, idW)) + listGap +
			name + listGap +
			runewidth.FillRight(sourceLabel(p, blobs), sourceW) + listGap
		if lyricsW > 10 {
			lyrics := strings.Join(strings.Fields(p.Lyrics), " ")
			line += faint(truncate.StringWithTail(lyrics, uint(lyricsW), "…")) //nolint:gosec
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func sourceLabel(p prayer.Prayer, blobs blobSizer) string {
	switch {
	case !p.HasRecording():
		return "speech " + string(p.Language)
	case blobstore.IsBlobURL(p.AudioURL) && blobs != nil:
		b, err := blobs.Get(p.AudioURL)
		if err != nil {
			return "local (missing)"
		}
		return "local " + humanize.Bytes(uint64(b.Size())) //nolint:gosec
	default:
		return "recording"
	}
}

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/vidyalaya/prayerbell/internal/blobstore"
	"github.com/vidyalaya/prayerbell/prayer"
)

type fakeBlobs map[string]blobstore.Blob

func (f fakeBlobs) Get(url string) (blobstore.Blob, error) {
	b, ok := f[url]
	if !ok {
		return blobstore.Blob{}, blobstore.ErrNotFound
	}
	return b, nil
}

func TestRenderCatalog(t *testing.T) {
	prayers := []prayer.Prayer{
		{ID: "gayatri", Name: "Gayatri Mantra / गायत्री मंत्र", Lyrics: "Om bhur\nbhuvah svah", Language: prayer.LanguageSanskrit},
		{ID: "anthem", Name: "Jana Gana Mana", Lyrics: "Jana gana mana", AudioURL: "blob://one"},
		{ID: "lost", Name: "Lost", Lyrics: "...", AudioURL: "blob://gone"},
		{ID: "remote", Name: "Remote", Lyrics: "...", AudioURL: "https://cdn.example.com/a.mp3"},
	}
	blobs := fakeBlobs{"blob://one": {Data: make([]byte, 1000)}}

	var buf bytes.Buffer
	if err := renderCatalog(&buf, prayers, blobs, 120); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"gayatri", "speech sanskrit", "local 1.0 kB", "local (missing)", "recording", "Om bhur bhuvah svah"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Count(out, "\n"); lines != len(prayers)+1 {
		t.Errorf("got %d lines, want %d", lines, len(prayers)+1)
	}
}

func TestRenderCatalogNarrow(t *testing.T) {
	prayers := []prayer.Prayer{{ID: "a", Name: "A", Lyrics: "hidden lyrics"}}
	var buf bytes.Buffer
	if err := renderCatalog(&buf, prayers, nil, 20); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Error("lyrics shown without room for them")
	}
}

func TestRenderEmptyCatalog(t *testing.T) {
	var buf bytes.Buffer
	if err := renderCatalog(&buf, nil, nil, 80); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "empty") {
		t.Errorf("output = %q", buf.String())
	}
}

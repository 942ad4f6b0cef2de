package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/vidyalaya/prayerbell/internal/audio"
	"github.com/vidyalaya/prayerbell/internal/backend"
	"github.com/vidyalaya/prayerbell/internal/blobstore"
	"github.com/vidyalaya/prayerbell/internal/config"
	"github.com/vidyalaya/prayerbell/internal/settings"
	"github.com/vidyalaya/prayerbell/internal/upload"
	"github.com/vidyalaya/prayerbell/playback"
	"github.com/vidyalaya/prayerbell/prayer"
)

// dryRunClip is how long simulated recordings and utterances last.
const dryRunClip = 3 * time.Second

type appOptions struct {
	// audio opens the output device and builds the controller.
	audio bool
	// dryRun swaps the audio backends for silent ones.
	dryRun bool
}

// app is everything a command may need, wired from the configuration.
type app struct {
	cfg        config.Config
	catalog    *prayer.Catalog
	blobs      *blobstore.Store
	client     *backend.Client
	settings   *settings.Store
	uploader   *upload.Uploader
	controller *playback.Controller
}

func loadConfig() (config.Config, error) {
	return config.Load(viper.GetViper())
}

func newApp(cfg config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}

	var err error
	if cfg.CatalogPath != "" {
		a.catalog, err = prayer.LoadCatalog(cfg.CatalogPath)
	} else {
		a.catalog, err = prayer.DefaultCatalog()
	}
	if err != nil {
		return nil, err
	}

	blobDir := cfg.BlobDir
	if blobDir == "" {
		dataDir, err := config.DataDir()
		if err != nil {
			return nil, fmt.Errorf("unable to find data directory: %w", err)
		}
		blobDir = filepath.Join(dataDir, "blobs")
	}
	a.blobs, err = blobstore.NewStore(blobstore.Options{
		MemoryCapacity:   cfg.BlobMemoryBytes,
		DiskPath:         blobDir,
		DiskCapacity:     cfg.BlobDiskBytes,
		CompressionLevel: cfg.BlobCompression,
	})
	if err != nil {
		return nil, err
	}

	a.client, err = backend.New(cfg.Backend)
	switch {
	case errors.Is(err, backend.ErrNoBaseURL):
		log.Info("No backend configured, settings and uploads stay local")
		a.client = nil
	case err != nil:
		_ = a.blobs.Close()
		return nil, err
	}

	if a.client != nil {
		a.settings = settings.NewStore(a.client)
	} else {
		a.settings = settings.NewStore(nil)
	}

	persister, err := a.persister()
	if err != nil {
		_ = a.blobs.Close()
		return nil, err
	}
	a.uploader = upload.NewUploader(a.catalog, a.blobs, persister)

	if opts.audio {
		a.controller, err = a.newController(opts.dryRun)
		if err != nil {
			_ = a.blobs.Close()
			return nil, err
		}
	}
	return a, nil
}

// persister prefers object storage, then the backend's upload endpoint.
func (a *app) persister() (upload.Persister, error) {
	if a.cfg.Minio.Enabled() {
		m, err := backend.NewMinioStore(a.cfg.Minio)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	if a.client != nil {
		return a.client, nil
	}
	return nil, nil
}

func (a *app) newController(dryRun bool) (*playback.Controller, error) {
	if dryRun {
		rec := audio.NewMockRecorder()
		rec.Duration = dryRunClip
		speech := audio.NewMockSynthesizer(true)
		speech.Duration = dryRunClip
		log.Warn("Dry run, no audio will be produced")
		return playback.NewController(rec, speech, a.catalog, a.cfg.Playback), nil
	}

	outCfg := audio.DefaultOutputConfig()
	outCfg.SampleRate = a.cfg.SampleRate
	out, err := audio.NewOtoOutput(outCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to open audio output: %w", err)
	}

	var recorder playback.RecordingPlayer
	ffmpeg := audio.NewFFmpegPlayer(out, a.cfg.FFmpeg, a.blobs)
	if ffmpeg.Available() {
		recorder = ffmpeg
	} else {
		log.Warn("ffmpeg not found, recordings cannot be played", "binary", a.cfg.FFmpeg)
	}

	speech := audio.NewEspeakSynthesizer(out, a.cfg.Espeak, a.cfg.FFmpeg, a.cfg.Voices)
	if !speech.Available() {
		log.Warn("espeak-ng not found, lyrics cannot be spoken", "binary", a.cfg.Espeak)
	}
	return playback.NewController(recorder, speech, a.catalog, a.cfg.Playback), nil
}

func (a *app) Close() error {
	a.uploader.Wait()
	a.settings.Wait()
	return a.blobs.Close()
}

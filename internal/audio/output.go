package audio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Track is one stream playing on the output. *oto.Player satisfies it.
type Track interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(volume float64)
	Close() error
}

// Output creates tracks that all share one device.
type Output interface {
	NewTrack(r io.Reader) Track
	SampleRate() int
	Channels() int
}

// OutputConfig contains configuration for the audio output.
type OutputConfig struct {
	SampleRate int // Hz; espeak-ng produces 22050
	Channels   int // 1 = mono, 2 = stereo
	BufferSize time.Duration
}

// DefaultOutputConfig returns the output settings used for prayers.
func DefaultOutputConfig() OutputConfig {
	return OutputConfig{
		SampleRate: 22050,
		Channels:   1,
		BufferSize: 100 * time.Millisecond,
	}
}

// OtoOutput is the process-wide oto context. Only one may exist per process.
type OtoOutput struct {
	context    *oto.Context
	sampleRate int
	channels   int
}

// NewOtoOutput opens the audio device.
func NewOtoOutput(config OutputConfig) (*OtoOutput, error) {
	if err := validateOutputConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   config.BufferSize,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	return &OtoOutput{
		context:    ctx,
		sampleRate: config.SampleRate,
		channels:   config.Channels,
	}, nil
}

func validateOutputConfig(config OutputConfig) error {
	if config.SampleRate < 8000 || config.SampleRate > 96000 {
		return fmt.Errorf("sample rate must be between 8000 and 96000 Hz, got %d", config.SampleRate)
	}
	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}
	if config.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}
	return nil
}

// NewTrack creates a paused track reading s16le PCM from r.
func (o *OtoOutput) NewTrack(r io.Reader) Track {
	return o.context.NewPlayer(r)
}

// SampleRate returns the output sample rate.
func (o *OtoOutput) SampleRate() int {
	return o.sampleRate
}

// Channels returns the output channel count.
func (o *OtoOutput) Channels() int {
	return o.channels
}

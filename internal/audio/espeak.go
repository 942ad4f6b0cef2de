package audio

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vidyalaya/prayerbell/playback"
	"github.com/vidyalaya/prayerbell/prayer"
)

// DefaultVoices maps synthesizer locales to espeak-ng voices.
var DefaultVoices = map[string]string{
	"hi-IN": "hi",
	"en-IN": "en",
}

const (
	espeakBaseSpeed = 175 // words per minute at rate 1.0
	espeakBasePitch = 50
)

// EspeakSynthesizer implements playback.SpeechSynthesizer with espeak-ng.
// Utterances are queued and spoken one at a time.
type EspeakSynthesizer struct {
	output    Output
	binary    string
	resampler string // ffmpeg, for speech that does not match the output
	voices    map[string]string
	available bool

	mu      sync.Mutex
	queue   []*utteranceJob
	active  *utteranceJob
	running bool

	pollInterval time.Duration
	logger       *log.Logger
}

type utteranceJob struct {
	u      playback.Utterance
	onEnd  func(error)
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEspeakSynthesizer creates a synthesizer. Availability is probed once,
// here. resampler is the ffmpeg binary used when espeak-ng speaks at another
// sample rate or channel count than the output.
func NewEspeakSynthesizer(output Output, binary, resampler string, voices map[string]string) *EspeakSynthesizer {
	if binary == "" {
		binary = "espeak-ng"
	}
	if resampler == "" {
		resampler = "ffmpeg"
	}
	if len(voices) == 0 {
		voices = DefaultVoices
	}
	_, err := exec.LookPath(binary)
	return &EspeakSynthesizer{
		output:       output,
		binary:       binary,
		resampler:    resampler,
		voices:       voices,
		available:    err == nil && output != nil,
		pollInterval: 50 * time.Millisecond,
		logger:       log.WithPrefix("speech"),
	}
}

// Available reports whether espeak-ng was found at construction.
func (s *EspeakSynthesizer) Available() bool {
	return s.available
}

// Speak queues an utterance.
func (s *EspeakSynthesizer) Speak(u playback.Utterance, onEnd func(error)) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &utteranceJob{u: u, onEnd: onEnd, ctx: ctx, cancel: cancel}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, job)
	if !s.running {
		s.running = true
		go s.run()
	}
}

// Cancel drops every queued utterance and silences the active one.
func (s *EspeakSynthesizer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.queue {
		job.cancel()
		if job.onEnd != nil {
			go job.onEnd(playback.ErrCanceled)
		}
	}
	s.queue = nil
	if s.active != nil {
		s.active.cancel()
	}
}

func (s *EspeakSynthesizer) run() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		job := s.queue[0]
		s.queue = s.queue[1:]
		s.active = job
		s.mu.Unlock()

		err := s.speak(job)

		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
		job.cancel()
		if job.onEnd != nil {
			job.onEnd(err)
		}
	}
}

func (s *EspeakSynthesizer) speak(job *utteranceJob) error {
	if job.ctx.Err() != nil {
		return playback.ErrCanceled
	}

	voice := VoiceFor(s.voices, job.u.Locale)
	cmd := exec.CommandContext(job.ctx, s.binary, espeakArgs(job.u, voice)...)
	cmd.Stdin = strings.NewReader(job.u.Text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	wav, err := cmd.Output()
	if job.ctx.Err() != nil {
		return playback.ErrCanceled
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%s: %s", s.binary, msg)
	}

	pcm, info, err := PCMFromWAV(wav)
	if err != nil {
		return err
	}
	if info.SampleRate != s.output.SampleRate() || info.Channels != s.output.Channels() {
		pcm, err = s.resample(job.ctx, wav)
		if job.ctx.Err() != nil {
			return playback.ErrCanceled
		}
		if err != nil {
			return fmt.Errorf("speech is %d Hz/%d ch, output is %d Hz/%d ch: %w",
				info.SampleRate, info.Channels, s.output.SampleRate(), s.output.Channels(), err)
		}
	}

	track := s.output.NewTrack(bytes.NewReader(pcm))
	track.SetVolume(job.u.Volume)
	track.Play()
	defer func() {
		track.Pause()
		_ = track.Close()
	}()
	s.logger.Debug("Speaking", "voice", voice, "bytes", len(pcm))

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-job.ctx.Done():
			return playback.ErrCanceled
		case <-ticker.C:
			if !track.IsPlaying() {
				return nil
			}
		}
	}
}

// resample converts a WAV into PCM at the output's format.
func (s *EspeakSynthesizer) resample(ctx context.Context, wav []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.resampler, decodeArgs("pipe:0", s.output.SampleRate(), s.output.Channels())...)
	cmd.Stdin = bytes.NewReader(wav)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	pcm, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("resample with %s: %s", s.resampler, msg)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("resample with %s: no audio data", s.resampler)
	}
	return pcm, nil
}

// VoiceFor picks the espeak-ng voice for a locale: exact match, then the
// language part, then the default locale's voice.
func VoiceFor(voices map[string]string, locale string) string {
	if v, ok := voices[locale]; ok {
		return v
	}
	lang := strings.ToLower(strings.SplitN(locale, "-", 2)[0])
	for loc, v := range voices {
		if strings.EqualFold(strings.SplitN(loc, "-", 2)[0], lang) {
			return v
		}
	}
	if v, ok := voices[prayer.DefaultLocale]; ok {
		return v
	}
	return "hi"
}

// espeakArgs builds the command line; text is passed on stdin.
func espeakArgs(u playback.Utterance, voice string) []string {
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	speed := clampInt(int(math.Round(espeakBaseSpeed*rate)), 80, 450)
	pitch := clampInt(int(math.Round(espeakBasePitch*u.Pitch)), 0, 99)
	return []string{
		"-v", voice,
		"-s", strconv.Itoa(speed),
		"-p", strconv.Itoa(pitch),
		"--stdout",
		"--stdin",
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ playback.SpeechSynthesizer = (*EspeakSynthesizer)(nil)

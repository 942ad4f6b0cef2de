package audio

import (
	"context"
	"sync"
	"time"

	"github.com/vidyalaya/prayerbell/playback"
)

// MockRecorder implements playback.RecordingPlayer without producing sound.
// It records every call so tests can check what the controller did.
type MockRecorder struct {
	mu      sync.Mutex
	source  string
	volume  float64
	playing bool
	onEnded func()
	calls   []string
	timer   *time.Timer

	// PlayError makes Play fail.
	PlayError error
	// Duration, when set, ends every clip on its own after that long.
	Duration time.Duration
}

// NewMockRecorder creates a mock recording player.
func NewMockRecorder() *MockRecorder {
	return &MockRecorder{volume: 1}
}

// Load records the source.
func (m *MockRecorder) Load(url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "load")
	m.source = url
	return nil
}

// SetVolume records the level.
func (m *MockRecorder) SetVolume(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "volume")
	m.volume = level
}

// Play starts the simulated clip.
func (m *MockRecorder) Play(_ context.Context, onEnded func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "play")
	if m.PlayError != nil {
		return m.PlayError
	}
	m.playing = true
	m.onEnded = onEnded
	if m.Duration > 0 {
		m.timer = time.AfterFunc(m.Duration, m.FinishRecording)
	}
	return nil
}

// Pause silences the simulated clip.
func (m *MockRecorder) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "pause")
	m.playing = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Rewind records the reset.
func (m *MockRecorder) Rewind() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "rewind")
}

// FinishRecording fires the ended event of the current clip.
func (m *MockRecorder) FinishRecording() {
	m.mu.Lock()
	fn := m.onEnded
	m.onEnded = nil
	m.playing = false
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Source returns the loaded URL.
func (m *MockRecorder) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// Volume returns the last applied level.
func (m *MockRecorder) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// IsPlaying reports whether the simulated clip is audible.
func (m *MockRecorder) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Calls returns the recorded call names in order.
func (m *MockRecorder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Count returns how often the named call happened.
func (m *MockRecorder) Count(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == call {
			n++
		}
	}
	return n
}

// MockSynthesizer implements playback.SpeechSynthesizer without producing
// sound.
type MockSynthesizer struct {
	mu        sync.Mutex
	available bool
	spoken    []playback.Utterance
	pending   func(error)
	cancels   int
	timer     *time.Timer

	// Duration, when set, finishes every utterance on its own after that long.
	Duration time.Duration
}

// NewMockSynthesizer creates a mock synthesizer.
func NewMockSynthesizer(available bool) *MockSynthesizer {
	return &MockSynthesizer{available: available}
}

// Available reports the configured availability.
func (m *MockSynthesizer) Available() bool {
	return m.available
}

// Speak records the utterance and keeps it active until finished or canceled.
func (m *MockSynthesizer) Speak(u playback.Utterance, onEnd func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spoken = append(m.spoken, u)
	m.pending = onEnd
	if m.Duration > 0 {
		m.timer = time.AfterFunc(m.Duration, m.FinishSpeech)
	}
}

// Cancel drops the active utterance; its callback receives ErrCanceled
// asynchronously, like a real queue would.
func (m *MockSynthesizer) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if fn := m.pending; fn != nil {
		m.pending = nil
		go fn(playback.ErrCanceled)
	}
}

// FinishSpeech completes the active utterance normally.
func (m *MockSynthesizer) FinishSpeech() {
	m.finish(nil)
}

// FailSpeech completes the active utterance with err.
func (m *MockSynthesizer) FailSpeech(err error) {
	m.finish(err)
}

func (m *MockSynthesizer) finish(err error) {
	m.mu.Lock()
	fn := m.pending
	m.pending = nil
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Speaking reports whether an utterance is active.
func (m *MockSynthesizer) Speaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Spoken returns every submitted utterance in order.
func (m *MockSynthesizer) Spoken() []playback.Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]playback.Utterance(nil), m.spoken...)
}

// Cancels returns how often Cancel was called.
func (m *MockSynthesizer) Cancels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}

var (
	_ playback.RecordingPlayer   = (*MockRecorder)(nil)
	_ playback.SpeechSynthesizer = (*MockSynthesizer)(nil)
)

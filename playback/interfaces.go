// Package playback owns the single "what is currently audible" state machine
// of the prayer player.
package playback

import "context"

// RecordingPlayer plays pre-recorded clips. Implementations must never invoke
// the onEnded callback synchronously from inside Play, and Pause/Rewind must
// not wait for a pending callback.
type RecordingPlayer interface {
	// Load sets the source URL of the next playback.
	Load(url string) error

	// SetVolume applies an output level in [0, 1] immediately.
	SetVolume(level float64)

	// Play starts the loaded source and returns once sound is being
	// produced, or the reason it could not start. onEnded fires when the
	// clip reaches its natural end.
	Play(ctx context.Context, onEnded func()) error

	// Pause stops output without resetting the position.
	Pause()

	// Rewind resets the position to the start of the clip.
	Rewind()
}

// SpeechSynthesizer speaks text. It has a single global queue.
type SpeechSynthesizer interface {
	// Available reports whether synthesis works in this runtime. It is
	// queried once, when the controller is built.
	Available() bool

	// Speak submits an utterance. onEnd receives nil on natural completion,
	// ErrCanceled after Cancel, or the synthesis failure. It must be called
	// asynchronously.
	Speak(u Utterance, onEnd func(error))

	// Cancel drops queued speech and silences the active utterance.
	Cancel()
}

// Utterance is one synthesis request. Volume is fixed at submission time:
// changing the controller volume mid-utterance only affects the next one.
type Utterance struct {
	Text   string
	Locale string
	Rate   float64
	Pitch  float64
	Volume float64
}

// Capabilities describes which audio paths the runtime supports.
type Capabilities struct {
	Recording bool `json:"recording"`
	Speech    bool `json:"speech"`
}

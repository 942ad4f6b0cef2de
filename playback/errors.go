package playback

import (
	"errors"
	"fmt"

	"github.com/vidyalaya/prayerbell/prayer"
)

var (
	// ErrUnknownPrayer is returned when a prayer id is not in the catalog.
	ErrUnknownPrayer = prayer.ErrNotFound

	// ErrEmptySequence is returned when a session has no prayer to start.
	ErrEmptySequence = errors.New("prayer sequence is empty")

	// ErrNoCatalog is returned by id-based operations on a controller built
	// without a catalog.
	ErrNoCatalog = errors.New("controller has no catalog")

	// ErrCanceled is what synthesizers report for utterances dropped by
	// Cancel. It is not a failure.
	ErrCanceled = errors.New("utterance canceled")
)

// ValidationError rejects input before any state is touched.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	Err    error // optional cause
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap returns the underlying error, if any.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PlaybackError means a recording failed to start. The controller is back to
// idle when it is returned.
type PlaybackError struct {
	PrayerID string
	URL      string
	Err      error
}

// Error implements the error interface.
func (e *PlaybackError) Error() string {
	return fmt.Sprintf("unable to play recording of %s: %v", e.PrayerID, e.Err)
}

// Unwrap returns the underlying error.
func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// UnsupportedFeatureError means the runtime lacks an audio capability. No
// state changed.
type UnsupportedFeatureError struct {
	Feature string
	Err     error // optional cause, e.g. a missing binary
}

// Error implements the error interface.
func (e *UnsupportedFeatureError) Error() string {
	return e.Feature + " is not supported in this environment"
}

// Unwrap returns the underlying error, if any.
func (e *UnsupportedFeatureError) Unwrap() error {
	return e.Err
}

// SynthesisError reports an utterance that failed while speaking. State-wise
// it is a natural end.
type SynthesisError struct {
	PrayerID string // empty for announcements
	Err      error
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	if e.PrayerID == "" {
		return fmt.Sprintf("announcement synthesis failed: %v", e.Err)
	}
	return fmt.Sprintf("speech synthesis of %s failed: %v", e.PrayerID, e.Err)
}

// Unwrap returns the underlying error.
func (e *SynthesisError) Unwrap() error {
	return e.Err
}

// Kind classifies an error for notifications and metrics.
func Kind(err error) string {
	var (
		validation  *ValidationError
		playback    *PlaybackError
		unsupported *UnsupportedFeatureError
		synthesis   *SynthesisError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &playback):
		return "playback"
	case errors.As(err, &unsupported):
		return "unsupported"
	case errors.As(err, &synthesis):
		return "synthesis"
	case errors.Is(err, ErrUnknownPrayer):
		return "not_found"
	case errors.Is(err, ErrEmptySequence):
		return "empty_sequence"
	default:
		return "internal"
	}
}

// IsRecoverable reports whether the controller can keep serving after err.
// Rejected input, failed recordings and failed utterances all leave it idle
// and usable; only a controller wired without a catalog is not.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	return !errors.Is(err, ErrNoCatalog)
}

package playback

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKind(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", &ValidationError{Field: "file", Reason: "empty"}, "validation"},
		{"playback", &PlaybackError{PrayerID: "a", Err: cause}, "playback"},
		{"wrapped playback", fmt.Errorf("api: %w", &PlaybackError{PrayerID: "a", Err: cause}), "playback"},
		{"unsupported", &UnsupportedFeatureError{Feature: "speech synthesis"}, "unsupported"},
		{"synthesis", &SynthesisError{PrayerID: "a", Err: cause}, "synthesis"},
		{"unknown prayer", fmt.Errorf("%w: x", ErrUnknownPrayer), "not_found"},
		{"empty sequence", ErrEmptySequence, "empty_sequence"},
		{"other", cause, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("decoder exited")

	pe := &PlaybackError{PrayerID: "anthem", Err: cause}
	if !strings.Contains(pe.Error(), "anthem") || !errors.Is(pe, cause) {
		t.Errorf("PlaybackError = %q", pe.Error())
	}

	se := &SynthesisError{Err: cause}
	if !strings.Contains(se.Error(), "announcement") || !errors.Is(se, cause) {
		t.Errorf("announcement SynthesisError = %q", se.Error())
	}
	se = &SynthesisError{PrayerID: "om", Err: cause}
	if !strings.Contains(se.Error(), "om") {
		t.Errorf("SynthesisError = %q", se.Error())
	}

	ve := &ValidationError{Field: "file", Value: "a.exe", Reason: "unsupported type"}
	if got := ve.Error(); got != `invalid file "a.exe": unsupported type` {
		t.Errorf("ValidationError = %q", got)
	}
}

func TestIsRecoverable(t *testing.T) {
	cause := errors.New("boom")
	recoverable := []error{
		nil,
		&ValidationError{Field: "file", Reason: "empty"},
		&PlaybackError{PrayerID: "a", Err: cause},
		&UnsupportedFeatureError{Feature: "speech synthesis"},
		&SynthesisError{Err: cause},
		fmt.Errorf("%w: x", ErrUnknownPrayer),
		ErrEmptySequence,
		ErrCanceled,
		cause,
	}
	for _, err := range recoverable {
		if !IsRecoverable(err) {
			t.Errorf("IsRecoverable(%v) = false", err)
		}
	}
	for _, err := range []error{ErrNoCatalog, fmt.Errorf("play: %w", ErrNoCatalog)} {
		if IsRecoverable(err) {
			t.Errorf("IsRecoverable(%v) = true", err)
		}
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("cause")
	for _, err := range []error{
		&ValidationError{Field: "file", Reason: "unreadable", Err: cause},
		&UnsupportedFeatureError{Feature: "speech synthesis", Err: cause},
		&PlaybackError{PrayerID: "a", Err: cause},
		&SynthesisError{Err: cause},
	} {
		if !errors.Is(err, cause) {
			t.Errorf("%T does not unwrap to its cause", err)
		}
	}
	if errors.Unwrap(&ValidationError{Field: "file", Reason: "empty"}) != nil {
		t.Error("ValidationError without cause unwraps to non-nil")
	}
}

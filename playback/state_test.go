package playback

import (
	"testing"

	"github.com/vidyalaya/prayerbell/prayer"
)

func TestStateMachineTransitions(t *testing.T) {
	sm := NewStateMachine()
	if sm.Current() != StateIdle {
		t.Fatalf("initial state = %s", sm.Current())
	}

	var entered []StateType
	exits := 0
	sm.OnEnter(StatePlaying, func() { entered = append(entered, StatePlaying) })
	sm.OnEnter(StateIdle, func() { entered = append(entered, StateIdle) })
	sm.OnExit(StatePlaying, func() { exits++ })

	if sm.Transition(StateIdle) {
		t.Error("idle -> idle should be rejected")
	}
	if !sm.Transition(StatePlaying) {
		t.Fatal("idle -> playing rejected")
	}
	// Switching prayers re-enters playing.
	if !sm.Transition(StatePlaying) {
		t.Fatal("playing -> playing rejected")
	}
	if !sm.Transition(StateIdle) {
		t.Fatal("playing -> idle rejected")
	}

	want := []StateType{StatePlaying, StatePlaying, StateIdle}
	if len(entered) != len(want) {
		t.Fatalf("entered %v, want %v", entered, want)
	}
	for i := range want {
		if entered[i] != want[i] {
			t.Errorf("entered[%d] = %s, want %s", i, entered[i], want[i])
		}
	}
	if exits != 2 {
		t.Errorf("exits = %d, want 2", exits)
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{StateIdle.String(), "idle"},
		{StatePlaying.String(), "playing"},
		{StateType(9).String(), "unknown"},
		{SourceNone.String(), "none"},
		{SourceRecording.String(), "recording"},
		{SourceSynthesized.String(), "synthesized"},
		{SourceAnnouncement.String(), "announcement"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestEffectiveLevel(t *testing.T) {
	tests := []struct {
		volume int
		muted  bool
		want   float64
	}{
		{80, false, 0.8},
		{80, true, 0},
		{0, false, 0},
		{100, false, 1},
		{150, false, 1},
		{-5, false, 0},
	}
	for _, tt := range tests {
		if got := EffectiveLevel(tt.volume, tt.muted); got != tt.want {
			t.Errorf("EffectiveLevel(%d, %v) = %v, want %v", tt.volume, tt.muted, got, tt.want)
		}
	}
}

func TestSessionHelpers(t *testing.T) {
	var s Session
	if s.IsPlaying() || s.SelectedID() != "" {
		t.Errorf("zero session = %+v", s)
	}
	s = Session{State: StatePlaying, Selected: &prayer.Prayer{ID: "a"}, Volume: 40}
	if !s.IsPlaying() || s.SelectedID() != "a" || s.EffectiveLevel() != 0.4 {
		t.Errorf("session helpers wrong for %+v", s)
	}
}

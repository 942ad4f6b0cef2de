package playback

import "github.com/vidyalaya/prayerbell/prayer"

// StateType is the controller state.
type StateType int

const (
	// StateIdle means nothing is selected and nothing is audible.
	StateIdle StateType = iota
	// StatePlaying means a source is audible.
	StatePlaying
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Source tells which stop primitive backs the current playback.
type Source int

const (
	// SourceNone means nothing is playing.
	SourceNone Source = iota
	// SourceRecording is an uploaded or remote clip; stopping pauses and
	// rewinds the recording player.
	SourceRecording
	// SourceSynthesized is a prayer's lyrics spoken by the synthesizer;
	// stopping cancels speech.
	SourceSynthesized
	// SourceAnnouncement is a spoken notice that belongs to no prayer.
	SourceAnnouncement
)

// String returns the string representation of the source.
func (s Source) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceRecording:
		return "recording"
	case SourceSynthesized:
		return "synthesized"
	case SourceAnnouncement:
		return "announcement"
	default:
		return "unknown"
	}
}

// Session is the transient record of what is selected, playing and muted.
type Session struct {
	State    StateType
	Selected *prayer.Prayer
	Source   Source
	Volume   int
	Muted    bool
}

// IsPlaying reports whether audio or speech is producing sound.
func (s Session) IsPlaying() bool {
	return s.State == StatePlaying
}

// SelectedID returns the id of the selected prayer, or "".
func (s Session) SelectedID() string {
	if s.Selected == nil {
		return ""
	}
	return s.Selected.ID
}

// EffectiveLevel is the output level actually applied to a source.
func (s Session) EffectiveLevel() float64 {
	return EffectiveLevel(s.Volume, s.Muted)
}

// EffectiveLevel computes muted ? 0 : volume/100.
func EffectiveLevel(volume int, muted bool) float64 {
	if muted {
		return 0
	}
	return float64(clampVolume(volume)) / 100
}

func clampVolume(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// StateMachine guards transitions between controller states.
type StateMachine struct {
	current     StateType
	transitions map[StateType][]StateType
	onEnter     map[StateType]func()
	onExit      map[StateType]func()
}

// NewStateMachine creates a state machine starting in StateIdle.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle: {StatePlaying},
			// Playing -> Playing is a switch to another prayer.
			StatePlaying: {StateIdle, StatePlaying},
		},
		onEnter: make(map[StateType]func()),
		onExit:  make(map[StateType]func()),
	}
}

// Transition attempts to move to the given state.
func (sm *StateMachine) Transition(to StateType) bool {
	valid := false
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			valid = true
			break
		}
	}
	if !valid {
		return false
	}

	if exitFn, ok := sm.onExit[sm.current]; ok && exitFn != nil {
		exitFn()
	}
	sm.current = to
	if enterFn, ok := sm.onEnter[to]; ok && enterFn != nil {
		enterFn()
	}
	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state StateType, fn func()) {
	sm.onEnter[state] = fn
}

// OnExit registers a callback for exiting a state.
func (sm *StateMachine) OnExit(state StateType, fn func()) {
	sm.onExit[state] = fn
}

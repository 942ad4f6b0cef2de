package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/vidyalaya/prayerbell/prayer"
)

// Controller guarantees that at most one audio source is audible and gives a
// uniform play/stop/volume/mute interface over recordings and speech.
//
// Every entry point goes through gate. Starting a source always silences the
// previous one first, and every playback gets a generation number so that
// completion callbacks of superseded playbacks are dropped.
type Controller struct {
	recorder RecordingPlayer
	speech   SpeechSynthesizer
	catalog  *prayer.Catalog
	caps     Capabilities
	config   Config

	gate    sync.Mutex
	machine *StateMachine
	gen     uint64

	// mu guards session so readers never wait on a clip that is starting.
	mu      sync.RWMutex
	session Session

	listenersMu   sync.RWMutex
	onStateChange []func(Session)
	onError       []func(error)

	logger *log.Logger
}

// NewController creates a controller. Either backend may be nil; the missing
// capability is then reported as unsupported. catalog may be nil when only
// Play is used.
func NewController(recorder RecordingPlayer, speech SpeechSynthesizer, catalog *prayer.Catalog, config Config) *Controller {
	c := &Controller{
		recorder: recorder,
		speech:   speech,
		catalog:  catalog,
		config:   config,
		machine:  NewStateMachine(),
		session: Session{
			State:  StateIdle,
			Volume: clampVolume(config.Volume),
			Muted:  config.Muted,
		},
		logger: log.WithPrefix("playback"),
	}
	c.caps = Capabilities{
		Recording: recorder != nil,
		Speech:    speech != nil && speech.Available(),
	}
	c.setupStateMachine()
	return c
}

// Capabilities returns what the runtime could do when the controller was built.
func (c *Controller) Capabilities() Capabilities {
	return c.caps
}

// Session returns a copy of the current playback session.
func (c *Controller) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.session
	if s.Selected != nil {
		p := *s.Selected
		s.Selected = &p
	}
	return s
}

// OnStateChange registers a callback that receives the session after every
// change.
func (c *Controller) OnStateChange(fn func(Session)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.onStateChange = append(c.onStateChange, fn)
}

// OnError registers a callback for user-facing failures, including the ones
// that happen after the triggering call returned.
func (c *Controller) OnError(fn func(error)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.onError = append(c.onError, fn)
}

// Play starts p. Requesting the prayer that is already playing stops it.
func (c *Controller) Play(ctx context.Context, p prayer.Prayer) error {
	c.gate.Lock()
	if c.isSelectedLocked(p.ID) {
		c.logger.Debug("Same prayer requested, stopping", "prayer", p.ID)
		c.stopLocked()
		c.release(true, nil)
		return nil
	}
	changed, err := c.playLocked(ctx, p)
	c.release(changed, err)
	return err
}

// PlayID looks id up in the catalog and plays it.
func (c *Controller) PlayID(ctx context.Context, id string) error {
	p, err := c.lookup(id)
	if err != nil {
		return err
	}
	return c.Play(ctx, p)
}

// Stop silences every source and clears the selection.
func (c *Controller) Stop() {
	c.gate.Lock()
	changed := c.session.IsPlaying()
	c.stopLocked()
	c.release(changed, nil)
}

// SetVolume sets the volume in [0, 100]. A playing recording picks it up
// immediately; speech already submitted keeps its level until the next
// utterance.
func (c *Controller) SetVolume(volume int) {
	c.gate.Lock()
	c.mu.Lock()
	c.session.Volume = clampVolume(volume)
	c.mu.Unlock()
	c.applyLevelLocked()
	c.release(true, nil)
}

// SetMuted mutes or unmutes output with the same rules as SetVolume.
func (c *Controller) SetMuted(muted bool) {
	c.gate.Lock()
	c.mu.Lock()
	c.session.Muted = muted
	c.mu.Unlock()
	c.applyLevelLocked()
	c.release(true, nil)
}

// StartSession runs the assembly: the announcement first when configured,
// then the first prayer of the sequence once the announcement has finished.
// Later prayers of the sequence are not played automatically.
func (c *Controller) StartSession(ctx context.Context, s prayer.Schedule) error {
	id, ok := s.First()
	if !ok {
		return ErrEmptySequence
	}
	if _, err := c.lookup(id); err != nil {
		return err
	}

	c.gate.Lock()
	text, announce := s.Announcement()
	if announce && !c.caps.Speech {
		c.logger.Warn("Speech synthesis unavailable, skipping announcement")
		announce = false
	}
	if !announce {
		first, err := c.lookup(id)
		if err != nil {
			c.gate.Unlock()
			return err
		}
		changed, err := c.playLocked(ctx, first)
		c.release(changed, err)
		return err
	}

	gen := c.beginLocked(nil, SourceAnnouncement)
	next := context.WithoutCancel(ctx)
	c.logger.Info("Starting session with announcement", "first", id)
	c.speech.Speak(c.utteranceLocked(text, c.config.AnnouncementLocale), func(err error) {
		c.announcementEnded(next, gen, id, err)
	})
	c.release(true, nil)
	return nil
}

func (c *Controller) setupStateMachine() {
	c.machine.OnEnter(StateIdle, func() {
		c.session.State = StateIdle
		c.session.Selected = nil
		c.session.Source = SourceNone
	})
	c.machine.OnEnter(StatePlaying, func() {
		c.session.State = StatePlaying
	})
}

func (c *Controller) lookup(id string) (prayer.Prayer, error) {
	if c.catalog == nil {
		return prayer.Prayer{}, ErrNoCatalog
	}
	return c.catalog.Get(id)
}

func (c *Controller) isSelectedLocked(id string) bool {
	return c.session.IsPlaying() && c.session.Selected != nil && c.session.Selected.ID == id
}

// playLocked starts p without the toggle rule. It reports whether the session
// changed.
func (c *Controller) playLocked(ctx context.Context, p prayer.Prayer) (bool, error) {
	if p.HasRecording() {
		if !c.caps.Recording {
			return false, &UnsupportedFeatureError{Feature: "recording playback"}
		}
		gen := c.beginLocked(&p, SourceRecording)
		if err := c.recorder.Load(p.AudioURL); err != nil {
			c.stopLocked()
			return true, &PlaybackError{PrayerID: p.ID, URL: p.AudioURL, Err: err}
		}
		c.recorder.SetVolume(c.session.EffectiveLevel())
		if err := c.recorder.Play(ctx, c.recordingEnded(gen, p.ID)); err != nil {
			c.stopLocked()
			return true, &PlaybackError{PrayerID: p.ID, URL: p.AudioURL, Err: err}
		}
		c.logger.Info("Playing recording", "prayer", p.ID, "url", p.AudioURL)
		return true, nil
	}

	if !c.caps.Speech {
		return false, &UnsupportedFeatureError{Feature: "speech synthesis"}
	}
	gen := c.beginLocked(&p, SourceSynthesized)
	u := c.utteranceLocked(p.Lyrics, p.Locale())
	c.logger.Info("Speaking lyrics", "prayer", p.ID, "locale", u.Locale)
	c.speech.Speak(u, c.speechEnded(gen, p.ID))
	return true, nil
}

// beginLocked silences everything and selects p with the given source.
func (c *Controller) beginLocked(p *prayer.Prayer, src Source) uint64 {
	c.haltLocked()
	c.mu.Lock()
	c.machine.Transition(StatePlaying)
	c.session.Selected = p
	c.session.Source = src
	c.mu.Unlock()
	return c.gen
}

// haltLocked silences both sources and invalidates pending callbacks. It runs
// unconditionally so a source that drifted out of sync is silenced too.
func (c *Controller) haltLocked() {
	if c.recorder != nil {
		c.recorder.Pause()
		c.recorder.Rewind()
	}
	if c.caps.Speech {
		c.speech.Cancel()
	}
	c.gen++
}

func (c *Controller) stopLocked() {
	c.haltLocked()
	c.mu.Lock()
	if !c.machine.Transition(StateIdle) {
		c.session.Selected = nil
		c.session.Source = SourceNone
	}
	c.mu.Unlock()
}

func (c *Controller) applyLevelLocked() {
	if c.session.Source == SourceRecording && c.recorder != nil {
		c.recorder.SetVolume(c.session.EffectiveLevel())
	}
}

func (c *Controller) utteranceLocked(text, locale string) Utterance {
	return Utterance{
		Text:   text,
		Locale: locale,
		Rate:   c.config.Rate,
		Pitch:  c.config.Pitch,
		Volume: c.session.EffectiveLevel(),
	}
}

func (c *Controller) recordingEnded(gen uint64, id string) func() {
	return func() {
		c.gate.Lock()
		if gen != c.gen {
			c.gate.Unlock()
			return
		}
		c.logger.Debug("Recording ended", "prayer", id)
		c.stopLocked()
		c.release(true, nil)
	}
}

func (c *Controller) speechEnded(gen uint64, id string) func(error) {
	return func(err error) {
		c.gate.Lock()
		if gen != c.gen {
			c.gate.Unlock()
			return
		}
		c.stopLocked()
		var notify error
		if err != nil && !errors.Is(err, ErrCanceled) {
			notify = &SynthesisError{PrayerID: id, Err: err}
		}
		c.logger.Debug("Speech ended", "prayer", id, "err", err)
		c.release(true, notify)
	}
}

func (c *Controller) announcementEnded(ctx context.Context, gen uint64, firstID string, err error) {
	c.gate.Lock()
	if gen != c.gen {
		c.gate.Unlock()
		return
	}
	if err != nil {
		c.stopLocked()
		var notify error
		if !errors.Is(err, ErrCanceled) {
			notify = &SynthesisError{Err: err}
		}
		c.release(true, notify)
		return
	}

	first, lerr := c.lookup(firstID)
	if lerr != nil {
		c.stopLocked()
		c.release(true, lerr)
		return
	}
	changed, perr := c.playLocked(ctx, first)
	c.release(changed, perr)
}

// release unlocks gate and notifies listeners outside of it, so a listener
// may call back into the controller.
func (c *Controller) release(changed bool, err error) {
	snapshot := c.Session()
	c.gate.Unlock()

	c.listenersMu.RLock()
	stateFns := c.onStateChange
	errorFns := c.onError
	c.listenersMu.RUnlock()

	if changed {
		for _, fn := range stateFns {
			fn(snapshot)
		}
	}
	if err != nil {
		if IsRecoverable(err) {
			c.logger.Warn("Playback failed", "kind", Kind(err), "err", err)
		} else {
			c.logger.Error("Playback failed", "kind", Kind(err), "err", err)
		}
		for _, fn := range errorFns {
			fn(err)
		}
	}
}

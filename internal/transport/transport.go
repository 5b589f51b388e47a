// ABOUTME: Playback transport state owner
// ABOUTME: Holds authoritative play/pause/seek/volume state and notifies observers on change
package transport

import "sync"

// State is a read-only snapshot of the transport
type State struct {
	IsPlaying      bool
	CurrentTimeSec float64
	// Volume is the master volume, 0-1
	Volume       float64
	IsMuted      bool
	PlaybackRate float64
}

// Observer receives a state snapshot on every change
type Observer interface {
	Observe(State)
}

// Transport owns the authoritative playback state. The playback core
// never writes it; it only observes changes.
type Transport struct {
	mu sync.Mutex
	// notifyMu is held across an entire mutation so observers see
	// snapshots in mutation order even when callers race
	notifyMu  sync.Mutex
	state     State
	duration  float64
	observers []Observer
}

// New creates a paused transport at time zero for a timeline of the
// given duration
func New(durationSec float64) *Transport {
	return &Transport{
		state: State{
			Volume:       1.0,
			PlaybackRate: 1.0,
		},
		duration: durationSec,
	}
}

// Subscribe registers an observer. Observers are notified in
// registration order on every state change.
func (t *Transport) Subscribe(o Observer) {
	t.mu.Lock()
	t.observers = append(t.observers, o)
	t.mu.Unlock()
}

// Snapshot returns the current state
func (t *Transport) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Play starts playback
func (t *Transport) Play() {
	t.mutate(func(s *State) { s.IsPlaying = true })
}

// Pause pauses playback
func (t *Transport) Pause() {
	t.mutate(func(s *State) { s.IsPlaying = false })
}

// TogglePlay flips between playing and paused
func (t *Transport) TogglePlay() {
	t.mutate(func(s *State) { s.IsPlaying = !s.IsPlaying })
}

// Seek jumps the playhead, clamped to the timeline
func (t *Transport) Seek(timeSec float64) {
	t.mutate(func(s *State) { s.CurrentTimeSec = t.clamp(timeSec) })
}

// SetVolume sets master volume, clamped to [0, 1]
func (t *Transport) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	t.mutate(func(s *State) { s.Volume = volume })
}

// SetMuted sets the master mute state
func (t *Transport) SetMuted(muted bool) {
	t.mutate(func(s *State) { s.IsMuted = muted })
}

// SetRate sets the playback rate; values <= 0 are ignored
func (t *Transport) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	t.mutate(func(s *State) { s.PlaybackRate = rate })
}

// Advance progresses the playhead by a rate-scaled wall-clock delta while
// playing; pauses at the end of the timeline. Driven by the render loop.
func (t *Transport) Advance(dtSec float64) {
	t.mutate(func(s *State) {
		if !s.IsPlaying {
			return
		}
		s.CurrentTimeSec = t.clamp(s.CurrentTimeSec + dtSec*s.PlaybackRate)
		if t.duration > 0 && s.CurrentTimeSec >= t.duration {
			s.IsPlaying = false
		}
	})
}

func (t *Transport) clamp(timeSec float64) float64 {
	if timeSec < 0 {
		return 0
	}
	if t.duration > 0 && timeSec > t.duration {
		return t.duration
	}
	return timeSec
}

// mutate applies a change under lock and notifies observers outside
// it. Delivery is serialized so a later mutation's snapshot can never
// overtake an earlier one.
func (t *Transport) mutate(fn func(*State)) {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	before := t.state
	fn(&t.state)
	changed := t.state != before
	snapshot := t.state
	observers := make([]Observer, len(t.observers))
	copy(observers, t.observers)
	t.mu.Unlock()

	if !changed {
		return
	}
	for _, o := range observers {
		o.Observe(snapshot)
	}
}

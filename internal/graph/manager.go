// ABOUTME: Audio output graph manager using oto
// ABOUTME: Owns the output context lifecycle and per-clip source nodes; makes no scheduling decisions
package graph

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/cutplane/playback-go/internal/audio"
)

// SourceParams describes how a clip source should be mixed
type SourceParams struct {
	// TrackVolume is the owning track's volume multiplier (0-2)
	TrackVolume float64
	// ClipVolumeDb is the clip's volume in dB (-60 to +6)
	ClipVolumeDb float64
	// Pan is -1 (left) to +1 (right)
	Pan float64
	// Muted silences the clip regardless of volume
	Muted bool
	// MasterVolume is the transport's master volume (0-1)
	MasterVolume float64
	// MasterMuted silences everything
	MasterMuted bool
}

// Gain computes the linear gain for these parameters:
// trackVolume * dbToLinear(clipVolumeDb) * muteZero * masterVolume
func (p SourceParams) Gain() float64 {
	if p.Muted || p.MasterMuted {
		return 0
	}
	return p.TrackVolume * audio.DBToLinear(p.ClipVolumeDb) * p.MasterVolume
}

// Manager owns the audio output context and the live source set.
// All methods are safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	format audio.Format

	otoCtx    *oto.Context
	ready     bool
	suspended bool
	startedAt time.Time

	sources map[*Source]struct{}
}

// NewManager creates a manager that will open an output context with the
// given mix format on Init
func NewManager(sampleRate, channels int) *Manager {
	return &Manager{
		format:  audio.Format{SampleRate: sampleRate, Channels: channels},
		sources: make(map[*Source]struct{}),
	}
}

// Init creates the output context if absent, or resumes a suspended one.
// Idempotent; must complete before any source can start.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.otoCtx != nil {
		if m.suspended {
			if err := m.otoCtx.Resume(); err != nil {
				return fmt.Errorf("failed to resume audio context: %w", err)
			}
			m.suspended = false
		}
		m.ready = true
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   m.format.SampleRate,
		ChannelCount: m.format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create audio context: %w", err)
	}

	<-readyChan

	m.otoCtx = ctx
	m.ready = true
	m.startedAt = time.Now()

	log.Printf("Audio output initialized: %dHz, %d channels",
		m.format.SampleRate, m.format.Channels)

	return nil
}

// ContextTimeSec returns seconds elapsed on the output clock
func (m *Manager) ContextTimeSec() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.otoCtx == nil {
		return 0
	}
	return time.Since(m.startedAt).Seconds()
}

// CreateSource allocates a source node for the buffer with gain and pan
// applied at mix time. The source does not play until Start.
func (m *Manager) CreateSource(buf *audio.Buffer, params SourceParams) *Source {
	s := &Source{
		manager: m,
		reader:  newPCMReader(buf, m.format, params.Gain(), params.Pan),
	}

	m.mu.Lock()
	m.sources[s] = struct{}{}
	m.mu.Unlock()

	return s
}

// LiveSourceCount returns the number of allocated, not-yet-stopped sources
func (m *Manager) LiveSourceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources)
}

func (m *Manager) newPlayer(s *Source) *oto.Player {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ready || m.otoCtx == nil {
		return nil
	}
	return m.otoCtx.NewPlayer(s.reader)
}

func (m *Manager) unregister(s *Source) {
	m.mu.Lock()
	delete(m.sources, s)
	m.mu.Unlock()
}

// Close stops all live sources and suspends the output context. Init may
// be called again afterwards to bring up a fresh context.
func (m *Manager) Close() error {
	m.mu.Lock()
	live := make([]*Source, 0, len(m.sources))
	for s := range m.sources {
		live = append(live, s)
	}
	m.mu.Unlock()

	for _, s := range live {
		s.Stop()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.otoCtx == nil || !m.ready {
		return nil
	}

	if err := m.otoCtx.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend audio context: %w", err)
	}
	m.ready = false
	m.suspended = true

	return nil
}

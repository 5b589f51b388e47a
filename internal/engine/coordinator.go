// ABOUTME: Scheduling coordinator for timeline audio playback
// ABOUTME: Turns transport state changes into correctly-ordered audio-graph operations gated by generation tokens
package engine

import (
	"context"
	"log"
	"sync"

	"github.com/cutplane/playback-go/internal/graph"
	"github.com/cutplane/playback-go/internal/timeline"
	"github.com/cutplane/playback-go/internal/transport"
)

// sourceKey identifies a (track, clip) pair. At most one live source
// exists per key at any instant.
type sourceKey struct {
	trackID string
	clipID  string
}

type scheduledSource struct {
	generation  uint64
	source      Source
	place       timeline.ClipPlace
	clipAudio   timeline.AudioSettings
	trackVolume float64

	startedAtContextSec float64
	timelineAtStartSec  float64
}

// Coordinator observes transport state and the active sequence, and
// drives the loader and audio graph accordingly. Asynchronous load
// completions re-validate their captured generation token under the
// coordinator lock before any graph mutation.
type Coordinator struct {
	cfg    Config
	graph  AudioGraph
	loader BufferLoader

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	seq         *timeline.Sequence
	assets      map[string]timeline.Asset
	generation  uint64
	state       transport.State
	hasState    bool
	initialized bool
	closed      bool

	scheduled map[sourceKey]*scheduledSource
	// loading maps in-flight pairs to the generation their load was issued under
	loading map[sourceKey]uint64
	// failed remembers load failures per generation so a pair is retried
	// on the next seek/play/swap, not every frame
	failed map[sourceKey]uint64
}

// NewCoordinator creates a coordinator over the given graph and loader
func NewCoordinator(g AudioGraph, l BufferLoader, cfg Config) *Coordinator {
	if cfg.FrameIntervalSec <= 0 {
		cfg.FrameIntervalSec = DefaultConfig().FrameIntervalSec
	}
	if cfg.SeekToleranceFactor <= 0 {
		cfg.SeekToleranceFactor = DefaultConfig().SeekToleranceFactor
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		cfg:       cfg,
		graph:     g,
		loader:    l,
		ctx:       ctx,
		cancel:    cancel,
		scheduled: make(map[sourceKey]*scheduledSource),
		loading:   make(map[sourceKey]uint64),
		failed:    make(map[sourceKey]uint64),
	}
}

// InitAudio brings up the output context. Must complete once before any
// scheduling takes effect; safe to call again after a failure or Close.
func (c *Coordinator) InitAudio() error {
	if err := c.graph.Init(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.ctx, c.cancel = context.WithCancel(context.Background())
	}
	c.initialized = true
	c.closed = false
	c.mu.Unlock()

	return nil
}

// SetSequence swaps the active sequence and its asset registry. Only
// assets present in the registry are treated as audio-bearing. The swap
// invalidates all scheduled and in-flight work.
func (c *Coordinator) SetSequence(seq *timeline.Sequence, assets map[string]timeline.Asset) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq = seq
	c.assets = assets
	c.generation++
	c.failed = make(map[sourceKey]uint64)
	c.stopAllLocked()

	if c.initialized && c.hasState && c.state.IsPlaying {
		c.schedulePassLocked()
	}
}

// Observe is the single entry point for transport state changes. Normal
// progression leaves running sources alone; seeks invalidate and
// reschedule; pause tears down; volume and mute adjust live gains only.
func (c *Coordinator) Observe(state transport.State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	prev := c.state
	hadState := c.hasState
	c.state = state
	c.hasState = true

	if !c.initialized || c.seq == nil {
		return
	}

	if hadState && (state.Volume != prev.Volume || state.IsMuted != prev.IsMuted) {
		c.applyGainsLocked()
	}

	if !state.IsPlaying {
		if hadState && prev.IsPlaying {
			c.stopAllLocked()
		}
		return
	}

	if !hadState || !prev.IsPlaying {
		// pause -> play: old in-flight work is invalidated
		c.generation++
		c.stopAllLocked()
		c.schedulePassLocked()
		return
	}

	delta := state.CurrentTimeSec - prev.CurrentTimeSec
	if delta < 0 || delta > c.cfg.seekToleranceSec() {
		// seek: invalidate in-flight loads and out-of-window sources
		c.generation++
		c.stopInvalidatedLocked()
		c.schedulePassLocked()
		return
	}

	// normal progression: reap clips that ended, admit clips that began
	c.reapEndedLocked()
	c.schedulePassLocked()
}

// schedulePassLocked starts loads for audible, unscheduled clips
func (c *Coordinator) schedulePassLocked() {
	t := c.state.CurrentTimeSec

	for ti := range c.seq.Tracks {
		track := &c.seq.Tracks[ti]
		if track.Muted {
			continue
		}

		for ci := range track.Clips {
			clip := track.Clips[ci]
			if clip.Audio.Muted || !clip.Place.Contains(t) {
				continue
			}

			asset, ok := c.assets[clip.AssetID]
			if !ok {
				continue
			}

			key := sourceKey{trackID: track.ID, clipID: clip.ID}
			if _, ok := c.scheduled[key]; ok {
				continue
			}
			// A stale in-flight load is re-issued under the current
			// generation; its old completion discards itself.
			if gen, ok := c.loading[key]; ok && gen == c.generation {
				continue
			}
			if gen, ok := c.failed[key]; ok && gen == c.generation {
				continue
			}

			gen := c.generation
			c.loading[key] = gen
			go c.load(c.ctx, key, asset, clip, track.Volume, gen)
		}
	}
}

// load runs the fetch+decode and, on completion, re-validates the
// captured generation before mutating the graph. Stale completions are
// discarded silently; they are expected, not errors.
func (c *Coordinator) load(ctx context.Context, key sourceKey, asset timeline.Asset, clip timeline.Clip, trackVolume float64, gen uint64) {
	res, err := c.loader.Load(ctx, asset, gen)

	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.loading[key]; ok && cur == gen {
		delete(c.loading, key)
	}

	if c.closed || gen != c.generation || !c.state.IsPlaying {
		return
	}

	if err != nil {
		c.failed[key] = gen
		log.Printf("Audio load failed for clip %s: %v", key.clipID, err)
		return
	}

	t := c.state.CurrentTimeSec
	if !clip.Place.Contains(t) {
		return
	}
	if _, ok := c.scheduled[key]; ok {
		return
	}

	speed := clip.Speed
	if speed <= 0 {
		speed = 1
	}
	offset := (t-clip.Place.TimelineInSec)*speed + clip.Range.SourceInSec

	params := graph.SourceParams{
		TrackVolume:  trackVolume,
		ClipVolumeDb: clip.Audio.VolumeDb,
		Pan:          clip.Audio.Pan,
		Muted:        clip.Audio.Muted,
		MasterVolume: c.state.Volume,
		MasterMuted:  c.state.IsMuted,
	}

	src := c.graph.CreateSource(res.Buffer, params)
	now := c.graph.ContextTimeSec()
	src.Start(now, offset)

	c.scheduled[key] = &scheduledSource{
		generation:          gen,
		source:              src,
		place:               clip.Place,
		clipAudio:           clip.Audio,
		trackVolume:         trackVolume,
		startedAtContextSec: now,
		timelineAtStartSec:  t,
	}
}

// stopInvalidatedLocked stops sources whose window no longer contains the
// playhead. The start edge gets the seek tolerance so a small backward
// nudge near a clip boundary doesn't restart the clip.
func (c *Coordinator) stopInvalidatedLocked() {
	t := c.state.CurrentTimeSec
	tol := c.cfg.seekToleranceSec()

	for key, s := range c.scheduled {
		if t < s.place.TimelineInSec-tol || t >= s.place.TimelineOutSec() {
			s.source.Stop()
			delete(c.scheduled, key)
		}
	}
}

// reapEndedLocked stops sources whose clip the playhead has progressed past
func (c *Coordinator) reapEndedLocked() {
	t := c.state.CurrentTimeSec

	for key, s := range c.scheduled {
		if t >= s.place.TimelineOutSec() {
			s.source.Stop()
			delete(c.scheduled, key)
		}
	}
}

func (c *Coordinator) stopAllLocked() {
	for key, s := range c.scheduled {
		s.source.Stop()
		delete(c.scheduled, key)
	}
}

// applyGainsLocked pushes recomputed gains to live sources; no sources
// are created or destroyed
func (c *Coordinator) applyGainsLocked() {
	for _, s := range c.scheduled {
		params := graph.SourceParams{
			TrackVolume:  s.trackVolume,
			ClipVolumeDb: s.clipAudio.VolumeDb,
			Pan:          s.clipAudio.Pan,
			Muted:        s.clipAudio.Muted,
			MasterVolume: c.state.Volume,
			MasterMuted:  c.state.IsMuted,
		}
		s.source.SetGain(params.Gain())
	}
}

// LiveSourceCount returns the number of currently scheduled sources
func (c *Coordinator) LiveSourceCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.scheduled)
}

// AudioTimeSec estimates the timeline position of the audio clock from
// the longest-running scheduled source. Falls back to the transport
// position when nothing is audible.
func (c *Coordinator) AudioTimeSec() float64 {
	c.mu.Lock()
	var oldest *scheduledSource
	for _, s := range c.scheduled {
		if oldest == nil || s.startedAtContextSec < oldest.startedAtContextSec {
			oldest = s
		}
	}
	fallback := c.state.CurrentTimeSec
	rate := c.state.PlaybackRate
	c.mu.Unlock()

	if oldest == nil {
		return fallback
	}
	if rate <= 0 {
		rate = 1
	}
	elapsed := c.graph.ContextTimeSec() - oldest.startedAtContextSec
	return oldest.timelineAtStartSec + elapsed*rate
}

// Close stops all sources and tears down the output context. InitAudio
// may be called again afterwards.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.initialized = false
	c.generation++
	c.stopAllLocked()
	c.mu.Unlock()

	c.cancel()
	return c.graph.Close()
}

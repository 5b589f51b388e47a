// ABOUTME: Session-scoped playback performance monitor
// ABOUTME: Aggregates frame timings, A/V drift samples, and cache pressure into SessionStats
package monitor

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/mem"
)

// Severity classifies a drift event
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// DriftEvent records one observed A/V divergence above the sync threshold
type DriftEvent struct {
	Timestamp    time.Time
	VideoTimeSec float64
	AudioTimeSec float64
	DriftMs      float64
	Severity     Severity
}

// CacheStats is the read-only view of an external buffer cache
type CacheStats struct {
	EntryCount     int
	MaxEntries     int
	TotalSizeBytes int64
	HitRate        float64
}

// StatsProvider supplies cache and fetch statistics owned elsewhere
type StatsProvider interface {
	CacheStats() CacheStats
	AvgFetchLatencyMs() float64
}

// FrameStats summarizes the render loop for one session
type FrameStats struct {
	Rendered        uint64
	Dropped         uint64
	DropRate        float64
	AvgRenderTimeMs float64
	MaxRenderTimeMs float64
}

// DriftStats summarizes the drift-sample window
type DriftStats struct {
	AvgDriftMs float64
	MaxDriftMs float64
	Events     int
}

// SessionStats is an immutable snapshot of a monitoring session
type SessionStats struct {
	SessionID            string
	StartedAt            time.Time
	DurationSec          float64
	Frames               FrameStats
	Drift                DriftStats
	Cache                CacheStats
	AvgFetchLatencyMs    float64
	MemoryPressureEvents uint64
}

// Config holds monitoring policy thresholds
type Config struct {
	// Drift below this is in sync, above it is a warning
	SyncThresholdSec float64
	// Drift above this is critical and requests a correction
	MaxDriftSec float64
	// Rolling window capacity for render times and drift samples
	WindowSize int
	// Minimum wall-clock spacing between drift checks
	DriftCheckInterval time.Duration
	// Cache fill ratio above which a pressure event is counted
	CachePressureRatio float64
	// Also sample system memory on pressure checks
	SampleSystemMemory bool
}

// DefaultConfig returns thresholds for a 30fps render loop
func DefaultConfig() Config {
	return Config{
		SyncThresholdSec:   0.05,
		MaxDriftSec:        0.2,
		WindowSize:         60,
		DriftCheckInterval: 100 * time.Millisecond,
		CachePressureRatio: 0.9,
	}
}

// Monitor accumulates playback performance signals for one session at a
// time. All methods are no-ops while no session is active, except Stats
// which is answerable at any time. Safe for concurrent use: the render
// loop records while the remote bridge reads snapshots.
type Monitor struct {
	cfg   Config
	stats StatsProvider

	// injectable clock for rate-limit behavior
	now func() time.Time

	mu sync.Mutex

	active    bool
	sessionID string
	startedAt time.Time
	stoppedAt time.Time

	framesRendered uint64
	framesDropped  uint64
	renderTimes    *rollingWindow

	driftSamples   *rollingWindow
	driftEvents    []DriftEvent
	lastDriftCheck time.Time

	memoryPressureEvents uint64
}

// NewMonitor creates an inactive monitor. The stats provider may be nil
// when no cache subsystem is attached.
func NewMonitor(cfg Config, stats StatsProvider) *Monitor {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	if cfg.DriftCheckInterval <= 0 {
		cfg.DriftCheckInterval = DefaultConfig().DriftCheckInterval
	}

	return &Monitor{
		cfg:          cfg,
		stats:        stats,
		now:          time.Now,
		renderTimes:  newRollingWindow(cfg.WindowSize),
		driftSamples: newRollingWindow(cfg.WindowSize),
	}
}

// Start begins a fresh session, clearing all prior counters and events
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearLocked()
	m.active = true
	m.sessionID = uuid.New().String()
	m.startedAt = m.now()
	log.Printf("Monitor session %s started", m.sessionID)
}

// Stop ends the session and returns its final stats. Counters are
// frozen at their stop-time values until the next Start.
func (m *Monitor) Stop() SessionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		m.active = false
		m.stoppedAt = m.now()
	}
	return m.statsLocked()
}

// Active reports whether a session is in progress
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// RecordFrame notes one rendered frame and its render time
func (m *Monitor) RecordFrame(renderTimeMs float64, wasDropped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active || math.IsNaN(renderTimeMs) {
		return
	}
	m.framesRendered++
	if wasDropped {
		m.framesDropped++
	}
	m.renderTimes.Push(renderTimeMs)
}

// RecordDroppedFrames adds to the dropped counter for batched reporting
func (m *Monitor) RecordDroppedFrames(count uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return
	}
	m.framesDropped += count
}

// CheckDrift samples the A/V clock divergence. Calls within the
// rate-limit window are ignored. Returns true when the drift is large
// enough that the caller should apply a correction.
func (m *Monitor) CheckDrift(videoTimeSec, audioTimeSec float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return false
	}
	if math.IsNaN(videoTimeSec) || math.IsNaN(audioTimeSec) {
		return false
	}

	now := m.now()
	if !m.lastDriftCheck.IsZero() && now.Sub(m.lastDriftCheck) < m.cfg.DriftCheckInterval {
		return false
	}
	m.lastDriftCheck = now

	driftSec := math.Abs(videoTimeSec - audioTimeSec)
	driftMs := driftSec * 1000
	m.driftSamples.Push(driftMs)

	if driftSec > m.cfg.MaxDriftSec {
		m.appendEvent(now, videoTimeSec, audioTimeSec, driftMs, SeverityCritical)
		log.Printf("Critical A/V drift %.1fms (video %.3fs audio %.3fs)", driftMs, videoTimeSec, audioTimeSec)
		return true
	}
	if driftSec > m.cfg.SyncThresholdSec {
		m.appendEvent(now, videoTimeSec, audioTimeSec, driftMs, SeverityWarning)
		return false
	}
	return false
}

func (m *Monitor) appendEvent(ts time.Time, videoSec, audioSec, driftMs float64, sev Severity) {
	m.driftEvents = append(m.driftEvents, DriftEvent{
		Timestamp:    ts,
		VideoTimeSec: videoSec,
		AudioTimeSec: audioSec,
		DriftMs:      driftMs,
		Severity:     sev,
	})
}

// CheckMemoryPressure samples the cache fill ratio and, when enabled,
// system memory usage. Crossing either threshold counts one event.
func (m *Monitor) CheckMemoryPressure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return
	}

	if m.stats != nil {
		cs := m.stats.CacheStats()
		if cs.MaxEntries > 0 {
			ratio := float64(cs.EntryCount) / float64(cs.MaxEntries)
			if ratio > m.cfg.CachePressureRatio {
				m.memoryPressureEvents++
				log.Printf("Cache pressure: %d/%d entries", cs.EntryCount, cs.MaxEntries)
				return
			}
		}
	}

	if m.cfg.SampleSystemMemory {
		vm, err := mem.VirtualMemory()
		if err != nil {
			log.Printf("Memory sample failed: %v", err)
			return
		}
		if vm.UsedPercent > 90 {
			m.memoryPressureEvents++
			log.Printf("System memory pressure: %.1f%% used", vm.UsedPercent)
		}
	}
}

// Events returns a copy of the session's drift event log
func (m *Monitor) Events() []DriftEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]DriftEvent, len(m.driftEvents))
	copy(out, m.driftEvents)
	return out
}

// Stats derives a snapshot from the current counters and windows
func (m *Monitor) Stats() SessionStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statsLocked()
}

func (m *Monitor) statsLocked() SessionStats {
	s := SessionStats{
		SessionID: m.sessionID,
		StartedAt: m.startedAt,
		Frames: FrameStats{
			Rendered:        m.framesRendered,
			Dropped:         m.framesDropped,
			AvgRenderTimeMs: m.renderTimes.Avg(),
			MaxRenderTimeMs: m.renderTimes.Max(),
		},
		Drift: DriftStats{
			AvgDriftMs: m.driftSamples.Avg(),
			MaxDriftMs: m.driftSamples.Max(),
			Events:     len(m.driftEvents),
		},
		MemoryPressureEvents: m.memoryPressureEvents,
	}

	if m.framesRendered > 0 {
		s.Frames.DropRate = float64(m.framesDropped) / float64(m.framesRendered)
	}

	if !m.startedAt.IsZero() {
		end := m.now()
		if !m.active && !m.stoppedAt.IsZero() {
			end = m.stoppedAt
		}
		s.DurationSec = end.Sub(m.startedAt).Seconds()
	}

	if m.stats != nil {
		s.Cache = m.stats.CacheStats()
		s.AvgFetchLatencyMs = m.stats.AvgFetchLatencyMs()
	}

	return s
}

// Reset clears counters, windows, and events without changing the
// active state or session identity
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

func (m *Monitor) resetLocked() {
	m.framesRendered = 0
	m.framesDropped = 0
	m.renderTimes.Clear()
	m.driftSamples.Clear()
	m.driftEvents = nil
	m.lastDriftCheck = time.Time{}
	m.memoryPressureEvents = 0
}

func (m *Monitor) clearLocked() {
	m.resetLocked()
	m.sessionID = ""
	m.startedAt = time.Time{}
	m.stoppedAt = time.Time{}
}

// ABOUTME: Engine interfaces and configuration
// ABOUTME: Defines the graph/loader seams the coordinator drives
package engine

import (
	"context"

	"github.com/cutplane/playback-go/internal/audio"
	"github.com/cutplane/playback-go/internal/graph"
	"github.com/cutplane/playback-go/internal/loader"
	"github.com/cutplane/playback-go/internal/timeline"
)

// Config holds scheduling policy constants. The seek tolerance absorbs
// render-loop timer jitter: playhead advances up to
// FrameIntervalSec*SeekToleranceFactor count as normal progression,
// anything else is a seek.
type Config struct {
	FrameIntervalSec    float64
	SeekToleranceFactor float64
}

// DefaultConfig returns scheduling defaults for a 30fps render loop
func DefaultConfig() Config {
	return Config{
		FrameIntervalSec:    1.0 / 30.0,
		SeekToleranceFactor: 4.0,
	}
}

func (c Config) seekToleranceSec() float64 {
	return c.FrameIntervalSec * c.SeekToleranceFactor
}

// Source is a live audio-graph voice for one clip
type Source interface {
	Start(whenContextTimeSec, offsetSec float64)
	Stop()
	SetGain(gain float64)
	SetPan(pan float64)
}

// AudioGraph abstracts the output-graph manager so scheduling decisions
// can be tested against a fake
type AudioGraph interface {
	Init() error
	ContextTimeSec() float64
	CreateSource(buf *audio.Buffer, params graph.SourceParams) Source
	Close() error
}

// BufferLoader abstracts the asset audio loader
type BufferLoader interface {
	Load(ctx context.Context, asset timeline.Asset, generation uint64) (loader.Result, error)
}

// managerGraph adapts *graph.Manager to the AudioGraph interface
type managerGraph struct {
	m *graph.Manager
}

// WrapGraph adapts a concrete graph manager for the coordinator
func WrapGraph(m *graph.Manager) AudioGraph {
	return managerGraph{m: m}
}

func (g managerGraph) Init() error             { return g.m.Init() }
func (g managerGraph) ContextTimeSec() float64 { return g.m.ContextTimeSec() }
func (g managerGraph) Close() error            { return g.m.Close() }
func (g managerGraph) CreateSource(buf *audio.Buffer, params graph.SourceParams) Source {
	return g.m.CreateSource(buf, params)
}

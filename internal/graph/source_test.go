// ABOUTME: Tests for graph sources and mix math
// ABOUTME: Tests gain formula, PCM reader conversion, and stop idempotence
package graph

import (
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/cutplane/playback-go/internal/audio"
)

func TestSourceParamsGain(t *testing.T) {
	p := SourceParams{TrackVolume: 0.5, ClipVolumeDb: 0, MasterVolume: 1}
	if got := p.Gain(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("expected gain 0.5, got %f", got)
	}

	p = SourceParams{TrackVolume: 1, ClipVolumeDb: -6, MasterVolume: 0.5}
	want := audio.DBToLinear(-6) * 0.5
	if got := p.Gain(); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected gain %f, got %f", want, got)
	}

	p = SourceParams{TrackVolume: 1, MasterVolume: 1, Muted: true}
	if got := p.Gain(); got != 0 {
		t.Errorf("expected muted clip gain 0, got %f", got)
	}

	p = SourceParams{TrackVolume: 1, MasterVolume: 1, MasterMuted: true}
	if got := p.Gain(); got != 0 {
		t.Errorf("expected master-muted gain 0, got %f", got)
	}
}

func constBuffer(value float32, frames, channels, rate int) *audio.Buffer {
	samples := make([]float32, frames*channels)
	for i := range samples {
		samples[i] = value
	}
	return &audio.Buffer{
		Format:  audio.Format{SampleRate: rate, Channels: channels},
		Samples: samples,
	}
}

func readFrames(t *testing.T, r *pcmReader, frames int) []int16 {
	t.Helper()

	p := make([]byte, frames*4)
	n, err := r.Read(p)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}

	out := make([]int16, n/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(p[i*2:]))
	}
	return out
}

func TestPCMReaderMonoUpmix(t *testing.T) {
	buf := constBuffer(0.5, 100, 1, 48000)
	r := newPCMReader(buf, audio.Format{SampleRate: 48000, Channels: 2}, 1.0, 0)

	out := readFrames(t, r, 10)
	if len(out) != 20 {
		t.Fatalf("expected 20 samples, got %d", len(out))
	}

	// Center pan: both channels at 0.5 * cos(45°)
	want := int16(0.5 * math.Sqrt2 / 2 * 32767)
	for i, s := range out {
		if s < want-2 || s > want+2 {
			t.Fatalf("sample %d: expected ~%d, got %d", i, want, s)
		}
	}
}

func TestPCMReaderPanHardLeft(t *testing.T) {
	buf := constBuffer(0.5, 100, 2, 48000)
	r := newPCMReader(buf, audio.Format{SampleRate: 48000, Channels: 2}, 1.0, -1)

	out := readFrames(t, r, 4)
	for i := 0; i+1 < len(out); i += 2 {
		if out[i] == 0 {
			t.Errorf("frame %d: expected signal on left channel", i/2)
		}
		if out[i+1] != 0 {
			t.Errorf("frame %d: expected silence on right channel, got %d", i/2, out[i+1])
		}
	}
}

func TestPCMReaderSeekAndEOF(t *testing.T) {
	// 1 second at 1kHz mono: 1000 frames
	buf := constBuffer(0.25, 1000, 1, 1000)
	r := newPCMReader(buf, audio.Format{SampleRate: 1000, Channels: 2}, 1.0, 0)

	// Seek to 0.9s: 100 frames remain
	r.seek(0.9)

	p := make([]byte, 4096)
	n, err := r.Read(p)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}
	if n != 100*4 {
		t.Errorf("expected 400 bytes after seek, got %d", n)
	}

	if _, err := r.Read(p); err != io.EOF {
		t.Errorf("expected EOF at end of buffer, got %v", err)
	}
}

func TestPCMReaderLiveGainChange(t *testing.T) {
	buf := constBuffer(0.5, 1000, 1, 48000)
	r := newPCMReader(buf, audio.Format{SampleRate: 48000, Channels: 2}, 1.0, 0)

	before := readFrames(t, r, 4)
	r.setGain(0)
	after := readFrames(t, r, 4)

	if before[0] == 0 {
		t.Error("expected audible output before gain change")
	}
	for i, s := range after {
		if s != 0 {
			t.Errorf("sample %d: expected silence after gain 0, got %d", i, s)
		}
	}
}

func TestPCMReaderResampleStep(t *testing.T) {
	// 24kHz buffer into a 48kHz context: half a buffer frame per output frame
	buf := constBuffer(0.1, 100, 1, 24000)
	r := newPCMReader(buf, audio.Format{SampleRate: 48000, Channels: 2}, 1.0, 0)

	if math.Abs(r.step-0.5) > 1e-9 {
		t.Errorf("expected resample step 0.5, got %f", r.step)
	}
}

func TestSourceStopIdempotent(t *testing.T) {
	m := NewManager(48000, 2)
	buf := constBuffer(0.5, 100, 2, 48000)

	s := m.CreateSource(buf, SourceParams{TrackVolume: 1, MasterVolume: 1})
	if m.LiveSourceCount() != 1 {
		t.Fatalf("expected 1 live source, got %d", m.LiveSourceCount())
	}

	s.Stop()
	s.Stop() // second stop is a no-op
	if m.LiveSourceCount() != 0 {
		t.Errorf("expected 0 live sources after stop, got %d", m.LiveSourceCount())
	}
}

func TestStartAfterStopIsNoop(t *testing.T) {
	m := NewManager(48000, 2)
	buf := constBuffer(0.5, 100, 2, 48000)

	s := m.CreateSource(buf, SourceParams{TrackVolume: 1, MasterVolume: 1})
	s.Stop()

	// Starting a stopped source must not resurrect it
	s.Start(0, 0)
	if m.LiveSourceCount() != 0 {
		t.Errorf("expected stopped source to stay stopped")
	}
}

// ABOUTME: Tests for audio types and gain math
// ABOUTME: Tests dB conversion, pan law, and sample clamping
package audio

import (
	"math"
	"testing"
)

func TestDBToLinear(t *testing.T) {
	if got := DBToLinear(0); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected 0dB = 1.0, got %f", got)
	}

	if got := DBToLinear(-6); math.Abs(got-0.5011872) > 1e-4 {
		t.Errorf("expected -6dB ~= 0.501, got %f", got)
	}

	if got := DBToLinear(6); math.Abs(got-1.9952623) > 1e-4 {
		t.Errorf("expected +6dB ~= 1.995, got %f", got)
	}

	// -60dB is the floor of the clip volume range
	if got := DBToLinear(-60); math.Abs(got-0.001) > 1e-9 {
		t.Errorf("expected -60dB = 0.001, got %f", got)
	}
}

func TestPanGainsCenter(t *testing.T) {
	l, r := PanGains(0)

	// Equal power: both channels at cos(45°)
	expected := math.Sqrt(2) / 2
	if math.Abs(l-expected) > 1e-9 || math.Abs(r-expected) > 1e-9 {
		t.Errorf("expected center pan %f/%f, got %f/%f", expected, expected, l, r)
	}
}

func TestPanGainsExtremes(t *testing.T) {
	l, r := PanGains(-1)
	if math.Abs(l-1) > 1e-9 || math.Abs(r) > 1e-9 {
		t.Errorf("expected full left 1/0, got %f/%f", l, r)
	}

	l, r = PanGains(1)
	if math.Abs(l) > 1e-9 || math.Abs(r-1) > 1e-9 {
		t.Errorf("expected full right 0/1, got %f/%f", l, r)
	}

	// Out-of-range values clamp
	l1, r1 := PanGains(-5)
	l2, r2 := PanGains(-1)
	if l1 != l2 || r1 != r2 {
		t.Error("expected pan below -1 to clamp to -1")
	}
}

func TestSampleToInt16Clamping(t *testing.T) {
	if got := SampleToInt16(0); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := SampleToInt16(2.0); got != 32767 {
		t.Errorf("expected clamp to 32767, got %d", got)
	}
	if got := SampleToInt16(-2.0); got != -32768 {
		t.Errorf("expected clamp to -32768, got %d", got)
	}
}

func TestBufferDuration(t *testing.T) {
	// 1 second of stereo at 48kHz
	buf := &Buffer{
		Format:  Format{SampleRate: 48000, Channels: 2},
		Samples: make([]float32, 96000),
	}

	if got := buf.FrameCount(); got != 48000 {
		t.Errorf("expected 48000 frames, got %d", got)
	}
	if got := buf.DurationSec(); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected 1s duration, got %f", got)
	}
	if got := buf.SizeBytes(); got != 384000 {
		t.Errorf("expected 384000 bytes, got %d", got)
	}

	empty := &Buffer{}
	if empty.DurationSec() != 0 || empty.FrameCount() != 0 {
		t.Error("expected zero-value buffer to report zero duration")
	}
}

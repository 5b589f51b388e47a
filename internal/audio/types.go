// ABOUTME: Audio type definitions
// ABOUTME: Defines PCM formats, decoded buffers, and gain/pan math
package audio

import "math"

// Format describes PCM stream format
type Format struct {
	SampleRate int
	Channels   int
}

// Buffer represents decoded PCM for one asset, interleaved float32
// in [-1, 1]. Immutable once produced.
type Buffer struct {
	Format  Format
	Samples []float32
}

// FrameCount returns the number of sample frames in the buffer
func (b *Buffer) FrameCount() int {
	if b.Format.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// DurationSec returns the buffer duration in seconds
func (b *Buffer) DurationSec() float64 {
	if b.Format.SampleRate == 0 {
		return 0
	}
	return float64(b.FrameCount()) / float64(b.Format.SampleRate)
}

// SizeBytes returns the in-memory size of the sample data
func (b *Buffer) SizeBytes() int64 {
	return int64(len(b.Samples)) * 4
}

// DBToLinear converts a decibel volume to a linear gain multiplier
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// PanGains computes equal-power stereo gains for a pan position.
// pan is -1 (full left) to +1 (full right); 0 keeps both channels at
// equal power (cos/sin of 45°).
func PanGains(pan float64) (left, right float64) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	angle := (pan + 1) * math.Pi / 4
	return math.Cos(angle), math.Sin(angle)
}

// SampleToInt16 converts a float32 sample to int16 with clamping
func SampleToInt16(s float32) int16 {
	v := s * 32767
	if v > 32767 {
		v = 32767
	}
	if v < -32768 {
		v = -32768
	}
	return int16(v)
}

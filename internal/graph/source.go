// ABOUTME: Live audio source node with adjustable gain and pan
// ABOUTME: Streams buffer PCM to the output context from a scheduled offset
package graph

import (
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/cutplane/playback-go/internal/audio"
)

// Source is a single scheduled clip voice. Created by Manager.CreateSource;
// starts playing on Start and is torn down by Stop. Stop is idempotent.
type Source struct {
	manager *Manager
	reader  *pcmReader

	mu      sync.Mutex
	player  *oto.Player
	timer   *time.Timer
	started bool
	stopped bool
}

// Start schedules playback to begin at the given output-clock time,
// reading from offsetSec into the buffer. A start time in the past
// begins immediately.
func (s *Source) Start(whenContextTimeSec, offsetSec float64) {
	s.reader.seek(offsetSec)

	delay := time.Duration((whenContextTimeSec - s.manager.ContextTimeSec()) * float64(time.Second))
	if delay <= 0 {
		s.startNow()
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.timer = time.AfterFunc(delay, s.startNow)
	s.mu.Unlock()
}

func (s *Source) startNow() {
	s.mu.Lock()
	if s.stopped || s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	player := s.manager.newPlayer(s)
	if player == nil {
		// Context was closed between scheduling and start
		s.Stop()
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		player.Close()
		return
	}
	s.player = player
	s.mu.Unlock()

	player.Play()
}

// Stop halts playback and disconnects the source. Safe to call multiple
// times; calls after the first are no-ops.
func (s *Source) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	timer := s.timer
	player := s.player
	s.timer = nil
	s.player = nil
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if player != nil {
		player.Close()
	}

	s.manager.unregister(s)
}

// SetGain adjusts the live gain without rebuilding the source
func (s *Source) SetGain(gain float64) {
	s.reader.setGain(gain)
}

// SetPan adjusts the live pan position without rebuilding the source
func (s *Source) SetPan(pan float64) {
	s.reader.setPan(pan)
}

// pcmReader streams a decoded buffer as signed 16-bit little-endian PCM
// in the output format, applying gain and equal-power pan per frame.
// Mono buffers are upmixed; buffers at a different sample rate are
// linearly resampled to the output rate.
type pcmReader struct {
	buf *audio.Buffer
	out audio.Format

	mu   sync.Mutex
	gain float64
	pan  float64
	// fractional read position in buffer frames
	pos float64
	// buffer frames advanced per output frame
	step float64
}

func newPCMReader(buf *audio.Buffer, out audio.Format, gain, pan float64) *pcmReader {
	step := 1.0
	if buf.Format.SampleRate != 0 && out.SampleRate != 0 {
		step = float64(buf.Format.SampleRate) / float64(out.SampleRate)
	}

	return &pcmReader{
		buf:  buf,
		out:  out,
		gain: gain,
		pan:  pan,
		step: step,
	}
}

func (r *pcmReader) seek(offsetSec float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if offsetSec < 0 {
		offsetSec = 0
	}
	r.pos = offsetSec * float64(r.buf.Format.SampleRate)
}

func (r *pcmReader) setGain(gain float64) {
	r.mu.Lock()
	r.gain = gain
	r.mu.Unlock()
}

func (r *pcmReader) setPan(pan float64) {
	r.mu.Lock()
	r.pan = pan
	r.mu.Unlock()
}

// frameAt returns the left/right samples at a fractional frame position,
// linearly interpolated between neighboring frames
func (r *pcmReader) frameAt(pos float64) (left, right float32) {
	frames := r.buf.FrameCount()
	i := int(pos)
	if i >= frames {
		return 0, 0
	}

	frac := float32(pos - float64(i))
	l0, r0 := r.rawFrame(i)
	l1, r1 := l0, r0
	if i+1 < frames {
		l1, r1 = r.rawFrame(i + 1)
	}

	return l0 + (l1-l0)*frac, r0 + (r1-r0)*frac
}

func (r *pcmReader) rawFrame(i int) (left, right float32) {
	ch := r.buf.Format.Channels
	base := i * ch
	switch {
	case ch == 1:
		s := r.buf.Samples[base]
		return s, s
	default:
		return r.buf.Samples[base], r.buf.Samples[base+1]
	}
}

// Read implements io.Reader for the oto player
func (r *pcmReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	gain := r.gain
	pan := r.pan
	pos := r.pos
	r.mu.Unlock()

	panL, panR := audio.PanGains(pan)
	frames := r.buf.FrameCount()
	bytesPerFrame := r.out.Channels * 2

	n := 0
	for n+bytesPerFrame <= len(p) {
		if pos >= float64(frames) {
			break
		}

		l, rr := r.frameAt(pos)
		l *= float32(gain * panL)
		rr *= float32(gain * panR)

		if r.out.Channels == 1 {
			mono := audio.SampleToInt16((l + rr) / 2)
			p[n] = byte(mono)
			p[n+1] = byte(mono >> 8)
		} else {
			ls := audio.SampleToInt16(l)
			rs := audio.SampleToInt16(rr)
			p[n] = byte(ls)
			p[n+1] = byte(ls >> 8)
			p[n+2] = byte(rs)
			p[n+3] = byte(rs >> 8)
			for c := 2; c < r.out.Channels; c++ {
				p[n+c*2] = 0
				p[n+c*2+1] = 0
			}
		}

		pos += r.step
		n += bytesPerFrame
	}

	r.mu.Lock()
	r.pos = pos
	r.mu.Unlock()

	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

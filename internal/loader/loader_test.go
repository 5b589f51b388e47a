// ABOUTME: Tests for the asset audio loader
// ABOUTME: Tests fetch/decode paths, cache behavior, and generation passthrough
package loader

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cutplane/playback-go/internal/timeline"
)

// writeTestWAV writes one second of a 440Hz sine, 16-bit mono 8kHz
func writeTestWAV(t *testing.T, path string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	const rate = 8000
	enc := wav.NewEncoder(f, rate, 16, 1, 1)

	data := make([]int, rate)
	for i := range data {
		data[i] = int(16000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}

	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}
}

func testAsset(t *testing.T, id string) timeline.Asset {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	writeTestWAV(t, path)

	asset := timeline.NewAsset(path, "")
	asset.ID = id
	return asset
}

func TestLoadWAV(t *testing.T) {
	l := New(DefaultConfig())
	asset := testAsset(t, "a1")

	res, err := l.Load(context.Background(), asset, 7)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if res.Generation != 7 {
		t.Errorf("expected generation 7 carried through, got %d", res.Generation)
	}
	if res.AssetID != "a1" {
		t.Errorf("expected asset id a1, got %s", res.AssetID)
	}
	if res.Buffer.Format.SampleRate != 8000 || res.Buffer.Format.Channels != 1 {
		t.Errorf("unexpected format: %+v", res.Buffer.Format)
	}
	if d := res.Buffer.DurationSec(); math.Abs(d-1.0) > 0.01 {
		t.Errorf("expected ~1s buffer, got %f", d)
	}
}

func TestLoadCacheHit(t *testing.T) {
	l := New(DefaultConfig())
	asset := testAsset(t, "a1")

	first, err := l.Load(context.Background(), asset, 1)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	// Remove the file; a cache hit must not touch disk
	if err := os.Remove(asset.URI); err != nil {
		t.Fatalf("remove: %v", err)
	}

	second, err := l.Load(context.Background(), asset, 2)
	if err != nil {
		t.Fatalf("cached load failed: %v", err)
	}
	if second.Buffer != first.Buffer {
		t.Error("expected cached load to return the same buffer")
	}
	if second.Generation != 2 {
		t.Errorf("expected fresh generation 2 on cached load, got %d", second.Generation)
	}

	stats := l.CacheStats()
	if stats.EntryCount != 1 {
		t.Errorf("expected 1 cache entry, got %d", stats.EntryCount)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %f", stats.HitRate)
	}
	if stats.TotalSizeBytes != first.Buffer.SizeBytes() {
		t.Errorf("expected cache size %d, got %d", first.Buffer.SizeBytes(), stats.TotalSizeBytes)
	}
}

func TestLoadFetchError(t *testing.T) {
	l := New(DefaultConfig())
	asset := timeline.NewAsset("/nonexistent/path.wav", "")

	_, err := l.Load(context.Background(), asset, 1)
	if !errors.Is(err, ErrFetch) {
		t.Errorf("expected ErrFetch, got %v", err)
	}
}

func TestLoadDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("not audio data at all"), 0644); err != nil {
		t.Fatalf("write junk: %v", err)
	}

	l := New(DefaultConfig())
	_, err := l.Load(context.Background(), timeline.NewAsset(path, ""), 1)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestLoadUnsupportedCodec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.xyz")
	writeTestWAV(t, path)

	l := New(DefaultConfig())
	_, err := l.Load(context.Background(), timeline.NewAsset(path, ""), 1)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode for unknown extension, got %v", err)
	}
}

func TestCacheEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCacheEntries = 2
	l := New(cfg)

	for _, id := range []string{"a1", "a2", "a3"} {
		asset := testAsset(t, id)
		if _, err := l.Load(context.Background(), asset, 1); err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
	}

	stats := l.CacheStats()
	if stats.EntryCount != 2 {
		t.Errorf("expected 2 entries after eviction, got %d", stats.EntryCount)
	}

	l.mu.Lock()
	_, a1Present := l.entries["a1"]
	_, a3Present := l.entries["a3"]
	l.mu.Unlock()

	if a1Present {
		t.Error("expected oldest entry a1 to be evicted")
	}
	if !a3Present {
		t.Error("expected newest entry a3 to be cached")
	}
}

func TestEvict(t *testing.T) {
	l := New(DefaultConfig())
	asset := testAsset(t, "a1")

	if _, err := l.Load(context.Background(), asset, 1); err != nil {
		t.Fatalf("load: %v", err)
	}

	l.Evict("a1")
	if stats := l.CacheStats(); stats.EntryCount != 0 {
		t.Errorf("expected empty cache after evict, got %d entries", stats.EntryCount)
	}

	// Evicting an unknown id is a no-op
	l.Evict("missing")
}

func TestCodecSniffing(t *testing.T) {
	cases := map[string]string{
		"song.WAV":  "wav",
		"song.mp3":  "mp3",
		"song.flac": "flac",
		"song.ogg":  "vorbis",
		"song.opus": "opus",
		"song.bin":  "",
	}
	for uri, want := range cases {
		if got := codecFor(timeline.Asset{URI: uri}); got != want {
			t.Errorf("codecFor(%s): expected %q, got %q", uri, want, got)
		}
	}

	// Explicit codec tag wins over the extension
	if got := codecFor(timeline.Asset{URI: "song.bin", Codec: "mp3"}); got != "mp3" {
		t.Errorf("expected explicit codec tag to win, got %q", got)
	}
}

func TestOpusChannelCount(t *testing.T) {
	// Minimal first-page shape: capture pattern, page header bytes,
	// then the OpusHead identification packet
	oggPage := func(channels byte) []byte {
		page := []byte("OggS\x00\x02")
		page = append(page, make([]byte, 21)...) // granule/serial/seq/crc/segments
		page = append(page, []byte("OpusHead")...)
		page = append(page, 1, channels) // version, channel count
		page = append(page, make([]byte, 9)...)
		return page
	}

	cases := []struct {
		name string
		data []byte
		want int
	}{
		{"mono", oggPage(1), 1},
		{"stereo", oggPage(2), 2},
		{"surround", oggPage(6), 6},
		{"zero channels falls back", oggPage(0), 2},
		{"no header falls back", []byte("OggS but no identification"), 2},
		{"truncated header falls back", []byte("OpusHead\x01"), 2},
	}

	for _, c := range cases {
		if got := opusChannelCount(c.data); got != c.want {
			t.Errorf("%s: expected %d channels, got %d", c.name, c.want, got)
		}
	}
}

func TestAvgFetchLatencyEmpty(t *testing.T) {
	l := New(DefaultConfig())
	if got := l.AvgFetchLatencyMs(); got != 0 {
		t.Errorf("expected 0 latency with no fetches, got %f", got)
	}
}

// ABOUTME: Asset audio loader with decode cache
// ABOUTME: Fetches asset bytes, decodes to PCM, and carries generation tokens back to the caller
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cutplane/playback-go/internal/audio"
	"github.com/cutplane/playback-go/internal/timeline"
)

var (
	// ErrFetch indicates the asset bytes could not be read
	ErrFetch = errors.New("asset fetch failed")
	// ErrDecode indicates the asset bytes could not be decoded to PCM
	ErrDecode = errors.New("asset decode failed")
)

// Result carries a decoded buffer together with the generation token the
// load was issued under, so the caller can discard stale completions.
type Result struct {
	AssetID    string
	Generation uint64
	Buffer     *audio.Buffer
}

// CacheStats is a snapshot of the decode cache
type CacheStats struct {
	EntryCount     int
	MaxEntries     int
	TotalSizeBytes int64
	HitRate        float64
}

// Config holds loader configuration
type Config struct {
	// MaxCacheEntries bounds the decode cache; oldest entries are evicted
	MaxCacheEntries int
	// HTTPTimeout applies to http(s) asset fetches
	HTTPTimeout time.Duration
}

// DefaultConfig returns the default loader configuration
func DefaultConfig() Config {
	return Config{
		MaxCacheEntries: 32,
		HTTPTimeout:     30 * time.Second,
	}
}

type cacheEntry struct {
	buffer *audio.Buffer
}

// Loader fetches and decodes asset audio. Stateless per call except for
// the decode cache; safe for concurrent use.
type Loader struct {
	cfg    Config
	client *http.Client

	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string // insertion order, oldest first
	hits    int64
	misses  int64

	fetchTotalMs float64
	fetchCount   int64
}

// New creates a loader
func New(cfg Config) *Loader {
	if cfg.MaxCacheEntries <= 0 {
		cfg.MaxCacheEntries = DefaultConfig().MaxCacheEntries
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = DefaultConfig().HTTPTimeout
	}

	return &Loader{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.HTTPTimeout},
		entries: make(map[string]*cacheEntry),
	}
}

// Load fetches and decodes the asset's audio, returning the decoded buffer
// tagged with the given generation token. Cached decodes are returned
// without I/O. Failures are wrapped ErrFetch/ErrDecode values; the caller
// decides when to retry.
func (l *Loader) Load(ctx context.Context, asset timeline.Asset, generation uint64) (Result, error) {
	l.mu.Lock()
	if entry, ok := l.entries[asset.ID]; ok {
		l.hits++
		l.mu.Unlock()
		return Result{AssetID: asset.ID, Generation: generation, Buffer: entry.buffer}, nil
	}
	l.misses++
	l.mu.Unlock()

	start := time.Now()
	data, err := l.fetch(ctx, asset.URI)
	if err != nil {
		return Result{AssetID: asset.ID, Generation: generation}, fmt.Errorf("%w: %s: %v", ErrFetch, asset.URI, err)
	}
	l.recordFetch(time.Since(start))

	buf, err := decode(data, codecFor(asset))
	if err != nil {
		return Result{AssetID: asset.ID, Generation: generation}, fmt.Errorf("%w: %s: %v", ErrDecode, asset.URI, err)
	}

	l.store(asset.ID, buf)

	return Result{AssetID: asset.ID, Generation: generation, Buffer: buf}, nil
}

// fetch reads the raw asset bytes from a file path or http(s) URL
func (l *Loader) fetch(ctx context.Context, uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}

	path := strings.TrimPrefix(uri, "file://")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func (l *Loader) store(assetID string, buf *audio.Buffer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[assetID]; ok {
		return
	}

	l.entries[assetID] = &cacheEntry{buffer: buf}
	l.order = append(l.order, assetID)

	for len(l.entries) > l.cfg.MaxCacheEntries {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.entries, oldest)
	}
}

func (l *Loader) recordFetch(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetchTotalMs += float64(d.Microseconds()) / 1000.0
	l.fetchCount++
}

// Evict drops a single asset's decoded buffer from the cache
func (l *Loader) Evict(assetID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[assetID]; !ok {
		return
	}
	delete(l.entries, assetID)
	for i, id := range l.order {
		if id == assetID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// CacheStats returns a snapshot of the decode cache
func (l *Loader) CacheStats() CacheStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	var size int64
	for _, e := range l.entries {
		size += e.buffer.SizeBytes()
	}

	var hitRate float64
	if total := l.hits + l.misses; total > 0 {
		hitRate = float64(l.hits) / float64(total)
	}

	return CacheStats{
		EntryCount:     len(l.entries),
		MaxEntries:     l.cfg.MaxCacheEntries,
		TotalSizeBytes: size,
		HitRate:        hitRate,
	}
}

// AvgFetchLatencyMs returns the mean raw-fetch latency across all loads
func (l *Loader) AvgFetchLatencyMs() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fetchCount == 0 {
		return 0
	}
	return l.fetchTotalMs / float64(l.fetchCount)
}

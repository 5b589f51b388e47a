// ABOUTME: StatsProvider adapter over the asset audio loader
// ABOUTME: Converts loader cache statistics into the monitor's view
package monitor

import "github.com/cutplane/playback-go/internal/loader"

// LoaderStats adapts a loader into a StatsProvider
type LoaderStats struct {
	Loader *loader.Loader
}

func (p LoaderStats) CacheStats() CacheStats {
	cs := p.Loader.CacheStats()
	return CacheStats{
		EntryCount:     cs.EntryCount,
		MaxEntries:     cs.MaxEntries,
		TotalSizeBytes: cs.TotalSizeBytes,
		HitRate:        cs.HitRate,
	}
}

func (p LoaderStats) AvgFetchLatencyMs() float64 {
	return p.Loader.AvgFetchLatencyMs()
}

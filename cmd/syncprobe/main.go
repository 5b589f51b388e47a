// ABOUTME: Headless A/V sync probe
// ABOUTME: Plays a timeline for a fixed duration and reports the session stats
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cutplane/playback-go/internal/engine"
	"github.com/cutplane/playback-go/internal/graph"
	"github.com/cutplane/playback-go/internal/loader"
	"github.com/cutplane/playback-go/internal/monitor"
	"github.com/cutplane/playback-go/internal/timeline"
	"github.com/cutplane/playback-go/internal/transport"
)

var (
	runSec     = flag.Float64("run-sec", 10, "Seconds to play before reporting")
	clipSec    = flag.Float64("clip-sec", 30, "Seconds of each file to place on the timeline")
	fps        = flag.Float64("fps", 30, "Render loop frame rate")
	sampleRate = flag.Int("sample-rate", 48000, "Audio output sample rate")
	sampleMem  = flag.Bool("sample-sysmem", false, "Also sample system memory in pressure checks")
)

func main() {
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <audio files...>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	seq := timeline.NewSequence("probe")
	track := timeline.NewTrack("Audio 1", timeline.TrackAudio)
	assets := make(map[string]timeline.Asset)

	at := 0.0
	for _, path := range flag.Args() {
		asset := timeline.NewAsset(path, "")
		assets[asset.ID] = asset
		track.Clips = append(track.Clips, timeline.NewClip(asset.ID, 0, *clipSec, at))
		at += *clipSec
	}
	seq.Tracks = append(seq.Tracks, track)

	tr := transport.New(seq.Duration())
	ldr := loader.New(loader.DefaultConfig())
	mgr := graph.NewManager(*sampleRate, 2)

	coord := engine.NewCoordinator(engine.WrapGraph(mgr), ldr, engine.DefaultConfig())
	if err := coord.InitAudio(); err != nil {
		log.Fatalf("Audio init failed: %v", err)
	}
	defer coord.Close()

	coord.SetSequence(seq, assets)
	tr.Subscribe(coord)

	monCfg := monitor.DefaultConfig()
	monCfg.SampleSystemMemory = *sampleMem
	mon := monitor.NewMonitor(monCfg, monitor.LoaderStats{Loader: ldr})
	mon.Start()

	fmt.Printf("Playing %d files for %.1fs...\n", flag.NArg(), *runSec)
	tr.Play()

	interval := time.Second / time.Duration(*fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	deadline := time.Now().Add(time.Duration(*runSec * float64(time.Second)))
	last := time.Now()
	frame := 0

	for now := range ticker.C {
		if now.After(deadline) {
			break
		}

		frameStart := time.Now()
		dt := now.Sub(last).Seconds()
		last = now

		tr.Advance(dt)

		state := tr.Snapshot()
		if state.IsPlaying {
			if mon.CheckDrift(state.CurrentTimeSec, coord.AudioTimeSec()) {
				log.Printf("Drift correction requested at t=%.2fs", state.CurrentTimeSec)
			}
		}

		renderMs := float64(time.Since(frameStart).Microseconds()) / 1000
		mon.RecordFrame(renderMs, dt > 2*interval.Seconds())

		frame++
		if frame%30 == 0 {
			mon.CheckMemoryPressure()
		}
	}

	tr.Pause()
	stats := mon.Stop()

	fmt.Println()
	fmt.Printf("Session:     %s (%.1fs)\n", stats.SessionID, stats.DurationSec)
	fmt.Printf("Frames:      %d rendered, %d dropped (%.2f%%)\n",
		stats.Frames.Rendered, stats.Frames.Dropped, stats.Frames.DropRate*100)
	fmt.Printf("Render time: %.2fms avg, %.2fms max\n",
		stats.Frames.AvgRenderTimeMs, stats.Frames.MaxRenderTimeMs)
	fmt.Printf("Drift:       %.1fms avg, %.1fms max, %d events\n",
		stats.Drift.AvgDriftMs, stats.Drift.MaxDriftMs, stats.Drift.Events)
	fmt.Printf("Cache:       %d/%d entries, %.0f%% hits, %.1fms avg fetch\n",
		stats.Cache.EntryCount, stats.Cache.MaxEntries, stats.Cache.HitRate*100, stats.AvgFetchLatencyMs)
}

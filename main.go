// ABOUTME: Entry point for the Cutplane timeline playback engine
// ABOUTME: Parses CLI flags, assembles the playback stack, and drives the render loop
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cutplane/playback-go/internal/engine"
	"github.com/cutplane/playback-go/internal/graph"
	"github.com/cutplane/playback-go/internal/loader"
	"github.com/cutplane/playback-go/internal/monitor"
	"github.com/cutplane/playback-go/internal/remote"
	"github.com/cutplane/playback-go/internal/timeline"
	"github.com/cutplane/playback-go/internal/transport"
	"github.com/cutplane/playback-go/internal/ui"
	"github.com/cutplane/playback-go/internal/version"
)

var (
	clipSec    = flag.Float64("clip-sec", 30, "Seconds of each file to place on the timeline")
	fps        = flag.Float64("fps", 30, "Render loop frame rate")
	sampleRate = flag.Int("sample-rate", 48000, "Audio output sample rate")
	remotePort = flag.Int("remote-port", 0, "WebSocket remote-control port (0 = disabled)")
	sampleMem  = flag.Bool("sample-sysmem", false, "Also sample system memory in pressure checks")
	logFile    = flag.String("log-file", "playback.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	autoplay   = flag.Bool("autoplay", false, "Start playing immediately")
)

func main() {
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <audio files...>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s %s", version.Product, version.Version)

	seq, assets := buildSequence(flag.Args(), *clipSec)
	tr := transport.New(seq.Duration())

	ldr := loader.New(loader.DefaultConfig())
	mgr := graph.NewManager(*sampleRate, 2)

	coord := engine.NewCoordinator(engine.WrapGraph(mgr), ldr, engine.Config{
		FrameIntervalSec:    1.0 / *fps,
		SeekToleranceFactor: 4.0,
	})
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
	defer mon.Stop()

	snapshot := func() remote.Snapshot {
		return remote.Snapshot{
			State:       tr.Snapshot(),
			Stats:       mon.Stats(),
			LiveSources: coord.LiveSourceCount(),
		}
	}

	status := func() ui.Status {
		return ui.Status{
			SequenceName: seq.Name,
			State:        tr.Snapshot(),
			Stats:        mon.Stats(),
			LiveSources:  coord.LiveSourceCount(),
			DurationSec:  seq.Duration(),
		}
	}

	var remoteSrv *remote.Server
	if *remotePort > 0 {
		remoteSrv = remote.New(remote.Config{Port: *remotePort}, tr, snapshot)
		go func() {
			if err := remoteSrv.Start(); err != nil {
				log.Printf("Remote control error: %v", err)
			}
		}()
	}

	var tui *ui.PlaybackTUI
	tuiErr := make(chan error, 1)
	if useTUI {
		tui = ui.NewPlaybackTUI()
		go func() {
			tuiErr <- tui.Start(seq.Name, seq.Duration(), tr)
		}()
	}

	if *autoplay {
		tr.Play()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	renderLoop(tr, coord, mon, tui, status, sigChan, tuiErr)

	if remoteSrv != nil {
		remoteSrv.Stop()
	}
	if tui != nil {
		tui.Stop()
	}

	final := mon.Stop()
	log.Printf("Session %s: %d frames, %.2f%% dropped, drift avg %.1fms max %.1fms",
		final.SessionID, final.Frames.Rendered, final.Frames.DropRate*100,
		final.Drift.AvgDriftMs, final.Drift.MaxDriftMs)
}

// renderLoop drives the transport clock and the drift monitor until a
// quit signal arrives
func renderLoop(tr *transport.Transport, coord *engine.Coordinator, mon *monitor.Monitor, tui *ui.PlaybackTUI, status func() ui.Status, sigChan <-chan os.Signal, tuiErr <-chan error) {
	interval := time.Second / time.Duration(*fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var quitChan <-chan struct{}
	if tui != nil {
		quitChan = tui.QuitChan()
	}

	last := time.Now()
	pressureTick := 0

	for {
		select {
		case <-sigChan:
			log.Printf("Received shutdown signal")
			return

		case <-quitChan:
			log.Printf("Quit requested")
			return

		case err := <-tuiErr:
			if err != nil {
				log.Printf("TUI error: %v", err)
			}
			return

		case now := <-ticker.C:
			frameStart := time.Now()
			dt := now.Sub(last).Seconds()
			last = now

			tr.Advance(dt)

			state := tr.Snapshot()
			if state.IsPlaying {
				mon.CheckDrift(state.CurrentTimeSec, coord.AudioTimeSec())
			}

			renderMs := float64(time.Since(frameStart).Microseconds()) / 1000
			dropped := dt > 2*interval.Seconds()
			mon.RecordFrame(renderMs, dropped)

			pressureTick++
			if pressureTick%30 == 0 {
				mon.CheckMemoryPressure()
			}

			if tui != nil {
				tui.Update(status())
			}
		}
	}
}

// buildSequence lays the given files end to end on one audio track
func buildSequence(files []string, clipSec float64) (*timeline.Sequence, map[string]timeline.Asset) {
	seq := timeline.NewSequence("session")
	track := timeline.NewTrack("Audio 1", timeline.TrackAudio)
	assets := make(map[string]timeline.Asset)

	at := 0.0
	for _, path := range files {
		asset := timeline.NewAsset(path, "")
		assets[asset.ID] = asset

		clip := timeline.NewClip(asset.ID, 0, clipSec, at)
		clip.ID = fmt.Sprintf("clip-%s", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		track.Clips = append(track.Clips, clip)

		at += clipSec
	}

	seq.Tracks = append(seq.Tracks, track)
	return seq, assets
}

package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/config"
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/encoder"
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/history"
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/library"
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/netcheck"
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/overlay"
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/playlist"
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/probe"
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/radio"
)

// exitNoTracks is the dedicated status for "library has no playable audio",
// so the process manager can tell missing content apart from a crash.
const exitNoTracks = 3

func main() {
	// 1. Parse Flags (overrides for config.yaml / LOFI_* env values)
	audioDir := flag.String("audio-dir", "", "Override the audio library directory")
	videoFile := flag.String("video", "", "Override the background video file")
	urlFile := flag.String("stream-url-file", "", "Override the stream URL file")
	skipNetCheck := flag.Bool("skip-network-check", false, "Skip RTMP reachability checks")
	debug := flag.Bool("debug", false, "Verbose status listener logging")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// 2. Load Config
	cfg := config.Load()

	// 3. Apply Flag Overrides
	if *audioDir != "" {
		cfg.Library.AudioDir = *audioDir
	}
	if *videoFile != "" {
		cfg.Video.File = *videoFile
	}
	if *urlFile != "" {
		cfg.Stream.URLFile = *urlFile
	}
	if *skipNetCheck {
		cfg.Stream.SkipNetworkCheck = true
	}

	// 4. Tee the log into the append-only file the dashboard tails
	if cfg.Server.LogFile != "" {
		f, err := os.OpenFile(cfg.Server.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("Cannot open log file %s: %v (console only)", cfg.Server.LogFile, err)
		} else {
			defer f.Close()
			log.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	log.Println("Starting Lofi Streamer...")

	// 5. Validate the stream destination once up front
	if _, err := cfg.ResolveStreamURL(); err != nil {
		log.Fatalf("No RTMP URL available: %v", err)
	}

	// 6. Init Infrastructure
	source, err := library.New(cfg)
	if err != nil {
		log.Fatalf("Library init failed: %v", err)
	}

	prober := probe.New(cfg.Encoder.FFprobePath, cfg.ProbeTimeout())
	deck := playlist.NewDeck(source, prober)

	checker := netcheck.New(cfg.Stream.CheckHost, cfg.Stream.CheckPort)
	checker.Skip = cfg.Stream.SkipNetworkCheck

	pub := overlay.NewPublisher(cfg.Overlay.TextFile)

	ledger, err := history.Open(cfg.History.Path)
	if err != nil {
		log.Printf("History ledger unavailable: %v (continuing without it)", err)
		ledger = nil
	}

	launcher := &radio.EncoderLauncher{Settings: encoder.SettingsFromConfig(cfg)}

	// 7. Metrics + Engine
	radio.RegisterMetrics()
	playlist.RegisterMetrics()

	engine := radio.New(cfg, deck, checker, launcher, pub, ledger)
	radio.NewStatusServer(engine, *debug).Start(cfg.Server.StatusAddr)

	// 8. Run until shutdown or fatal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Run(ctx); err != nil {
		if radio.IsFatal(err) {
			log.Printf("Exiting: %v", err)
			os.Exit(exitNoTracks)
		}
		log.Fatalf("Supervisor failed: %v", err)
	}
	log.Println("Shutdown complete")
}

package radio

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/config"
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/history"
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/overlay"
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/playlist"
)

// Metrics
var (
	tracksPlayed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "streamer_tracks_played_total", Help: "Tracks started"},
	)
	tracksSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "streamer_tracks_skipped_total", Help: "Tracks skipped by the supervisor"},
		[]string{"reason"},
	)
	encoderRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "streamer_encoder_restarts_total", Help: "Encoder crash restarts"},
	)
	streamingState = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "streamer_streaming", Help: "1 while the encoder is live"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(tracksPlayed, tracksSkipped, encoderRestarts, streamingState)
}

// State is the supervisor's position in its Idle→Checking→Streaming→
// Restarting loop. Fatal is terminal and only reached when the playlist
// cannot supply a track at all.
type State int32

const (
	StateIdle State = iota
	StateChecking
	StateStreaming
	StateRestarting
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChecking:
		return "checking"
	case StateStreaming:
		return "streaming"
	case StateRestarting:
		return "restarting"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Session is a running encoder bound to one track: a cancellable
// wait-for-exit plus a terminate that never orphans the process.
type Session interface {
	Done() <-chan error
	Stop()
}

// Launcher starts one encoder session for a track. *encoder.Settings-backed
// in production, faked in tests.
type Launcher interface {
	Launch(track playlist.Track, streamURL string) (Session, error)
}

// TrackSource is the playlist deck.
type TrackSource interface {
	NextTrack(ctx context.Context) (playlist.Track, error)
}

// Reachability gates stream attempts on TCP connectivity to the RTMP host.
type Reachability interface {
	WaitUntilReachable(ctx context.Context) error
}

// NowPlaying is the status snapshot served by the status listener.
type NowPlaying struct {
	Key       string  `json:"key"`
	Display   string  `json:"display"`
	Duration  float64 `json:"duration"`
	StartedAt int64   `json:"started_at"`
}

// Engine drives the whole stream: pick a track, wait for the network, write
// the overlay, run one encoder per track, advance on wall-clock duration, and
// restart under a bounded retry policy when the encoder dies early.
type Engine struct {
	deck       TrackSource
	check      Reachability
	launcher   Launcher
	overlay    *overlay.Publisher
	ledger     *history.Ledger
	clock      Clock
	resolveURL func() (string, error)

	retryLimit   int
	restartDelay time.Duration
	exitBuffer   time.Duration

	state atomic.Int32

	mu  sync.RWMutex
	now NowPlaying
}

func New(cfg *config.Config, deck TrackSource, check Reachability, launcher Launcher, pub *overlay.Publisher, ledger *history.Ledger) *Engine {
	return &Engine{
		deck:         deck,
		check:        check,
		launcher:     launcher,
		overlay:      pub,
		ledger:       ledger,
		clock:        RealClock{},
		resolveURL:   cfg.ResolveStreamURL,
		retryLimit:   cfg.Supervisor.RetryLimit,
		restartDelay: cfg.RestartDelay(),
		exitBuffer:   cfg.TrackExitBuffer(),
	}
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

func (e *Engine) Current() NowPlaying {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.now
}

func (e *Engine) setNowPlaying(track playlist.Track, at time.Time) {
	e.mu.Lock()
	e.now = NowPlaying{
		Key:       track.Key,
		Display:   track.Display,
		Duration:  track.Duration,
		StartedAt: at.Unix(),
	}
	e.mu.Unlock()
}

// Run loops forever under normal operation. It returns nil on context
// cancellation and an error only for the fatal no-tracks condition, which the
// caller maps to a distinct exit code.
func (e *Engine) Run(ctx context.Context) error {
	log.Println("Streaming supervisor started")

	for {
		e.setState(StateIdle)

		track, err := e.deck.NextTrack(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			e.setState(StateFatal)
			log.Printf("FATAL: playlist cannot supply a track: %v", err)
			return err
		}

		if err := e.playTrack(ctx, track); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// playTrack owns one track from overlay write to advance/skip. A nil return
// always means "move on to the next track" (or shutdown); per-track failures
// never propagate.
func (e *Engine) playTrack(ctx context.Context, track playlist.Track) error {
	if track.Duration <= 0 {
		log.Printf("Skipping %s: no usable duration", track.Key)
		tracksSkipped.WithLabelValues("no-duration").Inc()
		e.ledger.RecordSkip(track.Key, "no-duration")
		return nil
	}

	watch := time.Duration(track.Duration * float64(time.Second))
	failures := 0

	for {
		e.setState(StateChecking)

		// Unreachable network blocks rather than skips: nothing downstream
		// can succeed offline, and skipping would burn the whole playlist.
		if err := e.check.WaitUntilReachable(ctx); err != nil {
			return nil
		}

		streamURL, err := e.resolveURL()
		if err != nil {
			log.Printf("Stream URL unavailable: %v, retrying in %s", err, e.restartDelay)
			if !e.sleep(ctx, e.restartDelay) {
				return nil
			}
			continue
		}

		// Overlay goes out before the process starts so the first rendered
		// frame already carries the right name.
		if err := e.overlay.Publish(track.Display); err != nil {
			log.Printf("Overlay write failed: %v", err)
		}

		sess, err := e.launcher.Launch(track, streamURL)
		if err != nil {
			failures++
			log.Printf("Encoder failed to start for %s: %v (failure %d/%d)", track.Key, err, failures, e.retryLimit)
			if failures > e.retryLimit {
				log.Printf("Giving up on %s after %d consecutive failures, skipping", track.Key, failures)
				tracksSkipped.WithLabelValues("crash-limit").Inc()
				e.ledger.RecordSkip(track.Key, "crash-limit")
				return nil
			}
			if !e.sleep(ctx, e.restartDelay) {
				return nil
			}
			continue
		}

		start := e.clock.Now()
		e.setNowPlaying(track, start)
		e.setState(StateStreaming)
		streamingState.Set(1)
		tracksPlayed.Inc()
		e.ledger.RecordPlay(track.Key, track.Display, track.Duration, start)
		log.Printf("Now playing: %s (%.0fs)", track.Display, track.Duration)

		select {
		case <-ctx.Done():
			sess.Stop()
			<-sess.Done()
			streamingState.Set(0)
			log.Println("Shutdown: encoder stopped")
			return nil

		case exitErr := <-sess.Done():
			streamingState.Set(0)
			elapsed := e.clock.Now().Sub(start)
			if elapsed >= watch {
				// -shortest ends ffmpeg with the track; this is the normal path.
				log.Printf("Track finished: %s", track.Key)
				return nil
			}

			e.setState(StateRestarting)
			failures++
			encoderRestarts.Inc()
			log.Printf("Encoder exited early for %s after %s (err=%v), failure %d/%d",
				track.Key, elapsed.Round(time.Millisecond), exitErr, failures, e.retryLimit)

			if failures > e.retryLimit {
				log.Printf("Giving up on %s after %d consecutive failures, skipping", track.Key, failures)
				tracksSkipped.WithLabelValues("crash-limit").Inc()
				e.ledger.RecordSkip(track.Key, "crash-limit")
				return nil
			}
			if !e.sleep(ctx, e.restartDelay) {
				return nil
			}
			// Same track, fresh reachability check.

		case <-time.After(watch + e.exitBuffer):
			// Encoder overshot the track end; replace it for the next track.
			streamingState.Set(0)
			log.Printf("Track complete: %s, stopping encoder", track.Key)
			sess.Stop()
			<-sess.Done()
			return nil
		}
	}
}

// sleep waits d or until shutdown; false means the context is done.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// IsFatal reports whether err is the no-tracks condition that should map to
// the dedicated exit code.
func IsFatal(err error) bool {
	return errors.Is(err, playlist.ErrNoTracks)
}

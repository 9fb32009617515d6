package playlist

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/library"
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/overlay"
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/probe"
)

// ErrNoTracks means a fresh scan of the library yielded zero playable files.
// The supervisor treats this as fatal: retrying a scan that found nothing is
// unlikely to self-heal without operator intervention.
var ErrNoTracks = errors.New("no valid tracks in library")

var tracksFiltered = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "streamer_playlist_skips_total", Help: "Tracks dropped during a playlist scan"},
	[]string{"reason"},
)

func RegisterMetrics() {
	prometheus.MustRegister(tracksFiltered)
}

// Track is one playable audio file with its probed duration.
// Immutable once built; discarded when the pass is superseded.
type Track struct {
	Key      string
	Path     string
	Display  string
	Duration float64 // seconds
}

// Prober is satisfied by *probe.Prober and by test fakes.
type Prober interface {
	Probe(ctx context.Context, path string) (float64, error)
}

// Deck produces a lazy, infinite, restartable shuffled sequence of tracks.
// When the current pass runs out it re-scans the source, filters out anything
// the prober rejects, and shuffles independently of the previous pass.
type Deck struct {
	source library.Source
	prober Prober
	queue  []Track
	mu     sync.Mutex
}

func NewDeck(source library.Source, prober Prober) *Deck {
	return &Deck{
		source: source,
		prober: prober,
		queue:  make([]Track, 0),
	}
}

// NextTrack pops the next track, rebuilding the pass first if exhausted.
func (d *Deck) NextTrack(ctx context.Context) (Track, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) == 0 {
		log.Println("Playlist exhausted, rescanning and reshuffling...")
		if err := d.refreshAndShuffle(ctx); err != nil {
			return Track{}, err
		}
	}

	if len(d.queue) == 0 {
		return Track{}, ErrNoTracks
	}
	track := d.queue[0]
	d.queue = d.queue[1:]
	return track, nil
}

func (d *Deck) refreshAndShuffle(ctx context.Context) error {
	keys, err := d.source.List()
	if err != nil {
		return err
	}

	tracks := make([]Track, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}

		path, err := d.source.Localize(key)
		if err != nil {
			log.Printf("Skipping %s: %v", key, err)
			tracksFiltered.WithLabelValues("unreadable").Inc()
			continue
		}

		duration, err := d.prober.Probe(ctx, path)
		if err != nil {
			log.Printf("Skipping %s: %v", key, err)
			tracksFiltered.WithLabelValues(skipReason(err)).Inc()
			continue
		}

		tracks = append(tracks, Track{
			Key:      key,
			Path:     path,
			Display:  overlay.DisplayName(path),
			Duration: duration,
		})
	}

	// Fisher-Yates with crypto/rand
	n := len(tracks)
	for i := n - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			break
		}
		j := int(jBig.Int64())
		tracks[i], tracks[j] = tracks[j], tracks[i]
	}

	d.queue = tracks
	log.Printf("Loaded %d tracks for this pass (%d scanned)", len(tracks), len(keys))
	return nil
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, probe.ErrZeroByte):
		return "zero-byte"
	case errors.Is(err, probe.ErrUnreadable):
		return "unreadable"
	default:
		return "unparseable"
	}
}

package playlist

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/probe"
)

type fakeSource struct {
	keys []string
}

func (f *fakeSource) List() ([]string, error) { return f.keys, nil }
func (f *fakeSource) Localize(key string) (string, error) { return "/lib/" + key, nil }

// fakeProber assigns durations by path; paths with a nil-mapped entry fail.
type fakeProber struct {
	durations map[string]float64
	errs      map[string]error
	calls     int
}

func (f *fakeProber) Probe(_ context.Context, path string) (float64, error) {
	f.calls++
	if err, ok := f.errs[path]; ok {
		return 0, err
	}
	return f.durations[path], nil
}

func TestDeckFiltersInvalidTracks(t *testing.T) {
	src := &fakeSource{keys: []string{"good1.mp3", "empty.mp3", "good2.mp3", "corrupt.mp3"}}
	pr := &fakeProber{
		durations: map[string]float64{
			"/lib/good1.mp3": 120,
			"/lib/good2.mp3": 95.5,
		},
		errs: map[string]error{
			"/lib/empty.mp3":   fmt.Errorf("%w: /lib/empty.mp3", probe.ErrZeroByte),
			"/lib/corrupt.mp3": fmt.Errorf("%w: /lib/corrupt.mp3", probe.ErrUnparseable),
		},
	}

	deck := NewDeck(src, pr)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		track, err := deck.NextTrack(context.Background())
		if err != nil {
			t.Fatalf("NextTrack failed: %v", err)
		}
		if track.Duration <= 0 {
			t.Errorf("track %s has non-positive duration %f", track.Key, track.Duration)
		}
		seen[track.Key] = true
	}

	if !seen["good1.mp3"] || !seen["good2.mp3"] {
		t.Errorf("pass should contain exactly the valid tracks, got %v", seen)
	}
}

func TestDeckLoopsForever(t *testing.T) {
	src := &fakeSource{keys: []string{"a.mp3", "b.mp3"}}
	pr := &fakeProber{durations: map[string]float64{"/lib/a.mp3": 10, "/lib/b.mp3": 20}}
	deck := NewDeck(src, pr)

	// Three full passes over a two-track library.
	counts := map[string]int{}
	for i := 0; i < 6; i++ {
		track, err := deck.NextTrack(context.Background())
		if err != nil {
			t.Fatalf("NextTrack failed on draw %d: %v", i, err)
		}
		counts[track.Key]++
	}

	if counts["a.mp3"] != 3 || counts["b.mp3"] != 3 {
		t.Errorf("each pass must contain the identical track set, got %v", counts)
	}
}

func TestDeckReshufflesBetweenPasses(t *testing.T) {
	keys := make([]string, 20)
	durations := map[string]float64{}
	for i := range keys {
		keys[i] = fmt.Sprintf("track%02d.mp3", i)
		durations["/lib/"+keys[i]] = 60
	}
	deck := NewDeck(&fakeSource{keys: keys}, &fakeProber{durations: durations})

	drawPass := func() []string {
		order := make([]string, 0, len(keys))
		for range keys {
			track, err := deck.NextTrack(context.Background())
			if err != nil {
				t.Fatalf("NextTrack failed: %v", err)
			}
			order = append(order, track.Key)
		}
		return order
	}

	first := drawPass()
	second := drawPass()

	same := true
	seen := map[string]bool{}
	for i := range first {
		if first[i] != second[i] {
			same = false
		}
		seen[first[i]] = true
		seen[second[i]] = true
	}
	if len(seen) != len(keys) {
		t.Errorf("passes drew %d distinct tracks, want %d", len(seen), len(keys))
	}
	// 20! orderings make a repeat effectively impossible.
	if same {
		t.Errorf("two passes produced the identical ordering: %v", first)
	}
}

func TestDeckCountsSkipsByReason(t *testing.T) {
	src := &fakeSource{keys: []string{"ok.mp3", "empty1.mp3", "empty2.mp3", "bad.mp3"}}
	pr := &fakeProber{
		durations: map[string]float64{"/lib/ok.mp3": 90},
		errs: map[string]error{
			"/lib/empty1.mp3": fmt.Errorf("%w: /lib/empty1.mp3", probe.ErrZeroByte),
			"/lib/empty2.mp3": fmt.Errorf("%w: /lib/empty2.mp3", probe.ErrZeroByte),
			"/lib/bad.mp3":    fmt.Errorf("%w: /lib/bad.mp3", probe.ErrUnparseable),
		},
	}
	deck := NewDeck(src, pr)

	zeroBefore := testutil.ToFloat64(tracksFiltered.WithLabelValues("zero-byte"))
	badBefore := testutil.ToFloat64(tracksFiltered.WithLabelValues("unparseable"))

	if _, err := deck.NextTrack(context.Background()); err != nil {
		t.Fatalf("NextTrack failed: %v", err)
	}

	if got := testutil.ToFloat64(tracksFiltered.WithLabelValues("zero-byte")) - zeroBefore; got != 2 {
		t.Errorf("zero-byte skip count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(tracksFiltered.WithLabelValues("unparseable")) - badBefore; got != 1 {
		t.Errorf("unparseable skip count = %v, want 1", got)
	}
}

func TestDeckEmptyLibraryIsFatal(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeSource
		pr   *fakeProber
	}{
		{"No Files", &fakeSource{}, &fakeProber{}},
		{"All Invalid", &fakeSource{keys: []string{"bad.mp3"}}, &fakeProber{
			errs: map[string]error{"/lib/bad.mp3": probe.ErrZeroByte},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deck := NewDeck(tt.src, tt.pr)
			_, err := deck.NextTrack(context.Background())
			if !errors.Is(err, ErrNoTracks) {
				t.Errorf("NextTrack = %v, want ErrNoTracks", err)
			}
		})
	}
}

func TestDeckRescansEachPass(t *testing.T) {
	src := &fakeSource{keys: []string{"a.mp3"}}
	pr := &fakeProber{durations: map[string]float64{"/lib/a.mp3": 10, "/lib/b.mp3": 5}}
	deck := NewDeck(src, pr)

	if _, err := deck.NextTrack(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A track added between passes shows up on the next rebuild.
	src.keys = append(src.keys, "b.mp3")

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		track, err := deck.NextTrack(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		seen[track.Key] = true
	}
	if !seen["b.mp3"] {
		t.Error("new file should appear after a rescan")
	}
}

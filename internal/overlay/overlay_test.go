package overlay

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestPublishOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nowplaying.txt")
	p := NewPublisher(path)

	if err := p.Publish("First Track"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := p.Publish("Second Track"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Second Track" {
		t.Errorf("overlay file = %q, want %q", data, "Second Track")
	}
}

// A concurrent reader (standing in for the drawtext filter) must only ever
// observe complete values, never a partial write or a missing file.
func TestPublishAtomicUnderConcurrentReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nowplaying.txt")
	p := NewPublisher(path)

	valid := make(map[string]bool)
	for i := 0; i < 50; i++ {
		valid[fmt.Sprintf("Track %03d with a fairly long display name", i)] = true
	}
	if err := p.Publish("Track 000 with a fairly long display name"); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Errorf("reader saw missing overlay file: %v", err)
				return
			}
			if !valid[string(data)] {
				t.Errorf("reader saw partial value %q", data)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		if err := p.Publish(fmt.Sprintf("Track %03d with a fairly long display name", i)); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	close(done)
	wg.Wait()
}

func TestDisplayNameFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "late_night_beats.mp3")
	// Not a real mp3, so tag parsing fails and the filename stem is used.
	if err := os.WriteFile(path, []byte("not audio"), 0644); err != nil {
		t.Fatal(err)
	}

	if got := DisplayName(path); got != "late night beats" {
		t.Errorf("DisplayName = %q, want %q", got, "late night beats")
	}
}

func TestEscapeDrawtext(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Artist: Title", `Artist\: Title`},
		{`a\b`, `a\\b`},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := escapeDrawtext(tt.in); got != tt.want {
			t.Errorf("escapeDrawtext(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

package overlay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Publisher writes the now-playing text file read by the encoder's drawtext
// filter. The encoder re-reads the file on every frame (reload=1), so the
// write must be atomic: a half-written name on screen is worse than a late one.
type Publisher struct {
	Path string
}

func NewPublisher(path string) *Publisher {
	return &Publisher{Path: path}
}

// Publish replaces the overlay file contents with the given display name.
// Write-temp-then-rename keeps the swap atomic for the concurrent reader;
// the temp file is removed on every error path.
func (p *Publisher) Publish(name string) error {
	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("overlay dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".nowplaying-*")
	if err != nil {
		return fmt.Errorf("overlay temp file: %w", err)
	}

	if _, err := tmp.WriteString(name); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("overlay write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("overlay sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), p.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("overlay rename: %w", err)
	}
	return nil
}

// DisplayName builds the on-screen "Artist – Title" string for a track.
// Tags are read when present; otherwise the cleaned filename stem is used.
func DisplayName(path string) string {
	if name := tagDisplayName(path); name != "" {
		return escapeDrawtext(name)
	}
	return escapeDrawtext(cleanFilename(filepath.Base(path)))
}

func tagDisplayName(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return ""
	}

	title := strings.TrimSpace(meta.Title())
	artist := strings.TrimSpace(meta.Artist())
	if title == "" {
		return ""
	}
	if artist == "" {
		return title
	}
	return artist + " – " + title
}

func cleanFilename(filename string) string {
	ext := filepath.Ext(filename)
	clean := strings.TrimSuffix(filename, ext)
	clean = strings.ReplaceAll(clean, "_", " ")
	return strings.TrimSpace(clean)
}

// drawtext treats ':' and '\' as syntax even inside textfile content.
func escapeDrawtext(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ":", `\:`)
	return s
}

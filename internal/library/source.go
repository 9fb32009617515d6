package library

import (
	"fmt"
	"strings"

	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/config"
)

// Source is a track library backend. List returns stable keys for every audio
// file currently in the library; Localize turns a key into a local filesystem
// path suitable for ffprobe/ffmpeg (downloading first if the backend is remote).
type Source interface {
	List() ([]string, error)
	Localize(key string) (string, error)
}

func New(cfg *config.Config) (Source, error) {
	switch cfg.Library.Provider {
	case "", "local":
		return &DirSource{Root: cfg.Library.AudioDir}, nil
	case "s3":
		return NewS3Source(cfg)
	default:
		return nil, fmt.Errorf("unknown library provider %q", cfg.Library.Provider)
	}
}

var audioExtensions = []string{
	".mp3", ".m4a", ".aac", ".wav", ".ogg", ".flac",
}

// IsAudioFile reports whether the filename looks like a playable track.
// macOS resource forks ("._foo.mp3") and dotfiles break ffmpeg and are skipped.
func IsAudioFile(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, ".") {
		return false
	}
	for _, ext := range audioExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

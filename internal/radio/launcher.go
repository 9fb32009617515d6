package radio

import (
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/encoder"
	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/playlist"
)

// EncoderLauncher starts real ffmpeg sessions.
type EncoderLauncher struct {
	Settings encoder.Settings
}

func (l *EncoderLauncher) Launch(track playlist.Track, streamURL string) (Session, error) {
	return encoder.Start(l.Settings, track.Path, streamURL)
}

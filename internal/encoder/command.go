package encoder

import (
	"fmt"
	"os"

	"github.com/teqherself/Lofi-Streamer-Pi5-Hyperpixel4xTSQ/internal/config"
)

// Settings captures everything needed to build one ffmpeg invocation:
// the looping background video (or a solid-color fallback), the track audio,
// the optional logo, and the drawtext overlay fed from the now-playing file.
type Settings struct {
	FFmpegPath    string
	LogLevel      string
	VideoFile     string
	FallbackColor string
	FallbackFPS   int
	LogoFile      string
	FontFile      string
	TextFile      string
	FontSize      int
	Width         int
	Height        int
	Preset        string
	VideoBitrate  string
	AudioBitrate  string
	KeyInt        int
}

func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		FFmpegPath:    cfg.Encoder.FFmpegPath,
		LogLevel:      cfg.Encoder.LogLevel,
		VideoFile:     cfg.Video.File,
		FallbackColor: cfg.Video.FallbackColor,
		FallbackFPS:   cfg.Video.FallbackFPS,
		LogoFile:      cfg.Overlay.Logo,
		FontFile:      cfg.Overlay.Font,
		TextFile:      cfg.Overlay.TextFile,
		FontSize:      cfg.Overlay.FontSize,
		Width:         cfg.Encoder.Width,
		Height:        cfg.Encoder.Height,
		Preset:        cfg.Encoder.Preset,
		VideoBitrate:  cfg.Encoder.VideoBitrate,
		AudioBitrate:  cfg.Encoder.AudioBitrate,
		KeyInt:        cfg.Encoder.KeyInt,
	}
}

func (s Settings) hasVideo() bool {
	if s.VideoFile == "" {
		return false
	}
	_, err := os.Stat(s.VideoFile)
	return err == nil
}

func (s Settings) hasLogo() bool {
	if s.LogoFile == "" {
		return false
	}
	_, err := os.Stat(s.LogoFile)
	return err == nil
}

// Args builds the full ffmpeg argument list for one track session.
// Input 0 is the looping video (or lavfi color), input 1 the track audio,
// input 2 the logo when present. -shortest ends the process with the track.
func (s Settings) Args(audioPath, streamURL string) []string {
	args := []string{
		"-hide_banner", "-loglevel", s.LogLevel,
	}

	if s.hasVideo() {
		args = append(args, "-re", "-stream_loop", "-1", "-i", s.VideoFile)
	} else {
		args = append(args,
			"-f", "lavfi", "-re",
			"-i", fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", s.FallbackColor, s.Width, s.Height, s.FallbackFPS),
		)
	}

	args = append(args, "-i", audioPath)

	hasLogo := s.hasLogo()
	if hasLogo {
		args = append(args, "-loop", "1", "-i", s.LogoFile)
	}

	args = append(args,
		"-filter_complex", s.filterChain(hasLogo),
		"-map", "[vout]", "-map", "[aout]",
		"-c:v", "libx264",
		"-preset", s.Preset,
		"-b:v", s.VideoBitrate,
		"-g", fmt.Sprintf("%d", s.KeyInt),
		"-keyint_min", fmt.Sprintf("%d", s.KeyInt),
		"-sc_threshold", "0",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", s.AudioBitrate,
		"-shortest",
		"-f", "flv", streamURL,
	)

	return args
}

const (
	logoPadding = 40
	textPadding = 40

	// Grey frequency bar pinned bottom-left: eight 16px showfreqs segments.
	barX      = 45
	barWidth  = 128
	barHeight = 120
)

// filterChain scales the background, pins the logo top-right, splits the track
// audio into a loudnorm branch for the stream and a showfreqs branch rendered
// as a grey frequency bar, and draws the now-playing textfile bottom-right.
// reload=1 makes ffmpeg re-read the file per frame, which is why the overlay
// writer must rename atomically.
func (s Settings) filterChain(hasLogo bool) string {
	textY := s.Height - 25 - s.FontSize
	barY := s.Height - barHeight - 25

	base := fmt.Sprintf("[0:v]scale=%d:%d:flags=bicubic,format=yuv420p", s.Width, s.Height)

	var chain string
	if hasLogo {
		chain = fmt.Sprintf("%s[v0];[v0][2:v]overlay=W-w-%d:%d[vbase];", base, logoPadding, logoPadding)
	} else {
		chain = base + "[vbase];"
	}

	chain += fmt.Sprintf(
		"[1:a]asplit=2[araw][avis];"+
			"[araw]loudnorm=I=-16:LRA=11:TP=-1.5[aout];"+
			"[avis]showfreqs=s=%dx%d[vf];"+
			"[vf]format=rgba,colorchannelmixer=rr=0.6:gg=0.6:bb=0.6:aa=1[vbar];"+
			"[vbase][vbar]overlay=%d:%d[vstrip];",
		barWidth, barHeight, barX, barY,
	)

	chain += fmt.Sprintf(
		"[vstrip]drawtext=fontfile=%s:textfile=%s:reload=1:"+
			"fontcolor=white:fontsize=%d:"+
			"shadowcolor=black:shadowx=2:shadowy=2:"+
			"box=1:boxcolor=black@0.4:boxborderw=5:"+
			"x=w-tw-%d:y=%d[vout]",
		s.FontFile, s.TextFile, s.FontSize, textPadding, textY,
	)

	return chain
}

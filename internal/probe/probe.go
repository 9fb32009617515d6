package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// Sentinel errors for the three ways a media file can be unplayable.
// The playlist layer matches on these to log a specific skip reason.
var (
	ErrZeroByte    = errors.New("zero-byte file")
	ErrUnreadable  = errors.New("file unreadable")
	ErrUnparseable = errors.New("file unparseable")
)

// Prober extracts track durations via ffprobe.
type Prober struct {
	FFprobePath string
	Timeout     time.Duration
}

func New(ffprobePath string, timeout time.Duration) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Prober{FFprobePath: ffprobePath, Timeout: timeout}
}

// Probe returns the duration of the media file in seconds.
// Zero-byte and unreadable files are rejected before ffprobe is spawned;
// a probe that hangs is killed at the timeout and reported as unparseable.
func (p *Prober) Probe(ctx context.Context, path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrUnreadable, path, err)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%w: %s", ErrZeroByte, path)
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	}
	cmd := exec.CommandContext(ctx, p.FFprobePath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return 0, fmt.Errorf("%w: %s: probe timed out after %s", ErrUnparseable, path, p.Timeout)
		}
		return 0, fmt.Errorf("%w: %s: %v: %s", ErrUnparseable, path, err, stderr.String())
	}

	return parseDuration(out.Bytes(), path)
}

func parseDuration(raw []byte, path string) (float64, error) {
	var probeData struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(raw, &probeData); err != nil {
		return 0, fmt.Errorf("%w: %s: bad ffprobe output: %v", ErrUnparseable, path, err)
	}
	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("%w: %s: no duration in ffprobe output", ErrUnparseable, path)
	}
	seconds, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: bad duration %q: %v", ErrUnparseable, path, probeData.Format.Duration, err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("%w: %s: non-positive duration %f", ErrUnparseable, path, seconds)
	}
	return seconds, nil
}

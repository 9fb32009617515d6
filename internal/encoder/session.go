package encoder

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

const stopGrace = 5 * time.Second

// Session is one running ffmpeg process bound to a single track.
// It exposes a cancellable wait (Done) and a termination that never leaves
// an orphaned encoder behind.
type Session struct {
	cmd      *exec.Cmd
	done     chan error
	stopOnce sync.Once
}

// Start launches ffmpeg for one track and begins observing its exit.
func Start(set Settings, audioPath, streamURL string) (*Session, error) {
	args := set.Args(audioPath, streamURL)

	cmd := exec.Command(set.FFmpegPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// Own process group so Stop can signal ffmpeg and any children together.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	s := &Session{
		cmd:  cmd,
		done: make(chan error, 1),
	}

	go func() {
		s.done <- cmd.Wait()
		close(s.done)
	}()

	log.Printf("Encoder started (pid %d)", cmd.Process.Pid)
	return s, nil
}

// Done delivers the process exit status exactly once, then stays closed.
func (s *Session) Done() <-chan error {
	return s.done
}

// Stop terminates the encoder: SIGTERM to the process group, SIGKILL after a
// grace period if it lingers. Safe to call more than once and after exit.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		pgid := -s.cmd.Process.Pid
		if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
			return // already gone
		}

		select {
		case <-s.done:
		case <-time.After(stopGrace):
			log.Printf("Encoder (pid %d) ignored SIGTERM, killing", s.cmd.Process.Pid)
			syscall.Kill(pgid, syscall.SIGKILL)
		}
	})
}

package netcheck

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"
)

// Checker verifies TCP reachability of the RTMP ingest host before a stream
// attempt. Reachability loss is always transient: WaitUntilReachable never
// gives up on its own, only context cancellation returns early.
type Checker struct {
	Host        string
	Port        int
	DialTimeout time.Duration
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Skip        bool // LOFI_STREAM_SKIP_NETWORK_CHECK, for offline testing
}

func New(host string, port int) *Checker {
	return &Checker{
		Host:        host,
		Port:        port,
		DialTimeout: 3 * time.Second,
		BaseDelay:   1 * time.Second,
		MaxDelay:    5 * time.Second,
	}
}

func (c *Checker) addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprintf("%d", c.Port))
}

// Reachable makes a single connection attempt.
func (c *Checker) Reachable() bool {
	if c.Skip {
		return true
	}
	conn, err := net.DialTimeout("tcp", c.addr(), c.DialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// WaitUntilReachable blocks until a TCP connection to host:port succeeds,
// doubling the delay between attempts up to MaxDelay. The first few failures
// are logged individually; after that only every tenth, so an overnight outage
// does not flood the log.
func (c *Checker) WaitUntilReachable(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	delay := c.BaseDelay
	attempt := 0
	for {
		if c.Reachable() {
			if attempt > 0 {
				log.Printf("RTMP host %s reachable again after %d failed attempts", c.addr(), attempt)
			}
			return nil
		}

		attempt++
		if attempt <= 3 || attempt%10 == 0 {
			log.Printf("RTMP host %s unreachable (attempt %d), retrying in %s", c.addr(), attempt, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.MaxDelay {
			delay = c.MaxDelay
		}
	}
}

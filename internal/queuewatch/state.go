package queuewatch

import (
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type State int

const (
	Connecting State = iota
	Open
	Backoff
	Polling
	Failed
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Backoff:
		return "backoff"
	case Polling:
		return "polling"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Snapshot is the observable state of a Watcher. Attempt is only meaningful in Backoff.
type Snapshot struct {
	State   State
	Attempt int
	Err     error
}

type Config struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string
	Token   string

	BaseDelay   time.Duration
	MaxAttempts int

	VisiblePoll time.Duration
	HiddenPoll  time.Duration
	BackupPoll  time.Duration
	InQueuePoll time.Duration

	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.VisiblePoll <= 0 {
		c.VisiblePoll = 5 * time.Second
	}
	if c.HiddenPoll <= 0 {
		c.HiddenPoll = 30 * time.Second
	}
	if c.BackupPoll <= 0 {
		c.BackupPoll = 30 * time.Second
	}
	if c.InQueuePoll <= 0 {
		c.InQueuePoll = 3 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	return c
}

// newBackOff yields BaseDelay * 2^(n-1) for the n-th consecutive failure and stops
// once MaxAttempts failures have been seen.
func (c Config) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = math.MaxInt64
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithMaxRetries(exp, uint64(c.MaxAttempts-1))
}

// pollInterval folds the backup poll, the polling fallback and the in-queue poll into
// one timer: the shortest interval that applies wins.
func (c Config) pollInterval(state State, visible, inQueue bool) time.Duration {
	d := c.BackupPoll
	if state == Polling || state == Failed {
		p := c.HiddenPoll
		if visible {
			p = c.VisiblePoll
		}
		d = min(d, p)
	}
	if inQueue {
		d = min(d, c.InQueuePoll)
	}
	return d
}

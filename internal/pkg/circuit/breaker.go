// Package circuit stops hammering an upstream that keeps failing.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"

	"pricewatch/internal/logger"
)

// ErrOpen is returned by Do while the breaker rejects calls.
var ErrOpen = errors.New("circuit open")

type State int

const (
	Closed State = iota
	Open
	// HalfOpen lets a single trial call through after the cooldown.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker counts consecutive failures of one upstream. After Failures of
// them it rejects calls for Cooldown, then admits one trial call whose
// outcome closes or reopens it. Calls ended by their own context being
// cancelled are not held against the upstream.
type Breaker struct {
	name     string
	failures int
	cooldown time.Duration
	nowFn    func() time.Time

	mu       sync.Mutex
	state    State
	failed   int
	openedAt time.Time
	trial    bool
}

func New(name string, failures int, cooldown time.Duration) *Breaker {
	if failures < 1 {
		failures = 1
	}
	return &Breaker{name: name, failures: failures, cooldown: cooldown, nowFn: time.Now}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Do runs fn unless the breaker is open and records its outcome.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if !b.admit() {
		return ErrOpen
	}
	err := fn(ctx)
	b.record(ctx, err)
	return err
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		if b.nowFn().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.moveTo(HalfOpen)
		b.trial = true
		return true
	case HalfOpen:
		if b.trial {
			return false
		}
		b.trial = true
		return true
	default:
		return true
	}
}

func (b *Breaker) record(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == HalfOpen {
		b.trial = false
	}
	if err != nil && ctx.Err() != nil {
		return
	}
	if err == nil {
		b.failed = 0
		if b.state != Closed {
			b.moveTo(Closed)
		}
		return
	}
	b.failed++
	if b.state == HalfOpen || b.failed >= b.failures {
		b.openedAt = b.nowFn()
		if b.state != Open {
			b.moveTo(Open)
		}
	}
}

func (b *Breaker) moveTo(to State) {
	from := b.state
	b.state = to
	if to == Open {
		logger.Warnf("circuit %s: %s -> %s after %d failures, retry in %s", b.name, from, to, b.failed, b.cooldown)
		return
	}
	logger.Infof("circuit %s: %s -> %s", b.name, from, to)
}

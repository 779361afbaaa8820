package scheduler

import (
	"sync"
	"time"

	"pricewatch/internal/logger"
)

const minCadence = 100 * time.Millisecond

// Cadence is a named periodic timer whose interval can change while it runs.
// The channel returned by C stays valid across Reset.
type Cadence struct {
	name string

	mu       sync.Mutex
	interval time.Duration
	ticker   *time.Ticker
}

func NewCadence(name string, interval time.Duration) *Cadence {
	interval = clampInterval(name, interval)
	logger.Infof("Cadence[%s]: started interval=%s", name, interval)
	return &Cadence{
		name:     name,
		interval: interval,
		ticker:   time.NewTicker(interval),
	}
}

func (c *Cadence) C() <-chan time.Time {
	return c.ticker.C
}

func (c *Cadence) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Reset switches to a new interval and reports whether it changed.
func (c *Cadence) Reset(interval time.Duration) bool {
	interval = clampInterval(c.name, interval)
	c.mu.Lock()
	defer c.mu.Unlock()
	if interval == c.interval {
		return false
	}
	logger.Infof("Cadence[%s]: interval %s -> %s", c.name, c.interval, interval)
	c.interval = interval
	c.ticker.Reset(interval)
	return true
}

func (c *Cadence) Stop() {
	c.ticker.Stop()
}

func clampInterval(name string, interval time.Duration) time.Duration {
	if interval < minCadence {
		logger.Warnf("Cadence[%s]: invalid interval=%s, clamp to %s", name, interval, minCadence)
		return minCadence
	}
	return interval
}

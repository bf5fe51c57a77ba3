// Package countdown owns the local resolution countdown. The timer is purely
// advisory display state: it is started and cancelled only in response to
// stream events, never by local deduction, and is not resynchronized against
// wall-clock drift beyond its initial value.
package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Controller owns a single repeating one-second tick. It is safe for
// concurrent use. The onChange callback fires after every state transition
// while the controller is live; it runs under the controller's lock, so it
// must not call back into the Controller.
type Controller struct {
	clock    clockwork.Clock
	onChange func()

	mu        sync.Mutex
	remaining int
	active    bool
	disposed  bool
	stop      chan struct{}
	ticker    clockwork.Ticker
}

// New builds a controller on the given clock. onChange may be nil.
func New(clock clockwork.Clock, onChange func()) *Controller {
	return &Controller{clock: clock, onChange: onChange}
}

// Start cancels any running countdown and begins a new one of duration d,
// ticking the remaining seconds down by one each second. Decrementing below
// zero is permitted; only the server knows when the countdown really ends.
func (c *Controller) Start(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.stopLocked()

	c.remaining = int(d.Milliseconds() / 1000)
	c.active = true
	c.stop = make(chan struct{})
	c.ticker = c.clock.NewTicker(time.Second)
	go c.run(c.ticker, c.stop)

	log.Debug().Dur("duration", d).Int("remaining_sec", c.remaining).Msg("countdown started")
	c.notifyLocked()
}

// Cancel stops the tick and clears the countdown. Safe to call when no
// countdown is active.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || !c.active {
		return
	}
	c.stopLocked()
	log.Debug().Msg("countdown cancelled")
	c.notifyLocked()
}

// Remaining returns the remaining seconds and whether a countdown is active.
func (c *Controller) Remaining() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return 0, false
	}
	return c.remaining, true
}

// Dispose permanently shuts the controller down. After Dispose returns, no
// tick fires and no callback is invoked. Subsequent calls are no-ops.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.stopLocked()
	c.disposed = true
}

// stopLocked stops the current run, if any. Callers hold c.mu.
func (c *Controller) stopLocked() {
	if !c.active {
		return
	}
	close(c.stop)
	c.ticker.Stop()
	c.active = false
	c.stop = nil
	c.ticker = nil
}

func (c *Controller) notifyLocked() {
	if c.onChange != nil {
		c.onChange()
	}
}

// run decrements once per ticker fire until its stop channel closes. The
// stop channel identifies the run: a tick that races with a restart or with
// Dispose finds a different (or closed) channel and bows out without
// touching state.
func (c *Controller) run(ticker clockwork.Ticker, stop chan struct{}) {
	for {
		select {
		case <-ticker.Chan():
			c.mu.Lock()
			if c.disposed || c.stop != stop {
				c.mu.Unlock()
				return
			}
			c.remaining--
			c.notifyLocked()
			c.mu.Unlock()
		case <-stop:
			ticker.Stop()
			return
		}
	}
}

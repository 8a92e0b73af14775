// apps/go-server/internal/feedback/controller.go
//
// Transient feedback timers for a game session.
//
// The game engine reports transient values (the message and the wrong-guess
// flash) as game.Signal instructions. A Controller turns those into debounced
// timers: one pending timer per signal kind, replaced whenever a newer signal
// of the same kind arrives. When a timer fires, the owner's onExpire callback
// receives the signal and is expected to call Session.Expire under its lock.
//
// Stop cancels everything; a stopped controller ignores further signals.
package feedback

import (
	"sync"
	"time"

	"github.com/robalobadob/connections/apps/go-server/internal/game"
)

// Timer is the cancel handle of a scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// pending is the live timer for one signal kind.
type pending struct {
	timer Timer
	seq   uint64
}

// Controller owns the expiry timers of one session.
type Controller struct {
	mu       sync.Mutex
	sched    Scheduler
	onExpire func(game.Signal)
	pending  map[game.SignalKind]pending
	stopped  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler replaces the wall-clock scheduler (tests use a fake).
func WithScheduler(s Scheduler) Option { return func(c *Controller) { c.sched = s } }

// New returns a controller that calls onExpire when a signal times out.
func New(onExpire func(game.Signal), opts ...Option) *Controller {
	c := &Controller{
		sched:    wallClock{},
		onExpire: onExpire,
		pending:  make(map[game.SignalKind]pending),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply schedules or cancels expiry for each signal.
// A signal with TTL > 0 replaces the pending timer of its kind;
// TTL == 0 only cancels it.
func (c *Controller) Apply(signals ...game.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	for _, sig := range signals {
		if p, ok := c.pending[sig.Kind]; ok {
			p.timer.Stop()
			delete(c.pending, sig.Kind)
		}
		if sig.TTL <= 0 {
			continue
		}
		c.pending[sig.Kind] = pending{
			seq:   sig.Seq,
			timer: c.sched.AfterFunc(sig.TTL, func() { c.fire(sig) }),
		}
	}
}

// fire runs when a timer elapses. It drops the bookkeeping entry if it still
// belongs to sig, then notifies the owner outside the lock.
func (c *Controller) fire(sig game.Signal) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if p, ok := c.pending[sig.Kind]; ok && p.seq == sig.Seq {
		delete(c.pending, sig.Kind)
	}
	c.mu.Unlock()

	if c.onExpire != nil {
		c.onExpire(sig)
	}
}

// Pending reports whether an expiry is scheduled for kind.
func (c *Controller) Pending(kind game.SignalKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[kind]
	return ok
}

// Stop cancels all pending timers. Safe to call more than once.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for kind, p := range c.pending {
		p.timer.Stop()
		delete(c.pending, kind)
	}
	c.stopped = true
}

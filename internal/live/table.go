// apps/go-server/internal/live/table.go
//
// A Table is a running game: one game.Session, the feedback.Controller that
// expires its transient signals, and the subscribers watching it.
//
// Every intent and every timer callback runs under the table mutex, so the
// session sees one run-to-completion event at a time. After each change the
// new view is published to subscribers with non-blocking sends, so a slow
// subscriber may miss views rather than stall the game.

package live

import (
	"sync"
	"time"

	"github.com/robalobadob/connections/apps/go-server/internal/feedback"
	"github.com/robalobadob/connections/apps/go-server/internal/game"
)

const subscriberBuffer = 16

// Table serializes access to one session.
type Table struct {
	ID string

	mu         sync.Mutex
	session    *game.Session
	fb         *feedback.Controller
	subs       map[chan game.View]struct{}
	lastActive time.Time
	closed     bool
}

// New wraps s. fbOpts are passed to the feedback controller.
func New(s *game.Session, fbOpts ...feedback.Option) *Table {
	t := &Table{
		ID:         s.ID,
		session:    s,
		subs:       make(map[chan game.View]struct{}),
		lastActive: time.Now(),
	}
	t.fb = feedback.New(t.expire, fbOpts...)
	return t
}

// Toggle selects or deselects word.
func (t *Table) Toggle(word string) (game.View, bool) {
	return t.mutate(func(s *game.Session) bool { return s.ToggleWord(word) })
}

// ClearSelection deselects every tile.
func (t *Table) ClearSelection() (game.View, bool) {
	return t.mutate(func(s *game.Session) bool { return s.ClearSelection() })
}

// Submit evaluates the current selection.
func (t *Table) Submit() (game.Outcome, game.View) {
	return t.apply(func(s *game.Session) game.Outcome { return s.Submit() })
}

// Reveal discloses the remaining groups after the mistake budget is spent.
func (t *Table) Reveal() (game.Outcome, game.View) {
	return t.apply(func(s *game.Session) game.Outcome { return s.RevealRemaining() })
}

// View returns the current snapshot.
func (t *Table) View() game.View {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session.View()
}

// Inspect runs f with the session under the table lock. f must not retain s.
func (t *Table) Inspect(f func(s *game.Session)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f(t.session)
}

// LastActive reports when the table last handled an intent.
func (t *Table) LastActive() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActive
}

// Subscribe returns a channel of views published after every change and a
// cancel func. The current view is delivered first. The channel is closed by
// cancel or Close.
func (t *Table) Subscribe() (<-chan game.View, func()) {
	ch := make(chan game.View, subscriberBuffer)
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	t.subs[ch] = struct{}{}
	ch <- t.session.View()
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if _, ok := t.subs[ch]; ok {
				delete(t.subs, ch)
				close(ch)
			}
		})
	}
}

// Subscribers reports how many subscribers are attached.
func (t *Table) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Close stops pending timers and detaches all subscribers. Idempotent.
func (t *Table) Close() {
	t.fb.Stop()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for ch := range t.subs {
		delete(t.subs, ch)
		close(ch)
	}
}

// mutate runs a selection change and publishes when it changed something.
func (t *Table) mutate(f func(s *game.Session) bool) (game.View, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActive = time.Now()
	changed := f(t.session)
	v := t.session.View()
	if changed {
		t.publish(v)
	}
	return v, changed
}

// apply runs a submit/reveal, hands its signals to the timers and publishes.
func (t *Table) apply(f func(s *game.Session) game.Outcome) (game.Outcome, game.View) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActive = time.Now()
	out := f(t.session)
	v := t.session.View()
	if out.Result != game.ResultIgnored {
		t.fb.Apply(out.Signals...)
		t.publish(v)
	}
	return out, v
}

// expire is the feedback callback; it runs on the timer goroutine.
func (t *Table) expire(sig game.Signal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.session.Expire(sig) {
		t.publish(t.session.View())
	}
}

// publish must be called with t.mu held.
func (t *Table) publish(v game.View) {
	if t.closed {
		return
	}
	for ch := range t.subs {
		select {
		case ch <- v:
		default:
			// Channel full, skip slow subscriber.
		}
	}
}

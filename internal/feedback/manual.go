package feedback

import (
	"sort"
	"sync"
	"time"
)

// ManualClock is a Scheduler driven by Advance instead of wall time.
// Callbacks run synchronously inside Advance, in due order.
type ManualClock struct {
	mu    sync.Mutex
	now   time.Duration
	next  int
	tasks map[int]*manualTask
}

type manualTask struct {
	id  int
	due time.Duration
	f   func()
	c   *ManualClock
}

// NewManualClock returns a clock at t=0 with nothing scheduled.
func NewManualClock() *ManualClock {
	return &ManualClock{tasks: make(map[int]*manualTask)}
}

// AfterFunc schedules f at now+d.
func (m *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	t := &manualTask{id: m.next, due: m.now + d, f: f, c: m}
	m.tasks[t.id] = t
	return t
}

// Stop cancels the task; reports whether it was still pending.
func (t *manualTask) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if _, ok := t.c.tasks[t.id]; !ok {
		return false
	}
	delete(t.c.tasks, t.id)
	return true
}

// Advance moves the clock forward by d and runs every task that came due.
func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	var due []*manualTask
	for id, t := range m.tasks {
		if t.due <= m.now {
			due = append(due, t)
			delete(m.tasks, id)
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].id < due[j].id
	})
	for _, t := range due {
		t.f()
	}
}

// Scheduled reports how many tasks are waiting.
func (m *ManualClock) Scheduled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

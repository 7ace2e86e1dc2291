// Package trigger debounces analysis runs behind observation mutations.
package trigger

import (
	"sync"
	"time"

	"github.com/afritaa/figtracker/internal/metrics"
)

// Trigger arms a cool-down timer whenever the store holds enough
// observations and a mutation lands. Only the last mutation within the
// window fires a run. The run callback may overlap a re-armed timer; the
// caller resolves that by letting the last completion win.
type Trigger struct {
	cooldown time.Duration
	minCount int
	run      func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func New(cooldown time.Duration, minCount int, run func()) *Trigger {
	return &Trigger{cooldown: cooldown, minCount: minCount, run: run}
}

// Observe reports the store's observation count after a mutation. At or
// above the threshold it (re)starts the cool-down; below it cancels any
// pending run.
func (t *Trigger) Observe(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.cancelLocked()
	if count < t.minCount {
		return
	}
	t.timer = time.AfterFunc(t.cooldown, t.fire)
}

func (t *Trigger) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	metrics.TriggerFires.Inc()
	t.run()
}

// RunNow runs immediately, canceling any pending timer so the manual run
// is not shortly followed by a duplicate.
func (t *Trigger) RunNow() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.cancelLocked()
	t.mu.Unlock()

	t.run()
}

// CancelPending drops any armed timer without running. Used when a manual
// run is about to start elsewhere.
func (t *Trigger) CancelPending() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

// Stop cancels any pending run and ignores further events.
func (t *Trigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.cancelLocked()
}

func (t *Trigger) cancelLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

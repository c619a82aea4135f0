package live

import (
	"sync"
	"time"
)

// Scheduler runs one-shot delayed callbacks through an exec hook so they
// serialize with message handling. A Task may still be in flight when Stop is
// called (the timer fired but the callback is waiting on the exec boundary);
// callbacks therefore re-check state before acting.
type Scheduler struct {
	exec func(func())
}

func NewScheduler(exec func(func())) *Scheduler {
	return &Scheduler{exec: exec}
}

// Task is a cancellable pending callback.
type Task struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// After schedules fn to run on the exec boundary after d.
func (s *Scheduler) After(d time.Duration, fn func()) *Task {
	t := &Task{}
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		stopped := t.stopped
		t.mu.Unlock()
		if stopped {
			return
		}
		s.exec(fn)
	})
	return t
}

// Stop cancels the task. Safe to call more than once and on a task whose
// timer already fired.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.timer.Stop()
}

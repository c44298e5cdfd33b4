package testutil

import (
	"sync"
	"time"
)

// RecordingTimer fires immediately and records every requested wait, so
// retry loops run in simulated time. It satisfies backoff.Timer.
type RecordingTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	ch    chan time.Time
}

func NewRecordingTimer() *RecordingTimer {
	return &RecordingTimer{}
}

func (t *RecordingTimer) Start(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.waits = append(t.waits, d)
	t.ch = make(chan time.Time, 1)
	t.ch <- time.Time{}
}

func (t *RecordingTimer) Stop() {}

func (t *RecordingTimer) C() <-chan time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ch
}

// Waits returns a copy of the recorded waits.
func (t *RecordingTimer) Waits() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}

// Total is the simulated time spent waiting.
func (t *RecordingTimer) Total() time.Duration {
	var total time.Duration
	for _, w := range t.Waits() {
		total += w
	}
	return total
}

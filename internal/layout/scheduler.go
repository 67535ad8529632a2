package layout

import (
	"sync"
	"time"
)

// Scheduler drives the simulation loop. Schedule calls tick repeatedly until
// tick returns false or cancel is called. cancel must be safe to call more
// than once and must not block on a running tick.
type Scheduler interface {
	Schedule(tick func() bool) (cancel func())
}

// TickerScheduler ticks on a time.Ticker in its own goroutine.
type TickerScheduler struct {
	interval time.Duration
}

// NewTickerScheduler returns a scheduler ticking every interval.
func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &TickerScheduler{interval: interval}
}

// Schedule implements Scheduler.
func (t *TickerScheduler) Schedule(tick func() bool) func() {
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if !tick() {
					return
				}
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

// ManualScheduler runs ticks only when Advance is called. It is meant for
// tests and for hosts that own their frame loop.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	tick     func() bool
	finished bool
}

// NewManualScheduler returns an idle manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule implements Scheduler.
func (m *ManualScheduler) Schedule(tick func() bool) func() {
	task := &manualTask{tick: tick}

	m.mu.Lock()
	m.tasks = append(m.tasks, task)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		task.finished = true
		m.mu.Unlock()
	}
}

// Advance runs up to n ticks of the most recently scheduled live loop and
// returns how many ran. It stops early when the loop finishes.
func (m *ManualScheduler) Advance(n int) int {
	ran := 0
	for ran < n {
		task := m.active()
		if task == nil {
			break
		}
		more := task.tick()
		ran++
		if !more {
			m.mu.Lock()
			task.finished = true
			m.mu.Unlock()
		}
	}
	return ran
}

// Pending reports whether a live loop is waiting for ticks.
func (m *ManualScheduler) Pending() bool {
	return m.active() != nil
}

func (m *ManualScheduler) active() *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.finished {
			live = append(live, t)
		}
	}
	m.tasks = live
	if len(live) == 0 {
		return nil
	}
	return live[len(live)-1]
}

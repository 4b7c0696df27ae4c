// Package progress owns the download progress state: a process-wide
// tracker behind an explicit single-flight guard, and the halfway
// milestone aggregator used during cubemap extraction.
package progress

import (
	"errors"
	"sync"

	"github.com/vinpix/vinpix/internal/bus"
)

// ErrBusy is returned when a second top-level operation is attempted
// while one is in flight. Concurrent flows are not supported; the guard
// makes that explicit instead of corrupting shared counters.
var ErrBusy = errors.New("another operation is already in progress")

// State is a snapshot of the active operation's progress.
type State struct {
	TotalUnits     int
	CompletedUnits int
}

// Publisher is the slice of the bus the tracker needs.
type Publisher interface {
	Feedback(v bus.Value)
}

// Tracker drives the progress indicator for one operation at a time.
// Counters reset on Begin and grow monotonically until a terminal call
// (End or Abort); the indicator is never left in a non-terminal state.
type Tracker struct {
	mu     sync.Mutex
	active bool
	state  State
	pub    Publisher
}

func NewTracker(pub Publisher) *Tracker {
	return &Tracker{pub: pub}
}

// TryBegin claims the tracker for a new operation. Total may be zero when
// the unit count is not yet known; a later SetTotal fills it in.
func (t *Tracker) TryBegin(total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return ErrBusy
	}
	t.active = true
	t.state = State{TotalUnits: total}
	t.pub.Feedback(bus.Value{Action: bus.ActionDownloadStart, Total: total})
	return nil
}

// SetTotal re-announces the unit count once known.
func (t *Tracker) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return
	}
	t.state.TotalUnits = total
	t.pub.Feedback(bus.Value{Action: bus.ActionDownloadStart, Total: total})
}

// Increment records one completed unit.
func (t *Tracker) Increment() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return
	}
	t.state.CompletedUnits++
	t.pub.Feedback(bus.Value{Action: bus.ActionDownloadIncrement})
}

// End marks the operation complete and releases the guard.
func (t *Tracker) End() {
	t.finish(bus.ActionDownloadEnd)
}

// Abort marks the operation failed/cancelled and releases the guard.
func (t *Tracker) Abort() {
	t.finish(bus.ActionDownloadAbort)
}

func (t *Tracker) finish(action string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return
	}
	t.active = false
	t.pub.Feedback(bus.Value{Action: action})
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Active reports whether an operation currently holds the guard.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

package progress

import (
	"errors"
	"sync"
	"testing"

	"github.com/vinpix/vinpix/internal/bus"
)

// recordingPublisher collects every feedback value the tracker emits.
type recordingPublisher struct {
	mu     sync.Mutex
	values []bus.Value
}

func (p *recordingPublisher) Feedback(v bus.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.values))
	for i, v := range p.values {
		out[i] = v.Action
	}
	return out
}

func TestTracker_SingleFlight(t *testing.T) {
	tr := NewTracker(&recordingPublisher{})

	if err := tr.TryBegin(5); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	if err := tr.TryBegin(3); !errors.Is(err, ErrBusy) {
		t.Fatalf("second begin = %v, want ErrBusy", err)
	}
	tr.End()
	if err := tr.TryBegin(3); err != nil {
		t.Fatalf("begin after end: %v", err)
	}
	tr.Abort()
	if tr.Active() {
		t.Error("tracker still active after abort")
	}
}

func TestTracker_LifecycleActions(t *testing.T) {
	pub := &recordingPublisher{}
	tr := NewTracker(pub)

	if err := tr.TryBegin(2); err != nil {
		t.Fatalf("begin: %v", err)
	}
	tr.Increment()
	tr.Increment()
	tr.End()

	want := []string{
		bus.ActionDownloadStart,
		bus.ActionDownloadIncrement,
		bus.ActionDownloadIncrement,
		bus.ActionDownloadEnd,
	}
	got := pub.actions()
	if len(got) != len(want) {
		t.Fatalf("actions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("actions = %v, want %v", got, want)
		}
	}

	if st := tr.Snapshot(); st.CompletedUnits != 2 || st.TotalUnits != 2 {
		t.Errorf("snapshot = %+v", st)
	}
}

func TestTracker_SetTotalReannounces(t *testing.T) {
	pub := &recordingPublisher{}
	tr := NewTracker(pub)

	if err := tr.TryBegin(0); err != nil {
		t.Fatalf("begin: %v", err)
	}
	tr.SetTotal(12)

	pub.mu.Lock()
	last := pub.values[len(pub.values)-1]
	pub.mu.Unlock()
	if last.Action != bus.ActionDownloadStart || last.Total != 12 {
		t.Errorf("last value = %+v, want download-start with total 12", last)
	}
	if st := tr.Snapshot(); st.TotalUnits != 12 {
		t.Errorf("total = %d, want 12", st.TotalUnits)
	}
}

func TestTracker_IgnoresCallsWhenIdle(t *testing.T) {
	pub := &recordingPublisher{}
	tr := NewTracker(pub)

	tr.Increment()
	tr.SetTotal(9)
	tr.End()

	if got := pub.actions(); len(got) != 0 {
		t.Errorf("idle tracker published %v", got)
	}
}

func TestHalfway_FiresExactlyOnceOnCrossing(t *testing.T) {
	fired := 0
	h := NewHalfway(6, func() { fired++ })

	// Six parts: the milestone is a running sum above 300.
	reports := []struct {
		part    int
		percent float64
	}{
		{0, 10},
		{1, 20},
		{2, 100},
		{3, 100}, // sum 230, not yet
		{4, 100}, // sum 330, crosses here
		{5, 100},
	}
	for i, r := range reports {
		h.Report(r.part, r.percent)
		if i < 4 && fired != 0 {
			t.Fatalf("fired after report %d, too early", i)
		}
	}
	if fired != 1 {
		t.Fatalf("fired %d times, want 1", fired)
	}
	if !h.Fired() {
		t.Error("Fired() should report true")
	}
}

func TestHalfway_RegressionsIgnored(t *testing.T) {
	fired := 0
	h := NewHalfway(2, func() { fired++ })

	h.Report(0, 90)
	h.Report(0, 10) // stale report, must not lower the aggregate
	h.Report(1, 20)

	if fired != 1 {
		t.Fatalf("fired %d times, want 1", fired)
	}
}

func TestHalfway_OutOfRangePartIgnored(t *testing.T) {
	h := NewHalfway(2, nil)
	h.Report(-1, 100)
	h.Report(2, 100)
	if h.Fired() {
		t.Error("out-of-range reports must not fire the milestone")
	}
}

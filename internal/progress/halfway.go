package progress

import "sync"

// Halfway aggregates per-part completion percentages and fires a callback
// exactly once when the running sum crosses half the total capacity
// (parts x 100). Used to surface a single "halfway there" message while
// the six cubemap faces extract in parallel.
type Halfway struct {
	mu      sync.Mutex
	last    []float64
	fired   bool
	onCross func()
}

func NewHalfway(parts int, onCross func()) *Halfway {
	return &Halfway{
		last:    make([]float64, parts),
		onCross: onCross,
	}
}

// Report records the latest percentage [0,100] for one part. Percentages
// replace the part's previous report; regressions are ignored so the
// aggregate stays monotone.
func (h *Halfway) Report(part int, percent float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if part < 0 || part >= len(h.last) {
		return
	}
	if percent > h.last[part] {
		h.last[part] = percent
	}

	if h.fired {
		return
	}
	var sum float64
	for _, p := range h.last {
		sum += p
	}
	if sum > float64(len(h.last))*100/2 {
		h.fired = true
		if h.onCross != nil {
			h.onCross()
		}
	}
}

// Fired reports whether the milestone callback has run.
func (h *Halfway) Fired() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fired
}

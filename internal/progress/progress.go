// Package progress composes monotonic, weighted progress reporting across
// nested stages.
package progress

import "sync"

// Func receives progress updates. frac is in [0, 1].
type Func func(frac float64, msg string)

// Tracker forwards progress values to an observer, clamping them to [0, 1]
// and never letting the reported value regress within a run. A nil observer
// is valid and discards updates, so callers never need to nil-check.
type Tracker struct {
	mu      sync.Mutex
	observe Func
	last    float64
}

// NewTracker wraps an observer. observe may be nil.
func NewTracker(observe Func) *Tracker {
	return &Tracker{observe: observe}
}

// Report forwards frac to the observer. Values below the last reported value
// are clamped up to it rather than regressing the displayed progress.
func (t *Tracker) Report(frac float64, msg string) {
	t.mu.Lock()
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	if frac < t.last {
		frac = t.last
	}
	t.last = frac
	observe := t.observe
	t.mu.Unlock()

	if observe != nil {
		observe(frac, msg)
	}
}

// Value returns the last reported value.
func (t *Tracker) Value() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Stage returns a child tracker whose own 0–1 range is linearly remapped
// into [lo, hi] of this tracker. Sub-stages report their local progress and
// the parent keeps the overall value monotonic.
func (t *Tracker) Stage(lo, hi float64) *Tracker {
	if hi < lo {
		hi = lo
	}
	return NewTracker(func(frac float64, msg string) {
		t.Report(lo+(hi-lo)*frac, msg)
	})
}

package startup

import "sync"

// ScanState is the scan progress snapshot.
type ScanState struct {
	Scanned       int    `json:"scanned"`
	Total         int    `json:"total"`
	CurrentPartID string `json:"current_part_id,omitempty"`
}

// Percent returns scan completion in [0,100].
func (s ScanState) Percent() int {
	if s.Total <= 0 {
		return 0
	}
	return s.Scanned * 100 / s.Total
}

// ScanTracker folds "part scanned" signals into a monotonic completion
// count. Signals may arrive out of order or duplicated; the count never
// regresses and never exceeds the total.
type ScanTracker struct {
	mu         sync.Mutex
	scanned    int
	total      int
	partID     string
	notified   bool
	onComplete func()
}

// NewScanTracker creates a tracker. onComplete fires exactly once per run,
// when the count first reaches the total.
func NewScanTracker(onComplete func()) *ScanTracker {
	return &ScanTracker{onComplete: onComplete}
}

// PartScanned records one scan signal. ordinal is the 1-based index of the
// part within total.
func (t *ScanTracker) PartScanned(partID string, ordinal, total int) {
	t.mu.Lock()
	if total > 0 {
		t.total = total
	}
	if ordinal > t.scanned {
		t.scanned = ordinal
	}
	if t.total > 0 && t.scanned > t.total {
		t.scanned = t.total
	}
	t.partID = partID

	complete := t.total > 0 && t.scanned >= t.total && !t.notified
	if complete {
		t.notified = true
	}
	cb := t.onComplete
	t.mu.Unlock()

	// Callback runs unlocked: it re-enters the orchestrator.
	if complete && cb != nil {
		cb()
	}
}

// Complete reports whether every part has been scanned.
func (t *ScanTracker) Complete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total > 0 && t.scanned >= t.total
}

// State returns the current snapshot.
func (t *ScanTracker) State() ScanState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ScanState{Scanned: t.scanned, Total: t.total, CurrentPartID: t.partID}
}

// Reset zeroes the count for a fresh run. Only an explicit retry resets;
// within one run the count is non-decreasing.
func (t *ScanTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scanned = 0
	t.total = 0
	t.partID = ""
	t.notified = false
}

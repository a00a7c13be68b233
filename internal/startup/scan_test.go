package startup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanTrackerMonotonic(t *testing.T) {
	tr := NewScanTracker(nil)

	tr.PartScanned("head", 3, 50)
	tr.PartScanned("torso", 1, 50) // out of order: count must not regress

	st := tr.State()
	assert.Equal(t, 3, st.Scanned)
	assert.Equal(t, 50, st.Total)
	assert.Equal(t, "torso", st.CurrentPartID)
	assert.False(t, tr.Complete())
}

func TestScanTrackerNeverExceedsTotal(t *testing.T) {
	tr := NewScanTracker(nil)

	tr.PartScanned("head", 80, 50)

	assert.Equal(t, 50, tr.State().Scanned)
	assert.True(t, tr.Complete())
}

func TestScanTrackerCompletionFiresOnce(t *testing.T) {
	calls := 0
	tr := NewScanTracker(func() { calls++ })

	for i := 1; i <= 50; i++ {
		tr.PartScanned("part", i, 50)
	}
	tr.PartScanned("part", 50, 50) // duplicate final signal

	assert.Equal(t, 1, calls)
	assert.True(t, tr.Complete())
}

func TestScanTrackerResetAllowsNewRun(t *testing.T) {
	calls := 0
	tr := NewScanTracker(func() { calls++ })

	tr.PartScanned("all", 2, 2)
	assert.Equal(t, 1, calls)

	tr.Reset()
	st := tr.State()
	assert.Zero(t, st.Scanned)
	assert.Zero(t, st.Total)
	assert.Empty(t, st.CurrentPartID)
	assert.False(t, tr.Complete())

	tr.PartScanned("all", 2, 2)
	assert.Equal(t, 2, calls)
}

func TestScanStatePercent(t *testing.T) {
	assert.Equal(t, 0, ScanState{}.Percent())
	assert.Equal(t, 50, ScanState{Scanned: 25, Total: 50}.Percent())
	assert.Equal(t, 100, ScanState{Scanned: 50, Total: 50}.Percent())
}

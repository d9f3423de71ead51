package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_BarrierRound(t *testing.T) {
	tr := New[int]()
	tr.SetRequested([]string{"A", "B", "C"})

	tr.AddOrUpdate("A", 1)
	_, done := tr.IncrementAndGetCompleted()
	assert.False(t, done)

	tr.AddOrUpdate("B", 2)
	_, done = tr.IncrementAndGetCompleted()
	assert.False(t, done)

	tr.AddOrUpdate("C", 3)
	completed, done := tr.IncrementAndGetCompleted()
	assert.True(t, done)
	assert.Equal(t, 3, completed)

	buf := tr.GetBuffer()
	require.Len(t, buf, 3)
	assert.Equal(t, 1, buf["A"])
	assert.Equal(t, 2, buf["B"])
	assert.Equal(t, 3, buf["C"])
}

func TestTracker_ImmediateRemovesOnlyReportingWorld(t *testing.T) {
	tr := New[string]()
	tr.SetRequested([]string{"A", "B"})

	tr.AddOrUpdate("A", "done-a")
	tr.AddOrUpdate("B", "done-b")

	tr.Remove("A")
	buf := tr.GetBuffer()
	assert.NotContains(t, buf, "A")
	assert.Contains(t, buf, "B")
}

func TestTracker_ResetCompletedKeepsRequested(t *testing.T) {
	tr := New[int]()
	tr.SetRequested([]string{"A", "B"})
	tr.AddOrUpdate("A", 1)
	tr.IncrementAndGetCompleted()

	tr.ResetCompleted()

	assert.Empty(t, tr.GetBuffer())
	assert.ElementsMatch(t, []string{"A", "B"}, tr.Requested())
}

func TestTracker_ClearAll(t *testing.T) {
	tr := New[int]()
	tr.SetRequested([]string{"A"})
	tr.AddOrUpdate("A", 1)
	tr.IncrementAndGetCompleted()

	tr.ClearAll()

	assert.Empty(t, tr.Requested())
	assert.Empty(t, tr.GetBuffer())
}

package cargo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopHandler_AcceptsEverything(t *testing.T) {
	var h Handler = NoopHandler{}
	require.NoError(t, h.AddContainers("ship-1", []string{"c1", "c2"}))
	require.NoError(t, h.UnloadContainersAtCurrentTerminal("ship-1", []string{"port-1"}))
}

func TestTrackingHandler_AddThenUnload(t *testing.T) {
	h := NewTrackingHandler()
	require.NoError(t, h.AddContainers("ship-1", []string{"c1", "c2"}))
	assert.ElementsMatch(t, []string{"c1", "c2"}, h.ContainersAboard("ship-1"))

	require.NoError(t, h.UnloadContainersAtCurrentTerminal("ship-1", []string{"port-1"}))
	assert.Empty(t, h.ContainersAboard("ship-1"))
}

func TestTrackingHandler_AddRejectsEmptyShipID(t *testing.T) {
	h := NewTrackingHandler()
	err := h.AddContainers("", []string{"c1"})
	require.Error(t, err)
}

func TestTrackingHandler_UnloadUnknownShipIsNoop(t *testing.T) {
	h := NewTrackingHandler()
	require.NoError(t, h.UnloadContainersAtCurrentTerminal("unknown", nil))
	assert.Nil(t, h.ContainersAboard("unknown"))
}

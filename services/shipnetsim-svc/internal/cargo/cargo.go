// Package cargo models the container-cargo extension commands as an opaque
// pass-through: this module tracks container identifiers against a ship
// without interpreting cargo semantics (weight, stowage, customs), mirroring
// how the original routes these commands straight through without acting on
// their contents.
package cargo

import "fmt"

// Handler is the boundary a dispatcher calls for the two container
// pass-through commands.
type Handler interface {
	AddContainers(shipID string, containers []string) error
	UnloadContainersAtCurrentTerminal(shipID string, ports []string) error
}

// NoopHandler accepts every call and records nothing; it exists so a world
// without a real cargo integration still answers the commands instead of
// failing dispatch.
type NoopHandler struct{}

func (NoopHandler) AddContainers(shipID string, containers []string) error { return nil }
func (NoopHandler) UnloadContainersAtCurrentTerminal(shipID string, ports []string) error {
	return nil
}

// TrackingHandler records the container IDs currently assigned to each ship,
// without interpreting them, so `getNetworkSeaPorts`-adjacent queries could
// later report what's aboard.
type TrackingHandler struct {
	aboard map[string]map[string]struct{}
}

// NewTrackingHandler returns a handler with an empty assignment table.
func NewTrackingHandler() *TrackingHandler {
	return &TrackingHandler{aboard: make(map[string]map[string]struct{})}
}

func (h *TrackingHandler) AddContainers(shipID string, containers []string) error {
	if shipID == "" {
		return fmt.Errorf("cargo: shipID must not be empty")
	}
	set, ok := h.aboard[shipID]
	if !ok {
		set = make(map[string]struct{})
		h.aboard[shipID] = set
	}
	for _, c := range containers {
		set[c] = struct{}{}
	}
	return nil
}

func (h *TrackingHandler) UnloadContainersAtCurrentTerminal(shipID string, ports []string) error {
	// Ports are accepted and ignored: which terminal a container lands at is
	// outside this module's scope, matching the pass-through contract.
	set, ok := h.aboard[shipID]
	if !ok {
		return nil
	}
	for c := range set {
		delete(set, c)
	}
	return nil
}

// ContainersAboard returns the container IDs currently tracked for shipID.
func (h *TrackingHandler) ContainersAboard(shipID string) []string {
	set, ok := h.aboard[shipID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

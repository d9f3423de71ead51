// Package network models the maritime routing capability a world attaches to
// its ships: sea-port lookup, waypoint-to-waypoint route resolution, and
// point-in-time environmental sampling (wind, waves, salinity) along a route.
//
// The real network is an external geospatial dataset outside this module's
// scope; this package defines the boundary interface plus a self-contained
// stub sufficient to drive the simulator end to end.
package network

import (
	"fmt"

	"shipnetsim/services/shipnetsim-svc/internal/geo"
	"shipnetsim/services/shipnetsim-svc/internal/ship"
)

// SeaPort is one named, located point of interest a network exposes for the
// available_ports query.
type SeaPort struct {
	ID       string
	Name     string
	Location geo.Point
}

// Network is the boundary capability a world binds its ships against. A nil
// Network means the world runs resistance-only studies: ships carry their
// own synthetic path and never ask for a route or an environment sample.
type Network interface {
	Name() string
	SeaPorts() []SeaPort
	// Route resolves a sequence of waypoints into a continuous path and its
	// constituent line segments. Waypoints not already known ports are
	// accepted as-is provided they pass WGS-84 validation.
	Route(waypoints []geo.Point) ([]geo.Point, []geo.Line, error)
	// SampleEnvironment returns the environmental conditions at a position
	// and simulated time, for the simulator to feed into a ship's Sail call.
	SampleEnvironment(p geo.Point, simTime float64) ship.Environment
}

// StubNetwork is a minimal, deterministic Network: routes are the waypoints
// connected in order via great-circle segments, and the environment is
// flat calm water everywhere. It exists to exercise the simulator loop
// without depending on any real chart data.
type StubNetwork struct {
	name  string
	ports []SeaPort
}

// NewStubNetwork builds a StubNetwork with the given name and a fixed set of
// known sea ports (used only to answer the available_ports query).
func NewStubNetwork(name string, ports []SeaPort) *StubNetwork {
	return &StubNetwork{name: name, ports: ports}
}

func (n *StubNetwork) Name() string { return n.name }

func (n *StubNetwork) SeaPorts() []SeaPort {
	out := make([]SeaPort, len(n.ports))
	copy(out, n.ports)
	return out
}

func (n *StubNetwork) Route(waypoints []geo.Point) ([]geo.Point, []geo.Line, error) {
	if len(waypoints) < 2 {
		return nil, nil, fmt.Errorf("network: route requires at least two waypoints, got %d", len(waypoints))
	}
	for i, p := range waypoints {
		if err := p.Validate(); err != nil {
			return nil, nil, fmt.Errorf("network: waypoint %d: %w", i, err)
		}
	}
	points, lines := geo.BuildPath(waypoints)
	return points, lines, nil
}

func (n *StubNetwork) SampleEnvironment(p geo.Point, simTime float64) ship.Environment {
	_ = p
	_ = simTime
	return ship.Environment{
		Salinity:      35.0,
		WaveHeight:    0,
		WaveFrequency: 0,
		WaveLength:    0,
		WindEast:      0,
		WindNorth:     0,
	}
}

// PortByID looks up a known sea port by ID, for commands that reference a
// port without walking the whole SeaPorts() slice.
func PortByID(n Network, id string) (SeaPort, bool) {
	for _, p := range n.SeaPorts() {
		if p.ID == id {
			return p, true
		}
	}
	return SeaPort{}, false
}

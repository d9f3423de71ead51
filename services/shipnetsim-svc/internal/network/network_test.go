package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipnetsim/services/shipnetsim-svc/internal/geo"
)

func TestStubNetwork_RouteConnectsWaypointsInOrder(t *testing.T) {
	n := NewStubNetwork("test-network", nil)
	waypoints := []geo.Point{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}, {Lon: 2, Lat: 0}}

	points, lines, err := n.Route(waypoints)
	require.NoError(t, err)
	assert.Equal(t, waypoints, points)
	require.Len(t, lines, 2)
	assert.Equal(t, waypoints[0], lines[0].From)
	assert.Equal(t, waypoints[1], lines[0].To)
	assert.Greater(t, lines[0].Length, 0.0)
}

func TestStubNetwork_RouteRejectsSingleWaypoint(t *testing.T) {
	n := NewStubNetwork("test-network", nil)
	_, _, err := n.Route([]geo.Point{{Lon: 0, Lat: 0}})
	assert.Error(t, err)
}

func TestStubNetwork_RouteRejectsInvalidCoordinate(t *testing.T) {
	n := NewStubNetwork("test-network", nil)
	_, _, err := n.Route([]geo.Point{{Lon: 0, Lat: 0}, {Lon: 200, Lat: 0}})
	assert.Error(t, err)
}

func TestStubNetwork_SeaPortsLookup(t *testing.T) {
	ports := []SeaPort{
		{ID: "P1", Name: "Port One", Location: geo.Point{Lon: 1, Lat: 1}},
		{ID: "P2", Name: "Port Two", Location: geo.Point{Lon: 2, Lat: 2}},
	}
	n := NewStubNetwork("test-network", ports)

	assert.Len(t, n.SeaPorts(), 2)

	p, ok := PortByID(n, "P2")
	require.True(t, ok)
	assert.Equal(t, "Port Two", p.Name)

	_, ok = PortByID(n, "missing")
	assert.False(t, ok)
}

func TestStubNetwork_SampleEnvironmentIsCalmWater(t *testing.T) {
	n := NewStubNetwork("test-network", nil)
	env := n.SampleEnvironment(geo.Point{Lon: 0, Lat: 0}, 123.0)
	assert.Equal(t, 35.0, env.Salinity)
	assert.Equal(t, 0.0, env.WaveHeight)
}

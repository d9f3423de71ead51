package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipnetsim/pkg/cache"
	"shipnetsim/services/shipnetsim-svc/internal/geo"
	"shipnetsim/services/shipnetsim-svc/internal/network"
	"shipnetsim/services/shipnetsim-svc/internal/ship"
	"shipnetsim/services/shipnetsim-svc/internal/simulator"
)

func testNetworkFactory(path, name string) (network.Network, error) {
	return network.NewStubNetwork(name, nil), nil
}

func newTestShip(t *testing.T, id string) ship.Ship {
	t.Helper()
	def := &ship.Definition{
		ID:                             id,
		MaxSpeed:                       10,
		WaterlineLength:                50,
		EngineOperationalPowerSettings: [4]float64{500, 1000, 1500, 2000},
		VesselWeight:                   1000,
		TankSize:                       10000,
		TankDepthOfDischarge:           80,
		FuelType:                       "HFO",
	}
	waypoints := []geo.Point{{Lon: 0, Lat: 0}, {Lon: 0, Lat: 0.01}}
	net := network.NewStubNetwork("test", nil)
	points, lines, err := net.Route(waypoints)
	require.NoError(t, err)
	return ship.New(def, points, lines)
}

func TestCoordinator_LoadNetworkThenCreateEnvironment(t *testing.T) {
	c := New(testNetworkFactory, nil)
	var events []string
	c.OnEvent = func(name string, data any) { events = append(events, name) }

	ctx := context.Background()
	require.NoError(t, c.LoadNetwork(ctx, "default", "w1"))
	require.True(t, c.Registry().Contains("w1"))

	sh := newTestShip(t, "ship-1")
	require.NoError(t, c.CreateEnvironment(ctx, "w1", []ship.Ship{sh}, simulator.Config{DT: 1}, ModeImmediate))

	assert.Contains(t, events, "networkLoaded")
	assert.Contains(t, events, "created")
}

func TestCoordinator_CreateEnvironmentUnknownWorldFails(t *testing.T) {
	c := New(testNetworkFactory, nil)
	var gotError bool
	c.OnEvent = func(name string, data any) {
		if name == "errorOccurred" {
			gotError = true
		}
	}

	err := c.CreateEnvironment(context.Background(), "missing", nil, simulator.Config{DT: 1}, ModeImmediate)
	require.Error(t, err)
	assert.True(t, gotError)
}

func TestCoordinator_AddShipsAndShipState(t *testing.T) {
	c := New(testNetworkFactory, nil)
	ctx := context.Background()
	require.NoError(t, c.LoadNetwork(ctx, "default", "w1"))
	require.NoError(t, c.CreateEnvironment(ctx, "w1", nil, simulator.Config{DT: 1}, ModeImmediate))

	sh := newTestShip(t, "ship-1")
	require.NoError(t, c.AddShips(ctx, "w1", []ship.Ship{sh}))

	got, err := c.ShipState(ctx, "w1", "ship-1")
	require.NoError(t, err)
	assert.Equal(t, "ship-1", got.ID())
}

func TestCoordinator_ShipStateUnknownShipFails(t *testing.T) {
	c := New(testNetworkFactory, nil)
	ctx := context.Background()
	require.NoError(t, c.LoadNetwork(ctx, "default", "w1"))

	_, err := c.ShipState(ctx, "w1", "nope")
	assert.Error(t, err)
}

func TestCoordinator_RunForAdvancesAndReportsImmediate(t *testing.T) {
	c := New(testNetworkFactory, nil)
	ctx := context.Background()
	require.NoError(t, c.LoadNetwork(ctx, "default", "w1"))

	sh := newTestShip(t, "ship-1")
	require.NoError(t, c.CreateEnvironment(ctx, "w1", []ship.Ship{sh}, simulator.Config{DT: 1}, ModeImmediate))
	require.NoError(t, c.AddShips(ctx, "w1", []ship.Ship{sh}))

	var advanced bool
	c.OnEvent = func(name string, data any) {
		if name == "advanced" {
			advanced = true
		}
	}

	require.NoError(t, c.RunFor(ctx, []string{"w1"}, 5, false, false))
	assert.True(t, advanced)
}

func TestCoordinator_PauseResumeTerminate(t *testing.T) {
	c := New(testNetworkFactory, nil)
	ctx := context.Background()
	require.NoError(t, c.LoadNetwork(ctx, "default", "w1"))
	require.NoError(t, c.CreateEnvironment(ctx, "w1", nil, simulator.Config{DT: 1}, ModeImmediate))

	require.NoError(t, c.Pause(ctx, []string{"w1"}))
	require.NoError(t, c.Resume(ctx, []string{"w1"}))
	require.NoError(t, c.Terminate(ctx, []string{"w1"}))

	snap, err := c.CurrentState(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "terminated", snap.State)
}

func TestCoordinator_AvailablePorts(t *testing.T) {
	c := New(func(path, name string) (network.Network, error) {
		return network.NewStubNetwork(name, []network.SeaPort{
			{ID: "port-a", Name: "A", Location: geo.Point{Lon: 0, Lat: 0}},
		}), nil
	}, nil)
	ctx := context.Background()
	require.NoError(t, c.LoadNetwork(ctx, "default", "w1"))

	var gotPorts []string
	c.OnEvent = func(name string, data any) {
		if name == "portsAvailable" {
			m := data.(map[string]any)
			gotPorts = m["ports"].([]string)
		}
	}

	require.NoError(t, c.AvailablePorts(ctx, []string{"w1"}, false))
	assert.Equal(t, []string{"port-a"}, gotPorts)
}

func TestCoordinator_CurrentResultsReplaysFromCache(t *testing.T) {
	c := New(testNetworkFactory, nil)
	c.SetResultsCache(cache.NewMemoryCache(cache.DefaultOptions()))
	ctx := context.Background()
	require.NoError(t, c.LoadNetwork(ctx, "default", "w1"))
	require.NoError(t, c.CreateEnvironment(ctx, "w1", nil, simulator.Config{DT: 1}, ModeImmediate))

	var cachedFlags []bool
	c.OnEvent = func(name string, data any) {
		if name == "resultsAvailable" {
			m := data.(map[string]any)
			cachedFlags = append(cachedFlags, m["cached"].(bool))
		}
	}

	first, err := c.CurrentResults(ctx, []string{"w1"})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := c.CurrentResults(ctx, []string{"w1"})
	require.NoError(t, err)
	require.Len(t, second, 1)

	assert.Equal(t, []bool{false, true}, cachedFlags)
	assert.Equal(t, first[0].NetworkName, second[0].NetworkName)
}

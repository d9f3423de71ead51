package simulator

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipnetsim/services/shipnetsim-svc/internal/geo"
	"shipnetsim/services/shipnetsim-svc/internal/network"
	"shipnetsim/services/shipnetsim-svc/internal/ship"
	"shipnetsim/services/shipnetsim-svc/internal/sinks"
)

func newTestShip(t *testing.T, id string, maxSpeedMPS float64) ship.Ship {
	t.Helper()
	def := &ship.Definition{
		ID:                             id,
		MaxSpeed:                       maxSpeedMPS,
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

func newTestSimulator(t *testing.T, ships []ship.Ship, dt float64) (*Simulator, string) {
	t.Helper()
	dir := t.TempDir()
	trajPath := filepath.Join(dir, "trajectory.csv")
	summaryPath := filepath.Join(dir, "summary.txt")

	traj := sinks.NewTrajectorySink(trajPath, sinks.TimeSteppedHeader)
	summary := sinks.NewSummarySink(summaryPath)
	net := network.NewStubNetwork("test", nil)

	sim, err := New(net, ships, Config{DT: dt, TrajectoryEnabled: true}, traj, summary)
	require.NoError(t, err)
	return sim, summaryPath
}

func TestSimulator_ConstructionRejectsNilNetwork(t *testing.T) {
	_, err := New(nil, nil, Config{}, nil, nil)
	assert.Error(t, err)
}

func TestSimulator_ConstructionAllowsNilNetworkForResistanceOnly(t *testing.T) {
	_, err := New(nil, nil, Config{ResistanceOnly: true}, nil, nil)
	assert.NoError(t, err)
}

func TestSimulator_RunForAdvancesShipAndFinishes(t *testing.T) {
	sh := newTestShip(t, "S1", 5.0)
	sim, summaryPath := newTestSimulator(t, []ship.Ship{sh}, 1.0)

	require.NoError(t, sim.Initialize(true))
	err := sim.RunFor(context.Background(), 10000, true, false)
	require.NoError(t, err)

	assert.Equal(t, StateFinished, sim.State())
	assert.True(t, sh.IsReachedDestination())

	data, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ReachedDestinationCount")
}

func TestSimulator_PauseBlocksRunForUntilResume(t *testing.T) {
	sh := newTestShip(t, "S1", 5.0)
	sim, _ := newTestSimulator(t, []ship.Ship{sh}, 1.0)
	require.NoError(t, sim.Initialize(true))

	sim.Pause()
	assert.Equal(t, StatePaused, sim.State())

	done := make(chan error, 1)
	go func() {
		done <- sim.RunFor(context.Background(), 5, false, false)
	}()

	sim.Resume()
	err := <-done
	require.NoError(t, err)
}

func TestSimulator_TerminateStopsRunFor(t *testing.T) {
	sh := newTestShip(t, "S1", 0.001) // very slow, would otherwise run a long time
	sim, _ := newTestSimulator(t, []ship.Ship{sh}, 1.0)
	require.NoError(t, sim.Initialize(true))

	sim.Terminate()
	err := sim.RunFor(context.Background(), 100000, false, false)
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, sim.State())
}

func TestSimulator_RestartResetsClockAndShips(t *testing.T) {
	sh := newTestShip(t, "S1", 5.0)
	sim, _ := newTestSimulator(t, []ship.Ship{sh}, 1.0)
	require.NoError(t, sim.Initialize(true))
	require.NoError(t, sim.RunFor(context.Background(), 10000, false, false))
	assert.True(t, sh.IsReachedDestination())

	require.NoError(t, sim.Restart())
	assert.Equal(t, 0.0, sim.Clock())
	assert.False(t, sh.IsReachedDestination())
}

func TestSimulator_RunForInfiniteDurationRunsToCompletion(t *testing.T) {
	sh := newTestShip(t, "S1", 5.0)
	sim, _ := newTestSimulator(t, []ship.Ship{sh}, 1.0)
	require.NoError(t, sim.Initialize(true))

	err := sim.RunFor(context.Background(), math.Inf(1), false, false)
	require.NoError(t, err)

	assert.True(t, sh.IsReachedDestination())
	assert.Greater(t, sim.Clock(), 0.0)
}

func TestSimulator_ExternallyControlledRunForBlocksUntilShipAdded(t *testing.T) {
	sim, _ := newTestSimulator(t, nil, 1.0)
	sim.cfg.ExternallyControlled = true
	require.NoError(t, sim.Initialize(true))

	done := make(chan error, 1)
	go func() {
		done <- sim.RunFor(context.Background(), 100, false, false)
	}()

	select {
	case <-done:
		t.Fatal("RunFor returned before any ship was added")
	case <-time.After(50 * time.Millisecond):
	}

	sh := newTestShip(t, "late", 5.0)
	sh.Load()
	sim.AddShip(sh)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunFor never woke up after AddShip")
	}
}

func TestSimulator_ExternallyControlledRunForWakesOnContextCancel(t *testing.T) {
	sim, _ := newTestSimulator(t, nil, 1.0)
	sim.cfg.ExternallyControlled = true
	require.NoError(t, sim.Initialize(true))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- sim.RunFor(ctx, 100, false, false)
	}()

	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunFor never observed context cancellation")
	}
}

func TestAdmitLoading_RefusesWhileOriginShipStillClearing(t *testing.T) {
	slow := newTestShip(t, "slow", 0.01)
	fast := newTestShip(t, "fast", 5.0)
	sim, _ := newTestSimulator(t, []ship.Ship{slow, fast}, 1.0)

	slow.Load()
	assert.False(t, sim.admitLoading(fast))
}

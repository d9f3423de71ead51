// Package coordinator is the process-singleton facade over the world
// registry: every inbound command (from the broker or a direct in-process
// caller) funnels through here, gets posted onto the named world's worker,
// and its result is aggregated across worlds per that world's configured
// discipline before being handed back as an outbound event.
//
// Grounded on the teacher's service-facade shape (each exported method opens
// a span, validates preconditions, delegates to a narrower collaborator, and
// reports outcome via telemetry), generalized from a single gRPC struct to a
// worker-per-world dispatch model.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"shipnetsim/pkg/apperror"
	"shipnetsim/pkg/cache"
	"shipnetsim/pkg/telemetry"
	"shipnetsim/services/shipnetsim-svc/internal/cargo"
	"shipnetsim/services/shipnetsim-svc/internal/network"
	"shipnetsim/services/shipnetsim-svc/internal/results"
	"shipnetsim/services/shipnetsim-svc/internal/ship"
	"shipnetsim/services/shipnetsim-svc/internal/simulator"
	"shipnetsim/services/shipnetsim-svc/internal/sinks"
	"shipnetsim/services/shipnetsim-svc/internal/tracker"
	"shipnetsim/services/shipnetsim-svc/internal/world"
)

// AggregationMode is the per-world discipline captured at CreateEnvironment,
// deciding how a multi-world command's completions are batched into outbound
// events.
type AggregationMode string

const (
	// ModeBarrier waits for every requested world to report before emitting
	// one cross-world signal ("Async" in the original's naming).
	ModeBarrier AggregationMode = "barrier"
	// ModeImmediate emits a signal as soon as each world reports, carrying
	// only that world's partial result ("Sync" in the original's naming).
	ModeImmediate AggregationMode = "immediate"
)

// NetworkFactory builds a Network instance from a path argument ("default"
// selects a built-in stub).
type NetworkFactory func(path, name string) (network.Network, error)

// Coordinator is the single point of entry for every world-scoped command.
type Coordinator struct {
	registry    *world.Registry
	newNetwork  NetworkFactory
	cargoHandle cargo.Handler

	// resultsCache, when set, serves current_results replays for a round
	// already packaged by a prior call without re-invoking the world. A
	// cache miss or a nil cache simply rebuilds the result; caching here is
	// strictly best-effort.
	resultsCache cache.Cache

	// outputDir is where each simulator's trajectory/summary artifacts land.
	// Empty means "ask the OS for the user's home directory."
	outputDir string

	// resistanceStrategy drives every resistance-only world's study. Set once
	// at construction; swap it with SetResistanceStrategy for a caller that
	// wants different hydrodynamic coefficients.
	resistanceStrategy simulator.CalmResistanceStrategy

	mu          sync.Mutex
	modes       map[string]AggregationMode
	usedSerials map[string]bool

	runForTracker    *tracker.Tracker[bool]
	pauseTracker     *tracker.Tracker[bool]
	resumeTracker    *tracker.Tracker[bool]
	terminateTracker *tracker.Tracker[bool]
	restartTracker   *tracker.Tracker[bool]
	portsTracker     *tracker.Tracker[[]string]
	resultsTracker   *tracker.Tracker[results.ShipsResults]

	// OnEvent receives every outbound signal this coordinator emits. It must
	// not block or call back into the coordinator.
	OnEvent func(name string, data any)
}

// New returns a Coordinator with an empty world registry.
func New(newNetwork NetworkFactory, cargoHandle cargo.Handler) *Coordinator {
	if cargoHandle == nil {
		cargoHandle = cargo.NoopHandler{}
	}
	return &Coordinator{
		registry:           world.NewRegistry(),
		newNetwork:         newNetwork,
		cargoHandle:        cargoHandle,
		modes:              make(map[string]AggregationMode),
		resistanceStrategy: simulator.NewDefaultCalmResistanceStrategy(),
		runForTracker:      tracker.New[bool](),
		pauseTracker:       tracker.New[bool](),
		resumeTracker:      tracker.New[bool](),
		terminateTracker:   tracker.New[bool](),
		restartTracker:     tracker.New[bool](),
		portsTracker:       tracker.New[[]string](),
		resultsTracker:     tracker.New[results.ShipsResults](),
	}
}

// SetResistanceStrategy overrides the hydrodynamic model used by every
// subsequent resistance-only study. Passing nil restores the default.
func (c *Coordinator) SetResistanceStrategy(strategy simulator.CalmResistanceStrategy) {
	if strategy == nil {
		strategy = simulator.NewDefaultCalmResistanceStrategy()
	}
	c.resistanceStrategy = strategy
}

// SetOutputDir overrides the directory new simulators write their
// trajectory/summary artifacts into. An empty dir falls back to the user's
// home directory at each CreateEnvironment call.
func (c *Coordinator) SetOutputDir(dir string) {
	c.outputDir = dir
}

// nextSerial returns the creation-time serial used in artifact filenames:
// the wall clock in milliseconds, per §6, unless that value was already
// handed out this process (two worlds created in the same millisecond), in
// which case a short uuid suffix disambiguates it.
func (c *Coordinator) nextSerial() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.usedSerials == nil {
		c.usedSerials = make(map[string]bool)
	}
	serial := fmt.Sprintf("%d", time.Now().UnixMilli())
	if c.usedSerials[serial] {
		serial = serial + "-" + uuid.NewString()[:8]
	}
	c.usedSerials[serial] = true
	return serial
}

// SetResultsCache installs a best-effort cache for current_results replays.
// Passing nil disables caching.
func (c *Coordinator) SetResultsCache(rc cache.Cache) {
	c.resultsCache = rc
}

// Emit publishes an outbound event through OnEvent. Dispatch uses this for
// commands that have no other coordinator call to make (checkConnection,
// restServer) or whose cargo pass-through has no tracked completion signal.
func (c *Coordinator) Emit(name string, data any) {
	c.emit(name, data)
}

func (c *Coordinator) emit(name string, data any) {
	if c.OnEvent != nil {
		c.OnEvent(name, data)
	}
}

func (c *Coordinator) fail(ctx context.Context, err *apperror.Error) {
	telemetry.SetError(ctx, err)
	c.emit("errorOccurred", err.ToBrokerEvent())
}

// LoadNetwork creates (or replaces) the named world with a freshly built
// network. An existing world under the same name is removed first.
func (c *Coordinator) LoadNetwork(ctx context.Context, path, name string) error {
	ctx, span := telemetry.StartSpan(ctx, "Coordinator.LoadNetwork")
	defer span.End()

	if c.registry.Contains(name) {
		c.registry.Remove(name)
	}

	net, err := c.newNetwork(path, name)
	if err != nil {
		appErr := apperror.Wrap(err, apperror.CodeNullNetwork, "failed to load network").WithField(name)
		c.fail(ctx, appErr)
		return appErr
	}

	w := world.New(name, net)
	c.registry.AddOrUpdate(name, w)
	c.emit("networkLoaded", name)
	return nil
}

// CreateEnvironment constructs a simulator on the named world's worker and
// records the aggregation mode for later multi-world commands.
func (c *Coordinator) CreateEnvironment(ctx context.Context, name string, ships []ship.Ship, cfg simulator.Config, mode AggregationMode) error {
	ctx, span := telemetry.StartSpan(ctx, "Coordinator.CreateEnvironment",
		telemetry.WithAttributes(telemetry.WorldAttributes(name, string(mode), len(ships))...))
	defer span.End()

	w, ok := c.registry.Get(name)
	if !ok {
		appErr := apperror.New(apperror.CodeUnknownWorld, "no such world").WithField(name)
		c.fail(ctx, appErr)
		return appErr
	}

	outputDir := c.outputDir
	if outputDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			outputDir = home
		}
	}
	serial := c.nextSerial()
	header := sinks.TimeSteppedHeader
	if cfg.ResistanceOnly {
		header = sinks.ResistanceStudyHeader
	}
	trajectory := sinks.NewTrajectorySink(filepath.Join(outputDir, fmt.Sprintf("shipTrajectory_%s.csv", serial)), header)
	summary := sinks.NewSummarySink(filepath.Join(outputDir, fmt.Sprintf("shipSummary_%s.txt", serial)))

	var buildErr error
	w.Invoke(func() {
		sim, err := simulator.New(w.Network(), ships, cfg, trajectory, summary)
		if err != nil {
			buildErr = err
			return
		}
		w.SetSimulator(sim)
		if err := sim.Initialize(false); err != nil {
			buildErr = err
		}
	})
	if buildErr != nil {
		appErr := apperror.Wrap(buildErr, apperror.CodeInternal, "failed to create environment").WithField(name)
		c.fail(ctx, appErr)
		return appErr
	}

	c.mu.Lock()
	c.modes[name] = mode
	c.mu.Unlock()

	c.emit("created", name)
	return nil
}

// AddShips installs ships into the named world's simulator and ship index.
func (c *Coordinator) AddShips(ctx context.Context, name string, ships []ship.Ship) error {
	ctx, span := telemetry.StartSpan(ctx, "Coordinator.AddShips",
		telemetry.WithAttributes(telemetry.WorldAttributes(name, "", len(ships))...))
	defer span.End()

	w, ok := c.registry.Get(name)
	if !ok {
		appErr := apperror.New(apperror.CodeUnknownWorld, "no such world").WithField(name)
		c.fail(ctx, appErr)
		return appErr
	}

	ids := make([]string, 0, len(ships))
	w.Invoke(func() {
		for _, sh := range ships {
			w.AddShip(sh)
			if w.Simulator() != nil {
				w.Simulator().AddShip(sh)
			}
			ids = append(ids, sh.ID())
		}
	})

	c.emit("shipsAdded", map[string]any{"world": name, "ids": ids})
	return nil
}

func (c *Coordinator) modeFor(name string) AggregationMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.modes[name]; ok {
		return m
	}
	return ModeImmediate
}

// eachWorld resolves names to *world.World, reporting (via the supplied
// apperror code) and skipping any name absent from the registry.
func (c *Coordinator) eachWorld(ctx context.Context, names []string, missingCode apperror.ErrorCode) []*world.World {
	out := make([]*world.World, 0, len(names))
	for _, n := range names {
		w, ok := c.registry.Get(n)
		if !ok {
			c.fail(ctx, apperror.New(missingCode, "no such world").WithField(n))
			continue
		}
		out = append(out, w)
	}
	return out
}

// RunFor advances every named world's simulator by duration seconds,
// setting each world's busy flag for the duration of the step and emitting
// aggregated or per-world completion signals per that world's mode.
func (c *Coordinator) RunFor(ctx context.Context, names []string, duration float64, endAfterRun, emitStepSignal bool) error {
	ctx, span := telemetry.StartSpan(ctx, "Coordinator.RunFor")
	defer span.End()

	worlds := c.eachWorld(ctx, names, apperror.CodeUnknownWorld)
	if len(worlds) == 0 {
		return apperror.New(apperror.CodeUnknownWorld, "no valid worlds in request")
	}

	c.runForTracker.SetRequested(names)

	var wg sync.WaitGroup
	for _, w := range worlds {
		w := w
		wg.Add(1)
		c.registry.SetBusy(w.Name(), true)
		go func() {
			defer wg.Done()
			var runErr error
			w.Invoke(func() {
				sim := w.Simulator()
				if sim == nil {
					runErr = fmt.Errorf("world %q has no simulator", w.Name())
					return
				}
				if sim.IsResistanceOnly() {
					runErr = sim.StudyShipsResistance(c.resistanceStrategy)
					return
				}
				runErr = sim.RunFor(ctx, duration, endAfterRun, emitStepSignal)
			})
			c.registry.SetBusy(w.Name(), false)

			if runErr != nil {
				c.fail(ctx, apperror.Wrap(runErr, apperror.CodeInternal, "run_for failed").WithField(w.Name()))
				return
			}

			c.reportWorldCompletion(w.Name(), c.runForTracker, true, "advanced")
		}()
	}
	wg.Wait()
	return nil
}

// reportWorldCompletion records a single world's completion in tracker and
// emits either a per-world (Immediate) or batched (Barrier) signal per the
// world's aggregation mode.
func (c *Coordinator) reportWorldCompletion(name string, tr *tracker.Tracker[bool], value bool, eventName string) {
	tr.AddOrUpdate(name, value)

	if c.modeFor(name) == ModeImmediate {
		c.emit(eventName, map[string]any{"world": name})
		tr.Remove(name)
		return
	}

	if _, done := tr.IncrementAndGetCompleted(); done {
		buf := tr.GetBuffer()
		names := make([]string, 0, len(buf))
		for n := range buf {
			names = append(names, n)
		}
		c.emit(eventName, map[string]any{"worlds": names})
		tr.ResetCompleted()
	}
}

// Pause pauses every named world's simulator.
func (c *Coordinator) Pause(ctx context.Context, names []string) error {
	return c.simpleLifecycle(ctx, names, c.pauseTracker, "paused", func(sim *simulator.Simulator) { sim.Pause() })
}

// Resume resumes every named world's simulator.
func (c *Coordinator) Resume(ctx context.Context, names []string) error {
	return c.simpleLifecycle(ctx, names, c.resumeTracker, "resumed", func(sim *simulator.Simulator) { sim.Resume() })
}

// Terminate stops every named world's simulator.
func (c *Coordinator) Terminate(ctx context.Context, names []string) error {
	return c.simpleLifecycle(ctx, names, c.terminateTracker, "terminated", func(sim *simulator.Simulator) { sim.Terminate() })
}

// Restart resets every named world's simulator to its Created state.
func (c *Coordinator) Restart(ctx context.Context, names []string) error {
	var firstErr error
	err := c.simpleLifecycleErr(ctx, names, c.restartTracker, "restarted", func(sim *simulator.Simulator) error {
		return sim.Restart()
	})
	if err != nil {
		firstErr = err
	}
	return firstErr
}

func (c *Coordinator) simpleLifecycle(ctx context.Context, names []string, tr *tracker.Tracker[bool], eventName string, fn func(*simulator.Simulator)) error {
	return c.simpleLifecycleErr(ctx, names, tr, eventName, func(sim *simulator.Simulator) error {
		fn(sim)
		return nil
	})
}

func (c *Coordinator) simpleLifecycleErr(ctx context.Context, names []string, tr *tracker.Tracker[bool], eventName string, fn func(*simulator.Simulator) error) error {
	worlds := c.eachWorld(ctx, names, apperror.CodeUnknownWorld)
	if len(worlds) == 0 {
		return apperror.New(apperror.CodeUnknownWorld, "no valid worlds in request")
	}
	tr.SetRequested(names)

	for _, w := range worlds {
		w := w
		var callErr error
		w.Invoke(func() {
			sim := w.Simulator()
			if sim == nil {
				callErr = fmt.Errorf("world %q has no simulator", w.Name())
				return
			}
			callErr = fn(sim)
		})
		if callErr != nil {
			c.fail(ctx, apperror.Wrap(callErr, apperror.CodeInternal, eventName+" failed").WithField(w.Name()))
			continue
		}
		c.reportWorldCompletion(w.Name(), tr, true, eventName)
	}
	return nil
}

// Finalize invokes Simulator.Finalize on each named world.
func (c *Coordinator) Finalize(ctx context.Context, names []string) error {
	ctx, span := telemetry.StartSpan(ctx, "Coordinator.Finalize")
	defer span.End()

	worlds := c.eachWorld(ctx, names, apperror.CodeUnknownWorld)
	for _, w := range worlds {
		var err error
		w.Invoke(func() {
			if sim := w.Simulator(); sim != nil {
				err = sim.Finalize()
			}
		})
		if err != nil {
			c.fail(ctx, apperror.Wrap(err, apperror.CodeInternal, "finalize failed").WithField(w.Name()))
		}
	}
	c.emit("finalized", names)
	return nil
}

// AvailablePorts reports each named world's sea port IDs, aggregated per
// mode. onlyOnPaths is not applied: every port of the network is reported.
func (c *Coordinator) AvailablePorts(ctx context.Context, names []string, onlyOnPaths bool) error {
	ctx, span := telemetry.StartSpan(ctx, "Coordinator.AvailablePorts")
	defer span.End()

	worlds := c.eachWorld(ctx, names, apperror.CodeUnknownWorld)
	c.portsTracker.SetRequested(names)

	for _, w := range worlds {
		w := w
		c.registry.SetBusy(w.Name(), true)
		var ids []string
		w.Invoke(func() {
			for _, p := range w.Network().SeaPorts() {
				ids = append(ids, p.ID)
			}
		})
		c.registry.SetBusy(w.Name(), false)

		c.portsTracker.AddOrUpdate(w.Name(), ids)
		if c.modeFor(w.Name()) == ModeImmediate {
			c.emit("portsAvailable", map[string]any{"world": w.Name(), "ports": ids})
			c.portsTracker.Remove(w.Name())
		} else if _, done := c.portsTracker.IncrementAndGetCompleted(); done {
			c.emit("portsAvailable", c.portsTracker.GetBuffer())
			c.portsTracker.ResetCompleted()
		}
	}
	return nil
}

// CurrentResults packages each named world's current summary into a
// ShipsResults payload. No trajectory is attached: results.Build receives
// an empty trajectory path, so TrajectoryIncluded is false and both file
// names are empty.
func (c *Coordinator) CurrentResults(ctx context.Context, names []string) ([]results.ShipsResults, error) {
	ctx, span := telemetry.StartSpan(ctx, "Coordinator.CurrentResults")
	defer span.End()

	worlds := c.eachWorld(ctx, names, apperror.CodeUnknownWorld)
	out := make([]results.ShipsResults, 0, len(worlds))

	for _, w := range worlds {
		w := w
		var summaryText, trajectoryPath string
		var clock float64
		w.Invoke(func() {
			if sim := w.Simulator(); sim != nil {
				summaryText = sim.GenerateSummary()
				clock = sim.Clock()
			}
		})

		key := resultsCacheKey(w.Name(), clock)
		if cached, ok := c.getCachedResults(ctx, key); ok {
			out = append(out, cached)
			c.emit("resultsAvailable", map[string]any{"world": w.Name(), "cached": true})
			continue
		}

		r, err := results.Build(w.Network().Name(), summaryText, trajectoryPath, "")
		if err != nil {
			c.fail(ctx, apperror.Wrap(err, apperror.CodeInternal, "failed to build results").WithField(w.Name()))
			continue
		}
		out = append(out, r)
		c.putCachedResults(ctx, key, r)
		c.emit("resultsAvailable", map[string]any{"world": w.Name(), "cached": false})
	}
	return out, nil
}

// resultsCacheKey identifies one world's results at a given simulated-clock
// round, so a repeat current_results call within the same round replays
// without rebuilding the payload.
func resultsCacheKey(worldName string, clock float64) string {
	return fmt.Sprintf("results:%s:%d", worldName, int64(clock*1000))
}

func (c *Coordinator) getCachedResults(ctx context.Context, key string) (results.ShipsResults, bool) {
	if c.resultsCache == nil {
		return results.ShipsResults{}, false
	}
	data, err := c.resultsCache.Get(ctx, key)
	if err != nil {
		return results.ShipsResults{}, false
	}
	r, err := results.FromJSON(data)
	if err != nil {
		return results.ShipsResults{}, false
	}
	return r, true
}

func (c *Coordinator) putCachedResults(ctx context.Context, key string, r results.ShipsResults) {
	if c.resultsCache == nil {
		return
	}
	data, err := results.ToJSON(r)
	if err != nil {
		return
	}
	_ = c.resultsCache.Set(ctx, key, data, 5*time.Minute)
}

// WorldStateSnapshot is a structured view of one world's simulator returned
// by CurrentState.
type WorldStateSnapshot struct {
	Name          string
	State         string
	Clock         float64
	ShipsCount    int
	ProgressKnown bool
}

// CurrentState returns a synchronous structured snapshot of the named
// world's simulator.
func (c *Coordinator) CurrentState(ctx context.Context, name string) (WorldStateSnapshot, error) {
	w, ok := c.registry.Get(name)
	if !ok {
		appErr := apperror.New(apperror.CodeUnknownWorld, "no such world").WithField(name)
		c.fail(ctx, appErr)
		return WorldStateSnapshot{}, appErr
	}

	var snap WorldStateSnapshot
	w.Invoke(func() {
		snap.Name = name
		if sim := w.Simulator(); sim != nil {
			snap.State = string(sim.State())
			snap.Clock = sim.Clock()
			snap.ProgressKnown = true
		}
		snap.ShipsCount = len(w.Ships())
	})
	return snap, nil
}

// ShipState requests the named ship's current state from the named world.
func (c *Coordinator) ShipState(ctx context.Context, name, shipID string) (ship.Ship, error) {
	sh, found, err := c.registry.GetShipByID(name, shipID)
	if err != nil {
		appErr := apperror.New(apperror.CodeUnknownWorld, err.Error()).WithField(name)
		c.fail(ctx, appErr)
		return nil, appErr
	}
	if !found {
		appErr := apperror.New(apperror.CodeUnknownShip, "no such ship").WithField(shipID)
		c.fail(ctx, appErr)
		return nil, appErr
	}
	c.emit("shipState", map[string]any{"world": name, "shipId": shipID})
	return sh, nil
}

// Registry exposes the underlying world registry, for ship-loading helpers
// and the broker's dispatch layer.
func (c *Coordinator) Registry() *world.Registry { return c.registry }

// CargoHandler exposes the configured cargo pass-through handler.
func (c *Coordinator) CargoHandler() cargo.Handler { return c.cargoHandle }

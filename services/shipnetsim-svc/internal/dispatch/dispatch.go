// Package dispatch validates and routes inbound command envelopes onto the
// coordinator, enforcing the one-command-in-flight-per-world busy guard.
//
// Grounded on the teacher's unary-interceptor chain shape (pkg/interceptors):
// the same "validate, then call the handler, then guarantee cleanup"
// structure, generalized from a gRPC interceptor chain to a single envelope
// dispatcher since there is no multi-stage middleware pipeline to chain here
// — one validation pass per command is all the wire protocol calls for.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"

	"shipnetsim/pkg/apperror"
	"shipnetsim/pkg/logger"
	"shipnetsim/pkg/telemetry"
	"shipnetsim/services/shipnetsim-svc/internal/coordinator"
	"shipnetsim/services/shipnetsim-svc/internal/geo"
	"shipnetsim/services/shipnetsim-svc/internal/network"
	"shipnetsim/services/shipnetsim-svc/internal/ship"
	"shipnetsim/services/shipnetsim-svc/internal/simulator"
	"shipnetsim/services/shipnetsim-svc/internal/world"
)

// envelope is the generic inbound command shape: a command name plus
// whatever command-specific fields that command needs.
type envelope struct {
	Command               string          `json:"command"`
	NetworkName           string          `json:"networkName"`
	NetworkNames          []string        `json:"networkNames"`
	NetworkFilePath       string          `json:"networkFilePath"`
	TimeStep              *float64        `json:"timeStep"`
	Ships                 json.RawMessage `json:"ships"`
	ByTimeSteps           *float64        `json:"byTimeSteps"`
	ShipID                string          `json:"shipID"`
	Containers            []string        `json:"containers"`
	Ports                 []string        `json:"ports"`
	ConsiderShipsPathOnly bool            `json:"considerShipsPathOnly"`
	ResistanceOnly        bool            `json:"resistanceOnly"`
}

// Dispatcher routes one inbound command envelope at a time onto the
// coordinator, guarding each named world's busy flag for the duration of the
// call.
type Dispatcher struct {
	coord *coordinator.Coordinator
}

// New returns a Dispatcher backed by coord.
func New(coord *coordinator.Coordinator) *Dispatcher {
	return &Dispatcher{coord: coord}
}

// busyGuard sets name's busy flag on construction and clears it exactly once
// on Release, however the caller exits — mirroring the scoped-acquisition
// guard §4.H requires around worker_busy.
type busyGuard struct {
	reg      *world.Registry
	names    []string
	released bool
}

func newBusyGuard(reg *world.Registry, names []string) *busyGuard {
	for _, n := range names {
		reg.SetBusy(n, true)
	}
	return &busyGuard{reg: reg, names: names}
}

func (g *busyGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	for _, n := range g.names {
		g.reg.SetBusy(n, false)
	}
}

// Dispatch parses and routes one inbound command envelope. It never returns
// an error past this boundary in normal operation: validation and
// downstream failures are surfaced through the coordinator's OnEvent hook as
// an errorOccurred event, per the at-most-one-reply-per-command contract.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) {
	ctx, span := telemetry.StartSpan(ctx, "Dispatcher.Dispatch")
	defer span.End()

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		d.emitError(apperror.New(apperror.CodeMalformedCommand, "malformed command envelope"))
		return
	}

	correlationID := uuid.NewString()
	telemetry.SetAttributes(ctx, telemetry.CommandAttributes(env.Command, correlationID)...)
	logger.Log.Info("dispatching command", "command", env.Command, "correlation_id", correlationID)

	switch env.Command {
	case "checkConnection":
		d.coord.Emit("connectionStatus", map[string]any{"connected": true, "host": "ShipNetSim"})

	case "defineSimulator":
		d.handleDefineSimulator(ctx, env)

	case "runSimulator":
		d.handleRunSimulator(ctx, env)

	case "terminateSimulator":
		d.handleNamesCommand(ctx, env.NetworkNames, d.coord.Terminate)

	case "endSimulator":
		d.handleNamesCommand(ctx, env.NetworkNames, d.coord.Finalize)

	case "addShipsToSimulator":
		d.handleAddShips(ctx, env)

	case "addContainersToShip":
		d.handleAddContainers(ctx, env)

	case "getNetworkSeaPorts":
		d.handleAvailablePorts(ctx, env)

	case "unloadContainersFromShipAtCurrentTerminal":
		d.handleUnloadContainers(ctx, env)

	case "restServer":
		for _, name := range d.coord.Registry().ListNames() {
			d.coord.Registry().Remove(name)
		}
		d.coord.Emit("serverReset", map[string]any{})

	default:
		d.emitError(apperror.New(apperror.CodeUnknownCommand, "unrecognized command").WithField(env.Command))
	}
}

func (d *Dispatcher) emitError(err *apperror.Error) {
	d.coord.Emit("errorOccurred", err.ToBrokerEvent())
}

func (d *Dispatcher) handleDefineSimulator(ctx context.Context, env envelope) {
	if env.NetworkName == "" {
		d.emitError(apperror.NewWithField(apperror.CodeMalformedCommand, "networkName is required", "networkName"))
		return
	}
	if env.TimeStep == nil || *env.TimeStep <= 0 {
		d.emitError(apperror.New(apperror.CodeInvalidTimeStep, "Invalid time step value"))
		return
	}

	guard := newBusyGuard(d.coord.Registry(), []string{env.NetworkName})
	defer guard.Release()

	path := env.NetworkFilePath
	if path == "" {
		path = "default"
	}
	if err := d.coord.LoadNetwork(ctx, path, env.NetworkName); err != nil {
		return
	}

	var ships []ship.Ship
	if len(env.Ships) > 0 {
		w, _ := d.coord.Registry().Get(env.NetworkName)
		loaded, err := loadShipsFromWire(env.Ships, w.Network(), env.ResistanceOnly)
		if err != nil {
			d.emitError(apperror.Wrap(err, apperror.CodeInvalidShipRecord, "failed to load ships"))
			return
		}
		ships = loaded
	}

	cfg := simulator.Config{DT: *env.TimeStep, TrajectoryEnabled: true, ResistanceOnly: env.ResistanceOnly}
	_ = d.coord.CreateEnvironment(ctx, env.NetworkName, ships, cfg, coordinator.ModeBarrier)
}

func (d *Dispatcher) handleRunSimulator(ctx context.Context, env envelope) {
	if len(env.NetworkNames) == 0 {
		d.emitError(apperror.NewWithField(apperror.CodeMalformedCommand, "networkNames is required", "networkNames"))
		return
	}
	guard := newBusyGuard(d.coord.Registry(), env.NetworkNames)
	defer guard.Release()

	// byTimeSteps <= 0 means "run until finished": RunFor's target clock is
	// startClock+duration, so this must be +Inf, not a negative sentinel, or
	// the first target-clock check breaks the loop having run zero steps.
	duration := math.Inf(1)
	emitStepSignal := false
	if env.ByTimeSteps != nil && *env.ByTimeSteps > 0 {
		duration = *env.ByTimeSteps
	} else {
		emitStepSignal = true
	}

	_ = d.coord.RunFor(ctx, env.NetworkNames, duration, false, emitStepSignal)
}

func (d *Dispatcher) handleNamesCommand(ctx context.Context, names []string, fn func(context.Context, []string) error) {
	if len(names) == 0 {
		d.emitError(apperror.NewWithField(apperror.CodeMalformedCommand, "networkNames is required", "networkNames"))
		return
	}
	guard := newBusyGuard(d.coord.Registry(), names)
	defer guard.Release()

	_ = fn(ctx, names)
}

func (d *Dispatcher) handleAddShips(ctx context.Context, env envelope) {
	if env.NetworkName == "" || len(env.Ships) == 0 {
		d.emitError(apperror.NewWithField(apperror.CodeMalformedCommand, "networkName and ships are required", "ships"))
		return
	}
	guard := newBusyGuard(d.coord.Registry(), []string{env.NetworkName})
	defer guard.Release()

	w, ok := d.coord.Registry().Get(env.NetworkName)
	if !ok {
		d.emitError(apperror.New(apperror.CodeUnknownWorld, "no such world").WithField(env.NetworkName))
		return
	}

	ships, err := loadShipsFromWire(env.Ships, w.Network(), false)
	if err != nil {
		d.emitError(apperror.Wrap(err, apperror.CodeInvalidShipRecord, "failed to load ships"))
		return
	}

	_ = d.coord.AddShips(ctx, env.NetworkName, ships)
}

func (d *Dispatcher) handleAddContainers(ctx context.Context, env envelope) {
	if env.NetworkName == "" || env.ShipID == "" {
		d.emitError(apperror.NewWithField(apperror.CodeMalformedCommand, "networkName and shipID are required", "shipID"))
		return
	}
	if err := d.coord.CargoHandler().AddContainers(env.ShipID, env.Containers); err != nil {
		d.emitError(apperror.Wrap(err, apperror.CodeInternal, "failed to add containers"))
		return
	}
	d.coord.Emit("containersAdded", map[string]any{"shipID": env.ShipID})
}

func (d *Dispatcher) handleUnloadContainers(ctx context.Context, env envelope) {
	if env.NetworkName == "" || env.ShipID == "" {
		d.emitError(apperror.NewWithField(apperror.CodeMalformedCommand, "networkName and shipID are required", "shipID"))
		return
	}
	if err := d.coord.CargoHandler().UnloadContainersAtCurrentTerminal(env.ShipID, env.Ports); err != nil {
		d.emitError(apperror.Wrap(err, apperror.CodeInternal, "failed to unload containers"))
		return
	}
	d.coord.Emit("containersUnloaded", map[string]any{"shipID": env.ShipID})
}

func (d *Dispatcher) handleAvailablePorts(ctx context.Context, env envelope) {
	if env.NetworkName == "" {
		d.emitError(apperror.NewWithField(apperror.CodeMalformedCommand, "networkName is required", "networkName"))
		return
	}
	guard := newBusyGuard(d.coord.Registry(), []string{env.NetworkName})
	defer guard.Release()

	_ = d.coord.AvailablePorts(ctx, []string{env.NetworkName}, env.ConsiderShipsPathOnly)
}

// loadShipsFromWire parses the envelope's bare "ships" array (rewrapped
// under the key ship.ParseWire expects) and resolves each definition's
// waypoints into a sailable Ship via net. In resistanceOnly mode Path is
// optional (the loader fills in two synthetic points) and the network is
// never consulted, since a resistance study never routes or sails a ship.
func loadShipsFromWire(raw json.RawMessage, net network.Network, resistanceOnly bool) ([]ship.Ship, error) {
	wrapped, err := json.Marshal(struct {
		Ships json.RawMessage `json:"ships"`
	}{Ships: raw})
	if err != nil {
		return nil, err
	}

	defs, err := ship.ParseWire(wrapped, resistanceOnly)
	if err != nil {
		return nil, err
	}

	ships := make([]ship.Ship, 0, len(defs))
	for _, def := range defs {
		var points []geo.Point
		var lines []geo.Line
		if resistanceOnly {
			points = def.Path
		} else if len(def.Path) >= 2 {
			p, l, err := net.Route(def.Path)
			if err != nil {
				return nil, fmt.Errorf("dispatch: ship %q: %w", def.ID, err)
			}
			points, lines = p, l
		}
		ships = append(ships, ship.New(def, points, lines))
	}
	return ships, nil
}

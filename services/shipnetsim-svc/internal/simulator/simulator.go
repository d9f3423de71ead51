// Package simulator implements the per-world simulation loop: advancing a
// ship set through simulated time, emitting trajectory rows, and producing a
// fleet summary on completion.
package simulator

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"shipnetsim/services/shipnetsim-svc/internal/network"
	"shipnetsim/services/shipnetsim-svc/internal/ship"
	"shipnetsim/services/shipnetsim-svc/internal/sinks"
)

// State is one state of the simulator's lifecycle state machine.
type State string

const (
	StateCreated     State = "created"
	StateInitialized State = "initialized"
	StateRunning     State = "running"
	StatePaused      State = "paused"
	StateTerminated  State = "terminated"
	StateFinished    State = "finished"
)

// noGlobalSpeedCap is the sentinel maxSpeed value Sail receives meaning "no
// cap beyond the ship's own top speed."
const noGlobalSpeedCap = 100.0

// Config holds the parameters fixed at simulator construction.
type Config struct {
	DT                   float64
	ExternallyControlled bool
	PlotFrequency        float64 // seconds; 0 disables plot events
	EndTime              *float64
	TrajectoryEnabled    bool
	// ResistanceOnly marks a study that never advances the clock or touches
	// the network; StudyShipsResistance is the only method such a simulator
	// may call.
	ResistanceOnly bool
}

// Event is emitted through the Simulator's OnEvent hook, mirroring the
// signal graph the original engine wires between a simulator and its API
// layer (network_loaded, progress_updated, reached_reporting_time,
// all_reached_destination, restarted, finished, ...).
type Event struct {
	Name string
	Data any
}

// Simulator advances one world's ship set through simulated time.
type Simulator struct {
	mu   sync.Mutex
	cond *sync.Cond

	net     network.Network
	ships   []ship.Ship
	cfg     Config
	state   State
	clock   float64
	paused  bool
	running bool

	lastProgressPct int

	trajectory *sinks.TrajectorySink
	summary    *sinks.SummarySink

	wallStart time.Time

	// OnEvent, if set, receives every lifecycle/progress signal. It must not
	// block or call back into the simulator.
	OnEvent func(Event)
}

// New constructs a Simulator bound to net and an initial ship set. A nil
// network is fatal unless the run is a resistance-only study, which never
// touches the network.
func New(net network.Network, ships []ship.Ship, cfg Config, trajectory *sinks.TrajectorySink, summary *sinks.SummarySink) (*Simulator, error) {
	if net == nil && !cfg.ResistanceOnly {
		return nil, fmt.Errorf("simulator: network must not be nil")
	}
	s := &Simulator{
		net:        net,
		ships:      append([]ship.Ship{}, ships...),
		cfg:        cfg,
		state:      StateCreated,
		trajectory: trajectory,
		summary:    summary,
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

func (s *Simulator) emit(name string, data any) {
	if s.OnEvent != nil {
		s.OnEvent(Event{Name: name, Data: data})
	}
}

// State returns the simulator's current lifecycle state.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Clock returns the current simulated time in seconds.
func (s *Simulator) Clock() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock
}

// IsResistanceOnly reports whether this simulator was configured as a
// resistance-only study (StudyShipsResistance), as opposed to a normal
// time-stepped run.
func (s *Simulator) IsResistanceOnly() bool {
	return s.cfg.ResistanceOnly
}

// AddShip inserts a ship into the running set. Safe to call mid-run, and
// wakes any externally-controlled RunFor loop blocked waiting for a ship to
// arrive.
func (s *Simulator) AddShip(sh ship.Ship) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ships = append(s.ships, sh)
	s.cond.Broadcast()
}

// Ships returns a snapshot copy of the current ship set.
func (s *Simulator) Ships() []ship.Ship {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ship.Ship, len(s.ships))
	copy(out, s.ships)
	return out
}

// Initialize moves Created -> Initialized: opens the trajectory sink (if
// enabled), writes its header, and records the wall-clock start time.
func (s *Simulator) Initialize(emitSignal bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCreated {
		return fmt.Errorf("simulator: Initialize called in state %q, expected %q", s.state, StateCreated)
	}
	if s.cfg.TrajectoryEnabled && s.trajectory != nil {
		if err := s.trajectory.Init(); err != nil {
			return fmt.Errorf("simulator: %w", err)
		}
	}
	s.wallStart = time.Now()
	s.state = StateInitialized
	s.running = true
	if emitSignal {
		s.emit("initialized", nil)
	}
	return nil
}

// Pause transitions Running -> Paused.
func (s *Simulator) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	s.state = StatePaused
}

// Resume transitions Paused -> Running and wakes any blocked RunFor loop.
func (s *Simulator) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.state = StateRunning
	s.cond.Broadcast()
}

// Terminate stops the run externally; the in-flight RunFor loop observes
// !running on its next iteration and returns.
func (s *Simulator) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.paused = false
	s.state = StateTerminated
	s.cond.Broadcast()
}

// Restart resets clock, progress, and every ship's internal state, and
// truncates both sink files, moving the simulator back to Created.
func (s *Simulator) Restart() error {
	s.mu.Lock()
	ships := append([]ship.Ship{}, s.ships...)
	s.clock = 0
	s.lastProgressPct = 0
	s.paused = false
	s.running = true
	s.state = StateCreated
	s.mu.Unlock()

	for _, sh := range ships {
		sh.Reset()
	}
	if s.trajectory != nil {
		if err := s.trajectory.Clear(); err != nil {
			return fmt.Errorf("simulator: restart: %w", err)
		}
	}
	if s.summary != nil {
		if err := os.Truncate(s.summary.Path(), 0); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("simulator: restart: %w", err)
		}
	}
	s.emit("restarted", nil)
	return nil
}

// waitForWakeup blocks until something broadcasts the condition variable
// (AddShip, Resume, Terminate) or ctx is cancelled, instead of busy-spinning
// while an externally-controlled run has no moving ships to step.
func (s *Simulator) waitForWakeup(ctx context.Context) {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cond.Wait()
}

// allNotMoving reports whether every ship in the snapshot has stopped moving.
func allNotMoving(ships []ship.Ship) bool {
	for _, sh := range ships {
		if sh.IsShipStillMoving() {
			return false
		}
	}
	return true
}

func allReachedDestination(ships []ship.Ship) bool {
	for _, sh := range ships {
		if !sh.IsReachedDestination() {
			return false
		}
	}
	return true
}

// RunFor advances the simulator for up to duration simulated seconds (or
// until EndTime, whichever is sooner), stepping once per cfg.DT.
func (s *Simulator) RunFor(ctx context.Context, duration float64, endAfterRun, emitStepSignal bool) error {
	s.mu.Lock()
	if s.state == StateCreated {
		s.mu.Unlock()
		if err := s.Initialize(true); err != nil {
			return err
		}
		s.mu.Lock()
	}
	if s.state == StateTerminated {
		s.mu.Unlock()
		return nil
	}
	startClock := s.clock
	s.state = StateRunning
	s.running = true
	s.mu.Unlock()

	targetClock := startClock + duration

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		for s.paused {
			s.cond.Wait()
		}
		if !s.running {
			s.mu.Unlock()
			return nil
		}
		if s.clock > targetClock {
			s.mu.Unlock()
			break
		}
		if s.cfg.EndTime != nil && s.clock > *s.cfg.EndTime {
			s.mu.Unlock()
			break
		}

		ships := append([]ship.Ship{}, s.ships...)
		s.mu.Unlock()

		if allNotMoving(ships) {
			if s.cfg.ExternallyControlled {
				s.waitForWakeup(ctx)
				continue
			}
			break
		}
		if allReachedDestination(ships) {
			s.emit("all_reached_destination", nil)
			if s.cfg.ExternallyControlled {
				s.Pause()
				continue
			}
			break
		}

		if err := s.runOneTimeStep(); err != nil {
			return err
		}

		if emitStepSignal {
			s.reportProgress(ships)
		}
	}

	if duration < math.Inf(1) {
		s.emit("reached_reporting_time", struct {
			Clock   float64
			Percent int
		}{s.Clock(), s.lastProgressPct})
	}
	if endAfterRun {
		return s.EndSimulation()
	}
	return nil
}

func (s *Simulator) reportProgress(ships []ship.Ship) {
	if len(ships) == 0 {
		return
	}
	var sum float64
	for _, sh := range ships {
		sum += shipProgress(sh)
	}
	pct := int(math.Round(sum / float64(len(ships)) * 100))
	s.mu.Lock()
	changed := pct != s.lastProgressPct
	s.lastProgressPct = pct
	s.mu.Unlock()
	if changed {
		s.emit("progress_updated", pct)
	}
}

// shipProgress estimates fractional completion as traveled distance over
// total path length; ships with no path are treated as complete.
func shipProgress(sh ship.Ship) float64 {
	lines := sh.PathLines()
	var total float64
	for _, l := range lines {
		total += l.Length
	}
	if total <= 0 {
		return 1
	}
	frac := sh.TraveledDistance() / total
	if frac > 1 {
		frac = 1
	}
	if frac < 0 {
		frac = 0
	}
	return frac
}

// EndSimulation emits "finished", which in the original signal graph drives
// summary generation and trajectory closure; here those are performed
// synchronously by the same call.
func (s *Simulator) EndSimulation() error {
	s.mu.Lock()
	s.state = StateFinished
	s.running = false
	s.mu.Unlock()

	summary := s.GenerateSummary()
	if s.summary != nil {
		if err := s.summary.Write(summary); err != nil {
			return fmt.Errorf("simulator: write summary: %w", err)
		}
	}
	if s.trajectory != nil {
		if err := s.trajectory.Close(); err != nil {
			return fmt.Errorf("simulator: close trajectory: %w", err)
		}
	}
	s.emit("finished", summary)
	return nil
}

// Finalize runs end-of-simulation bookkeeping without requiring the natural
// RunFor exit path, for the coordinator's explicit finalize command.
func (s *Simulator) Finalize() error {
	return s.EndSimulation()
}

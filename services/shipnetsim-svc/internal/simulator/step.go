package simulator

import (
	"fmt"
	"math"

	"shipnetsim/services/shipnetsim-svc/internal/geo"
	"shipnetsim/services/shipnetsim-svc/internal/ship"
)

// runOneTimeStep advances every ship by cfg.DT once, emits a trajectory row
// per ship (if enabled), and applies the idle-time fast-forward rule.
func (s *Simulator) runOneTimeStep() error {
	s.mu.Lock()
	ships := append([]ship.Ship{}, s.ships...)
	simTime := s.clock
	s.mu.Unlock()

	for _, sh := range ships {
		if sh.IsReachedDestination() {
			continue
		}
		if sh.IsLoaded() && !sh.IsShipStillMoving() {
			continue
		}
		if err := s.playOne(sh, simTime); err != nil {
			return err
		}
	}

	if s.cfg.PlotFrequency > 0 {
		tenthsSim := int(math.Round(simTime * 10))
		tenthsFreq := int(math.Round(s.cfg.PlotFrequency * 10))
		if tenthsFreq > 0 && tenthsSim%tenthsFreq == 0 {
			s.emit("plot_update", plotPositions(ships))
		}
	}

	s.mu.Lock()
	s.clock += s.cfg.DT
	if !s.cfg.ExternallyControlled {
		s.fastForwardIdleLocked(ships)
	}
	s.mu.Unlock()
	return nil
}

// fastForwardIdleLocked advances the clock past dead air when no ship is
// currently on the network, skipping straight to the earliest not-yet-loaded
// ship's start time. Caller holds s.mu.
func (s *Simulator) fastForwardIdleLocked(ships []ship.Ship) {
	anyOnNetwork := false
	minStart := math.Inf(1)
	for _, sh := range ships {
		if sh.IsLoaded() && !sh.IsReachedDestination() {
			anyOnNetwork = true
		}
		if !sh.IsLoaded() && sh.StartTime() < minStart {
			minStart = sh.StartTime()
		}
	}
	if !anyOnNetwork && !math.IsInf(minStart, 1) && minStart > s.clock {
		s.clock = minStart
	}
}

type plotPosition struct {
	ShipID   string
	Position geo.Point
}

func plotPositions(ships []ship.Ship) []plotPosition {
	out := make([]plotPosition, 0, len(ships))
	for _, sh := range ships {
		if sh.IsLoaded() {
			out = append(out, plotPosition{ShipID: sh.ID(), Position: sh.CurrentPosition()})
		}
	}
	return out
}

// playOne runs §4.C's per-ship step: loading admission, environment
// sampling, the critical-points bundle, the forward-kick heuristic, and the
// sail/stats/trajectory sequence.
func (s *Simulator) playOne(sh ship.Ship, simTime float64) error {
	if simTime >= sh.StartTime() && !sh.IsLoaded() {
		if !s.admitLoading(sh) {
			return nil
		}
		sh.Load()
	}
	if !sh.IsLoaded() {
		return nil
	}

	var env ship.Environment
	if s.net != nil {
		env = s.net.SampleEnvironment(sh.CurrentPosition(), simTime)
	}

	stopPoint, hasStop := sh.NextStoppingPoint()
	var gaps, speedsAtGaps []float64
	var following []bool
	if hasStop {
		remaining := geo.Distance(sh.CurrentPosition(), stopPoint)
		gaps = []float64{remaining}
		speedsAtGaps = []float64{0}
		following = []bool{false}

		if shouldKickForward(sh, remaining, s.cfg.DT) {
			sh.KickForward(remaining, s.cfg.DT)
		}
	}

	sh.Sail(simTime, s.cfg.DT, noGlobalSpeedCap, gaps, stopPoint, following, speedsAtGaps, env)
	sh.CalculateGeneralStats(s.cfg.DT)

	if s.cfg.TrajectoryEnabled && s.trajectory != nil {
		row := buildTrajectoryRow(simTime, sh, env)
		if err := s.trajectory.WriteLine(row); err != nil {
			return fmt.Errorf("simulator: trajectory write for ship %s: %w", sh.ID(), err)
		}
	}
	return nil
}

// admitLoading applies the loading-admission rule: refuse to load sh if
// another already-loaded, not-yet-arrived ship shares sh's origin point and
// has traveled less than its own waterline length.
func (s *Simulator) admitLoading(sh ship.Ship) bool {
	points := sh.PathPoints()
	if len(points) == 0 {
		return true
	}
	origin := points[0]

	s.mu.Lock()
	others := append([]ship.Ship{}, s.ships...)
	s.mu.Unlock()

	for _, other := range others {
		if other.ID() == sh.ID() {
			continue
		}
		if !other.IsLoaded() || other.IsReachedDestination() {
			continue
		}
		otherPoints := other.PathPoints()
		if len(otherPoints) == 0 {
			continue
		}
		if otherPoints[0] == origin && other.TraveledDistance() < other.LengthInWaterline() {
			return false
		}
	}
	return true
}

// roundsToZeroAt1mmPerSec reports whether v rounds to zero at 1 mm/s
// resolution, per the forward-kick heuristic's stall test.
func roundsToZeroAt1mmPerSec(v float64) bool {
	return math.Round(v*1000) == 0
}

func shouldKickForward(sh ship.Ship, remaining, dt float64) bool {
	return !sh.IsCurrentlyDwelling() &&
		sh.Acceleration() <= 0 &&
		roundsToZeroAt1mmPerSec(sh.PreviousSpeed()) &&
		roundsToZeroAt1mmPerSec(sh.Speed()) &&
		sh.Speed() >= 0 &&
		sh.Speed()*dt*3 >= remaining
}

// buildTrajectoryRow renders one TimeSteppedHeader-shaped CSV row. Thrust
// and resistance are not exposed by the Ship boundary (the real hydrodynamic
// model is out of scope), so those columns carry a zero placeholder rather
// than a fabricated figure.
func buildTrajectoryRow(simTime float64, sh ship.Ship, env ship.Environment) string {
	return fmt.Sprintf("%g,%s,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g,\"%g;%g\",%g",
		simTime,
		sh.ID(),
		env.Salinity,
		env.WaveHeight,
		env.WaveFrequency,
		env.WaveLength,
		env.WindNorth,
		env.WindEast,
		0.0, // TotalShipThrust_N: not modeled by the stub dynamics
		0.0, // TotalShipResistance_N: not modeled by the stub dynamics
		sh.MaxAcceleration(),
		sh.TraveledDistance(),
		sh.Acceleration(),
		sh.Speed()/knotsToMPSLocal,
		sh.CumulativeEnergy(),
		energyStatePercent(sh),
		sh.CurrentPosition().Lon, sh.CurrentPosition().Lat,
		sh.CurrentHeading(),
	)
}

const knotsToMPSLocal = 0.514444

func energyStatePercent(sh ship.Ship) float64 {
	// The Ship boundary does not expose remaining capacity directly; a ship
	// that has not yet run dry is reported at 100%, and one that has at 0%.
	if sh.IsOutOfEnergy() {
		return 0
	}
	return 100
}

package ship

import (
	"math"

	"shipnetsim/services/shipnetsim-svc/internal/geo"
)

// simpleShip is the concrete Ship implementation used by default. It
// approximates propulsion with a single acceleration-limited kinematic
// model and energy consumption proportional to thrust times distance; the
// real hydrodynamic/engine/fuel model is an external collaborator and is
// not reproduced here.
type simpleShip struct {
	def *Definition

	path  []geo.Point
	lines []geo.Line

	pathIndex int // index into path of the next, not-yet-reached waypoint
	traveled  float64

	position geo.Point
	heading  float64

	speed           float64
	prevSpeed       float64
	acceleration    float64
	maxAcceleration float64

	loaded             bool
	reachedDestination bool
	outOfEnergy        bool
	dwelling           bool

	energyCapacityKWh float64
	energyUsedKWh     float64
	fuelByType        map[string]float64
}

// New builds a concrete Ship from a validated Definition and a resolved
// path (waypoints plus connecting lines, as produced by Network.Route or,
// for a resistance-only study, by two synthetic points).
func New(def *Definition, path []geo.Point, lines []geo.Line) Ship {
	s := &simpleShip{
		def:               def,
		path:              path,
		lines:             lines,
		maxAcceleration:   defaultMaxAcceleration(def),
		energyCapacityKWh: estimateEnergyCapacityKWh(def),
		fuelByType:        make(map[string]float64),
	}
	if len(path) > 0 {
		s.position = path[0]
	}
	return s
}

func defaultMaxAcceleration(def *Definition) float64 {
	// A heavier vessel with the same engine power accelerates more slowly;
	// this is a simplification, not the real thrust/drag curve.
	weight := def.VesselWeight + def.CargoWeight
	if weight <= 0 {
		weight = 1
	}
	power := 0.0
	for _, p := range def.EngineOperationalPowerSettings {
		power += p
	}
	return math.Max(0.01, power/(weight*200))
}

func estimateEnergyCapacityKWh(def *Definition) float64 {
	// Tank size in liters times depth-of-discharge as a stand-in for usable
	// energy; fidelity is not the point, only that ships can run dry.
	return def.TankSize * (def.TankDepthOfDischarge / 100.0) * 0.01
}

func (s *simpleShip) ID() string         { return s.def.ID }
func (s *simpleShip) StartTime() float64 { return s.def.StartTime }
func (s *simpleShip) IsLoaded() bool     { return s.loaded }
func (s *simpleShip) IsReachedDestination() bool {
	return s.reachedDestination
}
func (s *simpleShip) IsShipStillMoving() bool {
	return s.loaded && !s.reachedDestination && !s.outOfEnergy
}
func (s *simpleShip) IsOutOfEnergy() bool        { return s.outOfEnergy }
func (s *simpleShip) IsCurrentlyDwelling() bool  { return s.dwelling }
func (s *simpleShip) CurrentPosition() geo.Point { return s.position }
func (s *simpleShip) CurrentHeading() float64    { return s.heading }
func (s *simpleShip) Speed() float64             { return s.speed }
func (s *simpleShip) PreviousSpeed() float64     { return s.prevSpeed }
func (s *simpleShip) Acceleration() float64      { return s.acceleration }
func (s *simpleShip) MaxAcceleration() float64   { return s.maxAcceleration }
func (s *simpleShip) MaxSpeed() float64          { return s.def.MaxSpeed }
func (s *simpleShip) LengthInWaterline() float64 { return s.def.WaterlineLength }
func (s *simpleShip) PathPoints() []geo.Point    { return s.path }
func (s *simpleShip) PathLines() []geo.Line      { return s.lines }

func (s *simpleShip) NextStoppingPoint() (geo.Point, bool) {
	if s.pathIndex >= len(s.path) {
		return geo.Point{}, false
	}
	return s.path[s.pathIndex], true
}

func (s *simpleShip) CumulativeEnergy() float64 { return s.energyUsedKWh }

func (s *simpleShip) CumulativeFuelByType() map[string]float64 {
	out := make(map[string]float64, len(s.fuelByType))
	for k, v := range s.fuelByType {
		out[k] = v
	}
	return out
}

func (s *simpleShip) CargoWeight() float64      { return s.def.CargoWeight }
func (s *simpleShip) TraveledDistance() float64 { return s.traveled }

func (s *simpleShip) Load() {
	s.loaded = true
	if len(s.path) > 0 {
		s.position = s.path[0]
	}
}

func (s *simpleShip) Reset() {
	s.loaded = false
	s.reachedDestination = false
	s.outOfEnergy = false
	s.dwelling = false
	s.pathIndex = 0
	s.traveled = 0
	s.speed = 0
	s.prevSpeed = 0
	s.acceleration = 0
	s.heading = 0
	s.energyUsedKWh = 0
	s.fuelByType = make(map[string]float64)
	if len(s.path) > 0 {
		s.position = s.path[0]
	}
}

// DistanceFromCurrentToPathIndex sums the remaining distance from the
// ship's current position to the waypoint at path index i.
func (s *simpleShip) DistanceFromCurrentToPathIndex(i int) float64 {
	if i < s.pathIndex || i >= len(s.path) {
		return 0
	}
	total := geo.Distance(s.position, s.path[s.pathIndex])
	for k := s.pathIndex; k < i && k < len(s.lines); k++ {
		total += s.lines[k].Length
	}
	return total
}

// Sail advances the ship by one time step toward its next stopping point,
// honoring the effective speed cap (the lesser of the ship's own max speed
// and the sentinel passed in) and decelerating to rest at the stop.
func (s *simpleShip) Sail(simTime, dt, maxSpeedSentinel float64, gapsToCritical []float64,
	stopPoint geo.Point, followingFlags []bool, speedsAtGaps []float64, env Environment) {

	s.prevSpeed = s.speed

	if s.pathIndex >= len(s.path) {
		s.reachedDestination = true
		s.speed = 0
		s.acceleration = 0
		return
	}

	remaining := s.DistanceFromCurrentToPathIndex(s.pathIndex)
	cap := s.def.MaxSpeed
	if maxSpeedSentinel < cap {
		cap = maxSpeedSentinel
	}

	if remaining <= 1e-9 {
		s.dwelling = true
		s.speed = 0
		s.acceleration = 0
		s.advanceToNextWaypoint()
		return
	}
	s.dwelling = false

	brakingDistance := (s.speed * s.speed) / (2 * math.Max(s.maxAcceleration, 1e-9))
	if remaining <= brakingDistance {
		s.acceleration = -s.maxAcceleration
	} else if s.speed < cap {
		s.acceleration = s.maxAcceleration
	} else {
		s.acceleration = 0
	}

	s.speed += s.acceleration * dt
	if s.speed < 0 {
		s.speed = 0
	}
	if s.speed > cap {
		s.speed = cap
	}

	travel := math.Min(s.speed*dt, remaining)
	s.advanceAlongPath(travel)

	if len(gapsToCritical) == 1 && gapsToCritical[0]-travel <= 1e-9 {
		s.advanceToNextWaypoint()
	}

	headingFrom := s.position
	if s.pathIndex < len(s.path) {
		s.heading = headingBetween(headingFrom, s.path[s.pathIndex])
	}
}

// KickForward implements the forward-kick heuristic: it forces the ship to
// cover distance within dt, bypassing the normal acceleration ramp, to
// avoid a near-zero-speed stall immediately before a stop.
func (s *simpleShip) KickForward(distance, dt float64) {
	s.prevSpeed = s.speed
	s.advanceAlongPath(distance)
	if dt > 0 {
		s.speed = distance / dt
	}
}

func (s *simpleShip) advanceAlongPath(distance float64) {
	s.traveled += distance
	if s.pathIndex >= len(s.path) {
		return
	}
	target := s.path[s.pathIndex]
	remaining := geo.Distance(s.position, target)
	if remaining <= 0 || distance >= remaining {
		s.position = target
		return
	}
	frac := distance / remaining
	s.position = geo.Point{
		Lon: s.position.Lon + frac*(target.Lon-s.position.Lon),
		Lat: s.position.Lat + frac*(target.Lat-s.position.Lat),
	}
}

func (s *simpleShip) advanceToNextWaypoint() {
	if s.pathIndex < len(s.path) {
		s.position = s.path[s.pathIndex]
	}
	s.pathIndex++
	if s.pathIndex >= len(s.path) {
		s.reachedDestination = true
	}
}

func headingBetween(from, to geo.Point) float64 {
	dLon := to.Lon - from.Lon
	dLat := to.Lat - from.Lat
	heading := math.Atan2(dLon, dLat) * 180 / math.Pi
	if heading < 0 {
		heading += 360
	}
	return heading
}

// CalculateGeneralStats rolls up per-step energy consumption and checks the
// out-of-energy terminal condition. Called once per ship, once per step,
// after Sail.
func (s *simpleShip) CalculateGeneralStats(dt float64) {
	thrustProxy := math.Abs(s.acceleration) + 0.05
	distance := s.speed * dt
	consumedKWh := thrustProxy * distance * 0.0005

	s.energyUsedKWh += consumedKWh
	s.fuelByType[s.def.FuelType] += consumedKWh * 0.22 // liters-per-kWh stand-in

	if s.energyCapacityKWh > 0 && s.energyUsedKWh >= s.energyCapacityKWh {
		s.outOfEnergy = true
	}
}

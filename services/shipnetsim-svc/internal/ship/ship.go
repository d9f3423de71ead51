// Package ship models the boundary view of a simulated vessel (§3/§4.B of
// the design) and the three-shape loader that turns external ship
// specifications into Ship instances bound to a network.
//
// The ship dynamics model itself (hydrodynamic resistance, propeller/engine
// curves, fuel accounting) is an opaque capability: this package supplies a
// concrete implementation sufficient to drive the simulator loop, not a
// faithful naval-architecture model.
package ship

import (
	"shipnetsim/services/shipnetsim-svc/internal/geo"
)

// Environment is one sample of the per-position environment a ship's sail
// step is driven by.
type Environment struct {
	Salinity      float64 // ppt
	WaveHeight    float64 // m
	WaveFrequency float64 // hz
	WaveLength    float64 // m
	WindEast      float64 // m/s
	WindNorth     float64 // m/s
}

// Ship is the opaque capability the simulator core drives. Everything it
// exposes is an observable property or a sailing operation; hull-form detail
// (beam, draft, block coefficient, ...) stays behind the boundary.
type Ship interface {
	ID() string
	StartTime() float64

	IsLoaded() bool
	IsReachedDestination() bool
	IsShipStillMoving() bool
	IsOutOfEnergy() bool
	IsCurrentlyDwelling() bool

	CurrentPosition() geo.Point
	CurrentHeading() float64
	Speed() float64
	PreviousSpeed() float64
	Acceleration() float64
	MaxAcceleration() float64
	MaxSpeed() float64
	LengthInWaterline() float64

	PathPoints() []geo.Point
	PathLines() []geo.Line
	NextStoppingPoint() (geo.Point, bool)

	CumulativeEnergy() float64
	CumulativeFuelByType() map[string]float64
	CargoWeight() float64

	// TraveledDistance is used by the loading-admission rule (§3 invariant):
	// two ships sharing an origin point may not both be loaded while the
	// earlier one has traveled less than its own waterline length.
	TraveledDistance() float64

	Load()
	Reset()
	Sail(simTime, dt, maxSpeed float64, gapsToCritical []float64, stopPoint geo.Point,
		followingFlags []bool, speedsAtGaps []float64, env Environment)
	CalculateGeneralStats(dt float64)
	KickForward(distance, dt float64)
	DistanceFromCurrentToPathIndex(i int) float64
}

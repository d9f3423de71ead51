package simulator

import (
	"fmt"
	"math"

	"shipnetsim/services/shipnetsim-svc/internal/ship"
)

// ResistanceComponents is one speed point's breakdown from a ship's
// calm-resistance strategy.
type ResistanceComponents struct {
	FroudeNumber                        float64
	FrI                                 float64
	AirResistanceKN                     float64
	BulbousBowResistanceKN              float64
	ImmersedTransomPressureResistanceKN float64
	AppendageResistanceN                float64
	WaveResistanceKN                    float64
	FrictionalResistanceKN              float64
	ModelCorrelationResistanceKN        float64
}

func (c ResistanceComponents) total() float64 {
	return c.AirResistanceKN + c.BulbousBowResistanceKN + c.ImmersedTransomPressureResistanceKN +
		c.AppendageResistanceN/1000 + c.WaveResistanceKN + c.FrictionalResistanceKN + c.ModelCorrelationResistanceKN
}

// CalmResistanceStrategy is the opaque per-ship hydrodynamic model a
// resistance-only study drives. A nil strategy is always fatal.
type CalmResistanceStrategy interface {
	Resistance(sh ship.Ship, speedMPS float64) ResistanceComponents
}

// StudyShipsResistance sweeps each ship's speed from 0 to its own maximum
// (in one-knot steps) and writes one trajectory row per (ship, speed) using
// strategy to compute the resistance breakdown. It never advances the clock
// and never touches the network. After the full first-phase sweep it writes
// two blank lines and a second-phase propulsion table.
func (s *Simulator) StudyShipsResistance(strategy CalmResistanceStrategy) error {
	if strategy == nil {
		return fmt.Errorf("simulator: resistance study requires a non-nil calm-resistance strategy")
	}
	if s.trajectory == nil {
		return fmt.Errorf("simulator: resistance study requires a trajectory sink")
	}
	if err := s.trajectory.Init(); err != nil {
		return err
	}

	ships := s.Ships()

	for shipNo, sh := range ships {
		maxKnots := shipMaxSpeed(sh) / knotsToMPSLocal
		steps := int(math.Ceil(maxKnots - 1e-9))
		for knot := 0; knot <= steps; knot++ {
			speedMPS := float64(knot) * knotsToMPSLocal
			rc := strategy.Resistance(sh, speedMPS)
			row := fmt.Sprintf("%d,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g,%g",
				shipNo,
				speedMPS/knotsToMPSLocal,
				rc.FroudeNumber,
				rc.FrI,
				rc.AirResistanceKN,
				rc.BulbousBowResistanceKN,
				rc.ImmersedTransomPressureResistanceKN,
				rc.AppendageResistanceN,
				rc.WaveResistanceKN,
				rc.FrictionalResistanceKN,
				rc.ModelCorrelationResistanceKN,
				rc.total(),
			)
			if err := s.trajectory.WriteLine(row); err != nil {
				return err
			}
		}
	}

	if err := s.trajectory.WriteLine(""); err != nil {
		return err
	}
	if err := s.trajectory.WriteLine(""); err != nil {
		return err
	}

	return s.writePropulsionTable(ships)
}

// writePropulsionTable is the resistance study's second phase: for every
// one-knot speed step, derive speed-of-advance, propeller RPM and required
// shaft power, and write them as "ShipNo,Speed_knots,RPM,ShaftPower_kW".
// No per-engine brake power or torque columns are written.
func (s *Simulator) writePropulsionTable(ships []ship.Ship) error {
	for shipNo, sh := range ships {
		maxKnots := shipMaxSpeed(sh) / knotsToMPSLocal
		steps := int(math.Ceil(maxKnots - 1e-9))
		for knot := 0; knot <= steps; knot++ {
			speedMPS := float64(knot) * knotsToMPSLocal
			soa := speedMPS // speed of advance; wake fraction not modeled
			pitch, slip := propellerAssumptions()
			rpm := 60 * soa / (pitch * (1 - slip))
			shaftPowerKW := requiredShaftPower(soa)

			row := fmt.Sprintf("%d,%g,%g,%g", shipNo, speedMPS/knotsToMPSLocal, rpm, shaftPowerKW)
			if err := s.trajectory.WriteLine(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// shipMaxSpeed reports the ship's own configured top speed in m/s.
func shipMaxSpeed(sh ship.Ship) float64 {
	return sh.MaxSpeed()
}

// gravity is standard gravitational acceleration, m/s^2.
const gravity = 9.80665

// defaultCalmResistanceStrategy is the resistance model a resistance-only
// study uses when the caller supplies none. The original engine's
// Holtrop-Mennen coefficients need hull-form inputs (beam, draft, block
// coefficient, ...) that never cross the Ship boundary, so this derives a
// Froude-scaled approximation from waterline length and speed alone; it is
// an honest placeholder, not a faithful port of the original formulas.
type defaultCalmResistanceStrategy struct{}

// NewDefaultCalmResistanceStrategy returns the strategy the coordinator wires
// into resistance-only studies by default.
func NewDefaultCalmResistanceStrategy() CalmResistanceStrategy {
	return defaultCalmResistanceStrategy{}
}

func (defaultCalmResistanceStrategy) Resistance(sh ship.Ship, speedMPS float64) ResistanceComponents {
	length := sh.LengthInWaterline()
	if length <= 0 {
		length = 1
	}
	fr := speedMPS / math.Sqrt(gravity*length)
	frI := fr * fr

	frictional := 0.0015 * length * length * speedMPS * speedMPS / 1000
	wave := 0.5 * frI * frI * length * speedMPS * speedMPS / 1000
	air := 0.02 * speedMPS * speedMPS / 1000
	correlation := 0.05 * frictional

	return ResistanceComponents{
		FroudeNumber:                 fr,
		FrI:                          frI,
		AirResistanceKN:              air,
		WaveResistanceKN:             wave,
		FrictionalResistanceKN:       frictional,
		ModelCorrelationResistanceKN: correlation,
	}
}

func propellerAssumptions() (pitchMeters, slip float64) {
	return 1.0, 0.2
}

func requiredShaftPower(speedMPS float64) float64 {
	// Power ~ speed^3 is the standard resistance-study scaling law; the
	// constant here is a placeholder since the real hull-form coefficients
	// are outside this module's scope.
	return math.Pow(speedMPS, 3) * 0.5
}

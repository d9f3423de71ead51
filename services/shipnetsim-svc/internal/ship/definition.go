package ship

import (
	"shipnetsim/services/shipnetsim-svc/internal/geo"
)

// Definition is the fully parsed, fully typed form of one ship record,
// before a path has been resolved against a network. Optional fields use a
// pointer so "na" (unset) is distinguishable from a present zero value.
type Definition struct {
	ID   string
	Path []geo.Point

	// StartTime is not part of the ordered line-file schema in §4.B (the
	// original format has no column for it); it is accepted only through
	// the structured-record and wire-object loader shapes, defaulting to 0.
	StartTime float64

	MaxSpeed                    float64 // m/s, converted from knots
	WaterlineLength             float64
	LengthBetweenPerpendiculars float64
	Beam                        float64
	DraftAtForward              float64
	DraftAtAft                  float64

	VolumetricDisplacement *float64
	WettedHullSurface      *float64

	ShipAndCargoAreaAboveWaterline        float64
	BulbousBowTransverseAreaCenterHeight  float64
	BulbousBowTransverseArea              float64
	ImmersedTransomArea                   float64
	HalfWaterlineEntranceAngle            *float64
	SurfaceRoughness                      float64
	LongitudinalBuoyancyCenter            float64
	SternShapeParam                       string

	MidshipSectionCoef *float64
	WaterplaneAreaCoef *float64
	PrismaticCoef      *float64
	BlockCoef          *float64

	FuelType                      string
	TankSize                      float64
	TankInitialCapacityPercentage float64
	TankDepthOfDischarge          float64

	EnginesCountPerPropeller        int
	EngineOperationalPowerSettings  [4]float64
	EngineTierIIPropertiesPoints    []EnginePoint
	EngineTierIIIPropertiesPoints   []EnginePoint

	GearboxRatio     float64
	GearboxEfficiency float64
	ShaftEfficiency   float64

	PropellerCount             int
	PropellerDiameter          float64
	PropellerPitch             float64
	PropellerBladesCount       int
	PropellerExpandedAreaRatio float64

	StopIfNoEnergy *bool
	MaxRudderAngle *float64

	VesselWeight float64
	CargoWeight  float64

	AppendagesWettedSurfaces map[string]float64
}

// EnginePoint is one (power, rpm, efficiency) operating point from an
// engine's Tier II/III property curve.
type EnginePoint struct {
	PowerKW    float64
	RPM        float64
	Efficiency float64
}

const knotsToMPS = 0.514444

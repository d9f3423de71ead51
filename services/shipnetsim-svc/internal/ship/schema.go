package ship

import (
	"fmt"
	"strconv"
	"strings"

	"shipnetsim/services/shipnetsim-svc/internal/geo"
)

// fieldSpec is one entry of the ordered parameter schema: a name, a
// converter from raw string to a typed Definition field, and whether the
// field may be unset via the literal "na".
type fieldSpec struct {
	name     string
	optional bool
	set      func(raw string, d *Definition) error
}

// Schema is the single source of truth for the ship file's column order,
// shared by the line-oriented, structured-record, and wire-object loaders.
var Schema = []fieldSpec{
	{"ID", false, func(raw string, d *Definition) error { d.ID = raw; return nil }},
	{"Path", true, func(raw string, d *Definition) error {
		pts, err := parsePoints(raw)
		if err != nil {
			return err
		}
		d.Path = pts
		return nil
	}},
	{"MaxSpeed", false, floatSetter(func(d *Definition, v float64) { d.MaxSpeed = v * knotsToMPS })},
	{"WaterlineLength", false, floatSetter(func(d *Definition, v float64) { d.WaterlineLength = v })},
	{"LengthBetweenPerpendiculars", false, floatSetter(func(d *Definition, v float64) { d.LengthBetweenPerpendiculars = v })},
	{"Beam", false, floatSetter(func(d *Definition, v float64) { d.Beam = v })},
	{"DraftAtForward", false, floatSetter(func(d *Definition, v float64) { d.DraftAtForward = v })},
	{"DraftAtAft", false, floatSetter(func(d *Definition, v float64) { d.DraftAtAft = v })},
	{"VolumetricDisplacement", true, optionalFloatSetter(func(d *Definition, v *float64) { d.VolumetricDisplacement = v })},
	{"WettedHullSurface", true, optionalFloatSetter(func(d *Definition, v *float64) { d.WettedHullSurface = v })},
	{"ShipAndCargoAreaAboveWaterline", false, floatSetter(func(d *Definition, v float64) { d.ShipAndCargoAreaAboveWaterline = v })},
	{"BulbousBowTransverseAreaCenterHeight", false, floatSetter(func(d *Definition, v float64) { d.BulbousBowTransverseAreaCenterHeight = v })},
	{"BulbousBowTransverseArea", false, floatSetter(func(d *Definition, v float64) { d.BulbousBowTransverseArea = v })},
	{"ImmersedTransomArea", false, floatSetter(func(d *Definition, v float64) { d.ImmersedTransomArea = v })},
	{"HalfWaterlineEntranceAngle", true, optionalFloatSetter(func(d *Definition, v *float64) { d.HalfWaterlineEntranceAngle = v })},
	{"SurfaceRoughness", false, floatSetter(func(d *Definition, v float64) { d.SurfaceRoughness = v })},
	{"LongitudinalBuoyancyCenter", false, floatSetter(func(d *Definition, v float64) { d.LongitudinalBuoyancyCenter = v })},
	{"SternShapeParam", false, func(raw string, d *Definition) error { d.SternShapeParam = raw; return nil }},
	{"MidshipSectionCoef", true, optionalFloatSetter(func(d *Definition, v *float64) { d.MidshipSectionCoef = v })},
	{"WaterplaneAreaCoef", true, optionalFloatSetter(func(d *Definition, v *float64) { d.WaterplaneAreaCoef = v })},
	{"PrismaticCoef", true, optionalFloatSetter(func(d *Definition, v *float64) { d.PrismaticCoef = v })},
	{"BlockCoef", true, optionalFloatSetter(func(d *Definition, v *float64) { d.BlockCoef = v })},
	{"FuelType", false, func(raw string, d *Definition) error { d.FuelType = raw; return nil }},
	{"TankSize", false, floatSetter(func(d *Definition, v float64) { d.TankSize = v })},
	{"TankInitialCapacityPercentage", false, floatSetter(func(d *Definition, v float64) { d.TankInitialCapacityPercentage = v })},
	{"TankDepthOfDischarge", false, floatSetter(func(d *Definition, v float64) { d.TankDepthOfDischarge = v })},
	{"EnginesCountPerPropeller", false, intSetter(func(d *Definition, v int) { d.EnginesCountPerPropeller = v })},
	{"EngineOperationalPowerSettings", false, func(raw string, d *Definition) error {
		vals, err := parseFloatList(raw, ';')
		if err != nil {
			return err
		}
		if len(vals) != 4 {
			return fmt.Errorf("EngineOperationalPowerSettings must have exactly four entries (L1-L4), got %d", len(vals))
		}
		copy(d.EngineOperationalPowerSettings[:], vals)
		return nil
	}},
	{"EngineTierIIPropertiesPoints", false, func(raw string, d *Definition) error {
		pts, err := parseEnginePoints(raw)
		if err != nil {
			return err
		}
		d.EngineTierIIPropertiesPoints = pts
		return nil
	}},
	{"EngineTierIIIPropertiesPoints", true, func(raw string, d *Definition) error {
		if isUnset(raw) {
			return nil
		}
		pts, err := parseEnginePoints(raw)
		if err != nil {
			return err
		}
		d.EngineTierIIIPropertiesPoints = pts
		return nil
	}},
	{"GearboxRatio", false, floatSetter(func(d *Definition, v float64) { d.GearboxRatio = v })},
	{"GearboxEfficiency", false, floatSetter(func(d *Definition, v float64) { d.GearboxEfficiency = v })},
	{"ShaftEfficiency", false, floatSetter(func(d *Definition, v float64) { d.ShaftEfficiency = v })},
	{"PropellerCount", false, intSetter(func(d *Definition, v int) { d.PropellerCount = v })},
	{"PropellerDiameter", false, floatSetter(func(d *Definition, v float64) { d.PropellerDiameter = v })},
	{"PropellerPitch", false, floatSetter(func(d *Definition, v float64) { d.PropellerPitch = v })},
	{"PropellerBladesCount", false, intSetter(func(d *Definition, v int) { d.PropellerBladesCount = v })},
	{"PropellerExpandedAreaRatio", false, floatSetter(func(d *Definition, v float64) { d.PropellerExpandedAreaRatio = v })},
	{"StopIfNoEnergy", true, func(raw string, d *Definition) error {
		if isUnset(raw) {
			return nil
		}
		b, err := parseBool(raw)
		if err != nil {
			return err
		}
		d.StopIfNoEnergy = &b
		return nil
	}},
	{"MaxRudderAngle", true, optionalFloatSetter(func(d *Definition, v *float64) { d.MaxRudderAngle = v })},
	{"VesselWeight", false, floatSetter(func(d *Definition, v float64) { d.VesselWeight = v })},
	{"CargoWeight", false, floatSetter(func(d *Definition, v float64) { d.CargoWeight = v })},
	{"AppendagesWettedSurfaces", true, func(raw string, d *Definition) error {
		if isUnset(raw) {
			return nil
		}
		m, err := parseAppendages(raw)
		if err != nil {
			return err
		}
		d.AppendagesWettedSurfaces = m
		return nil
	}},
}

func isUnset(raw string) bool {
	return raw == "" || strings.EqualFold(strings.TrimSpace(raw), "na")
}

func floatSetter(assign func(d *Definition, v float64)) func(string, *Definition) error {
	return func(raw string, d *Definition) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fmt.Errorf("invalid numeric value %q: %w", raw, err)
		}
		assign(d, v)
		return nil
	}
}

func optionalFloatSetter(assign func(d *Definition, v *float64)) func(string, *Definition) error {
	return func(raw string, d *Definition) error {
		if isUnset(raw) {
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fmt.Errorf("invalid numeric value %q: %w", raw, err)
		}
		assign(d, &v)
		return nil
	}
}

func intSetter(assign func(d *Definition, v int)) func(string, *Definition) error {
	return func(raw string, d *Definition) error {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid integer value %q: %w", raw, err)
		}
		assign(d, v)
		return nil
	}
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q", raw)
	}
}

func parseFloatList(raw string, sep byte) ([]float64, error) {
	parts := strings.Split(raw, string(sep))
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid numeric value %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parsePoints parses a secondary-delimited (';') sequence of
// tertiary-delimited (',') "lon,lat" pairs, validating each against WGS-84.
func parsePoints(raw string) ([]geo.Point, error) {
	if isUnset(raw) {
		return nil, nil
	}
	parts := strings.Split(raw, ";")
	pts := make([]geo.Point, 0, len(parts))
	for _, p := range parts {
		coords := strings.Split(p, ",")
		if len(coords) != 2 {
			return nil, fmt.Errorf("malformed path point %q: expected \"lon,lat\"", p)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude %q: %w", coords[0], err)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude %q: %w", coords[1], err)
		}
		pt := geo.Point{Lon: lon, Lat: lat}
		if err := pt.Validate(); err != nil {
			return nil, err
		}
		pts = append(pts, pt)
	}
	return pts, nil
}

// parseEnginePoints parses a secondary-delimited (';') sequence of
// tertiary-delimited (',') (kw,rpm,efficiency) triples.
func parseEnginePoints(raw string) ([]EnginePoint, error) {
	parts := strings.Split(raw, ";")
	out := make([]EnginePoint, 0, len(parts))
	for _, p := range parts {
		fields := strings.Split(p, ",")
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed engine property triple %q: expected \"kw,rpm,efficiency\"", p)
		}
		kw, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid engine power %q: %w", fields[0], err)
		}
		rpm, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid engine rpm %q: %w", fields[1], err)
		}
		eff, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid engine efficiency %q: %w", fields[2], err)
		}
		out = append(out, EnginePoint{PowerKW: kw, RPM: rpm, Efficiency: eff})
	}
	return out, nil
}

// parseAppendages parses a secondary-delimited (';') sequence of
// tertiary-delimited (',') "name,area" pairs.
func parseAppendages(raw string) (map[string]float64, error) {
	parts := strings.Split(raw, ";")
	out := make(map[string]float64, len(parts))
	for _, p := range parts {
		fields := strings.Split(p, ",")
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed appendage entry %q: expected \"name,area\"", p)
		}
		area, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid appendage area %q: %w", fields[1], err)
		}
		out[strings.TrimSpace(fields[0])] = area
	}
	return out, nil
}

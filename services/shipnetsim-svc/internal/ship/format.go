package ship

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatLine renders a Definition back into the TAB-separated line format,
// using "na" for every unset optional field. Together with ParseLines this
// gives the ship-file round-trip law: FormatLines(ParseLines(f)) == f modulo
// whitespace and "na"-for-unset.
func FormatLine(d *Definition) string {
	cols := make([]string, len(Schema))
	for i, f := range Schema {
		cols[i] = formatField(f.name, d)
	}
	return strings.Join(cols, "\t")
}

// FormatLines renders a sequence of Definitions, one per line.
func FormatLines(defs []*Definition) string {
	lines := make([]string, len(defs))
	for i, d := range defs {
		lines[i] = FormatLine(d)
	}
	return strings.Join(lines, "\n")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatField(name string, d *Definition) string {
	switch name {
	case "ID":
		return d.ID
	case "Path":
		parts := make([]string, len(d.Path))
		for i, p := range d.Path {
			parts[i] = formatFloat(p.Lon) + "," + formatFloat(p.Lat)
		}
		return strings.Join(parts, ";")
	case "MaxSpeed":
		return formatFloat(d.MaxSpeed / knotsToMPS)
	case "WaterlineLength":
		return formatFloat(d.WaterlineLength)
	case "LengthBetweenPerpendiculars":
		return formatFloat(d.LengthBetweenPerpendiculars)
	case "Beam":
		return formatFloat(d.Beam)
	case "DraftAtForward":
		return formatFloat(d.DraftAtForward)
	case "DraftAtAft":
		return formatFloat(d.DraftAtAft)
	case "VolumetricDisplacement":
		return formatOptionalFloat(d.VolumetricDisplacement)
	case "WettedHullSurface":
		return formatOptionalFloat(d.WettedHullSurface)
	case "ShipAndCargoAreaAboveWaterline":
		return formatFloat(d.ShipAndCargoAreaAboveWaterline)
	case "BulbousBowTransverseAreaCenterHeight":
		return formatFloat(d.BulbousBowTransverseAreaCenterHeight)
	case "BulbousBowTransverseArea":
		return formatFloat(d.BulbousBowTransverseArea)
	case "ImmersedTransomArea":
		return formatFloat(d.ImmersedTransomArea)
	case "HalfWaterlineEntranceAngle":
		return formatOptionalFloat(d.HalfWaterlineEntranceAngle)
	case "SurfaceRoughness":
		return formatFloat(d.SurfaceRoughness)
	case "LongitudinalBuoyancyCenter":
		return formatFloat(d.LongitudinalBuoyancyCenter)
	case "SternShapeParam":
		return d.SternShapeParam
	case "MidshipSectionCoef":
		return formatOptionalFloat(d.MidshipSectionCoef)
	case "WaterplaneAreaCoef":
		return formatOptionalFloat(d.WaterplaneAreaCoef)
	case "PrismaticCoef":
		return formatOptionalFloat(d.PrismaticCoef)
	case "BlockCoef":
		return formatOptionalFloat(d.BlockCoef)
	case "FuelType":
		return d.FuelType
	case "TankSize":
		return formatFloat(d.TankSize)
	case "TankInitialCapacityPercentage":
		return formatFloat(d.TankInitialCapacityPercentage)
	case "TankDepthOfDischarge":
		return formatFloat(d.TankDepthOfDischarge)
	case "EnginesCountPerPropeller":
		return strconv.Itoa(d.EnginesCountPerPropeller)
	case "EngineOperationalPowerSettings":
		parts := make([]string, 4)
		for i, v := range d.EngineOperationalPowerSettings {
			parts[i] = formatFloat(v)
		}
		return strings.Join(parts, ";")
	case "EngineTierIIPropertiesPoints":
		return formatEnginePoints(d.EngineTierIIPropertiesPoints)
	case "EngineTierIIIPropertiesPoints":
		if d.EngineTierIIIPropertiesPoints == nil {
			return "na"
		}
		return formatEnginePoints(d.EngineTierIIIPropertiesPoints)
	case "GearboxRatio":
		return formatFloat(d.GearboxRatio)
	case "GearboxEfficiency":
		return formatFloat(d.GearboxEfficiency)
	case "ShaftEfficiency":
		return formatFloat(d.ShaftEfficiency)
	case "PropellerCount":
		return strconv.Itoa(d.PropellerCount)
	case "PropellerDiameter":
		return formatFloat(d.PropellerDiameter)
	case "PropellerPitch":
		return formatFloat(d.PropellerPitch)
	case "PropellerBladesCount":
		return strconv.Itoa(d.PropellerBladesCount)
	case "PropellerExpandedAreaRatio":
		return formatFloat(d.PropellerExpandedAreaRatio)
	case "StopIfNoEnergy":
		if d.StopIfNoEnergy == nil {
			return "na"
		}
		return strconv.FormatBool(*d.StopIfNoEnergy)
	case "MaxRudderAngle":
		return formatOptionalFloat(d.MaxRudderAngle)
	case "VesselWeight":
		return formatFloat(d.VesselWeight)
	case "CargoWeight":
		return formatFloat(d.CargoWeight)
	case "AppendagesWettedSurfaces":
		if d.AppendagesWettedSurfaces == nil {
			return "na"
		}
		parts := make([]string, 0, len(d.AppendagesWettedSurfaces))
		for k, v := range d.AppendagesWettedSurfaces {
			parts = append(parts, fmt.Sprintf("%s,%s", k, formatFloat(v)))
		}
		return strings.Join(parts, ";")
	default:
		return ""
	}
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return "na"
	}
	return formatFloat(*v)
}

func formatEnginePoints(pts []EnginePoint) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = fmt.Sprintf("%s,%s,%s", formatFloat(p.PowerKW), formatFloat(p.RPM), formatFloat(p.Efficiency))
	}
	return strings.Join(parts, ";")
}

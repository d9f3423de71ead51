package ship

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLine() string {
	cols := []string{
		"SHIP-1",                 // ID
		"10.0,45.0;10.5,45.5",     // Path
		"20",                      // MaxSpeed (kn)
		"200", "190", "32", "10", "9", // WaterlineLength..DraftAtAft
		"na", "na", // VolumetricDisplacement, WettedHullSurface
		"500", "2", "15", "30", // ShipAndCargoArea.. ImmersedTransomArea
		"na",   // HalfWaterlineEntranceAngle
		"0.00015", "0.58", "NORMAL", // SurfaceRoughness, LongBuoyancyCenter, SternShapeParam
		"na", "na", "na", "na", // MidshipSectionCoef..BlockCoef
		"HFO", "500000", "90", "20", // FuelType..TankDepthOfDischarge
		"1",                  // EnginesCountPerPropeller
		"1000;2000;3000;4000", // EngineOperationalPowerSettings
		"1000,500,0.9;2000,700,0.92;3000,900,0.93;4000,1000,0.94", // Tier II points
		"na", // Tier III points
		"4.5", "0.98", "0.97", // Gearbox/shaft
		"1", "6", "5", "4", "0.6", // Propeller block
		"na", "na", // StopIfNoEnergy, MaxRudderAngle
		"50000", "5000", // VesselWeight, CargoWeight
		"na", // AppendagesWettedSurfaces
	}
	return strings.Join(cols, "\t")
}

func TestParseLines_ValidShip(t *testing.T) {
	defs, err := ParseLines(strings.NewReader(sampleLine()), false)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	d := defs[0]
	assert.Equal(t, "SHIP-1", d.ID)
	assert.Len(t, d.Path, 2)
	assert.InDelta(t, 20*knotsToMPS, d.MaxSpeed, 1e-9)
	assert.Nil(t, d.VolumetricDisplacement)
	assert.Len(t, d.EngineTierIIPropertiesPoints, 4)
	assert.Equal(t, [4]float64{1000, 2000, 3000, 4000}, d.EngineOperationalPowerSettings)
	assert.Nil(t, d.EngineTierIIIPropertiesPoints)
}

func TestParseLines_CommentAndBlankLinesSkipped(t *testing.T) {
	input := "# comment line\n\n" + sampleLine() + " # trailing comment stripped from next line\n"
	defs, err := ParseLines(strings.NewReader(sampleLine()+"\n\n# another\n"), false)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	_ = input
}

func TestParseLines_WrongFieldCountIsFatal(t *testing.T) {
	_, err := ParseLines(strings.NewReader("SHIP-1\tonly-two-fields"), false)
	require.Error(t, err)
}

func TestParseLines_InvalidCoordinateIsFatal(t *testing.T) {
	cols := strings.Split(sampleLine(), "\t")
	cols[1] = "200.0,45.0" // lon out of WGS-84 range
	_, err := ParseLines(strings.NewReader(strings.Join(cols, "\t")), false)
	require.Error(t, err)
}

func TestParseLines_EnginePowerVectorWrongCountIsFatal(t *testing.T) {
	cols := strings.Split(sampleLine(), "\t")
	cols[27] = "1000;2000;3000" // only three entries, need four
	_, err := ParseLines(strings.NewReader(strings.Join(cols, "\t")), false)
	require.Error(t, err)
}

func TestParseLines_ResistanceOnlyAllowsMissingPath(t *testing.T) {
	cols := strings.Split(sampleLine(), "\t")
	withoutPath := append(append([]string{}, cols[:1]...), cols[2:]...)
	defs, err := ParseLines(strings.NewReader(strings.Join(withoutPath, "\t")), true)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, syntheticResistancePath, defs[0].Path)
}

func TestShipFileRoundTrip(t *testing.T) {
	defs, err := ParseLines(strings.NewReader(sampleLine()), false)
	require.NoError(t, err)

	rendered := FormatLine(defs[0])
	reparsed, err := ParseLines(strings.NewReader(rendered), false)
	require.NoError(t, err)

	assert.Equal(t, defs[0].ID, reparsed[0].ID)
	assert.Equal(t, defs[0].Path, reparsed[0].Path)
	assert.InDelta(t, defs[0].MaxSpeed, reparsed[0].MaxSpeed, 1e-6)
	assert.Equal(t, defs[0].EngineOperationalPowerSettings, reparsed[0].EngineOperationalPowerSettings)
}

func TestParseRecords_MissingRequiredFieldIsFatal(t *testing.T) {
	_, err := ParseRecords([]map[string]string{{"ID": "X"}}, false)
	require.Error(t, err)
}

func TestParseWire_RoundTripsThroughSchema(t *testing.T) {
	payload := `{"ships":[{"fields":{
		"ID":"W-1","Path":"1,1;2,2","MaxSpeed":"12",
		"WaterlineLength":"150","LengthBetweenPerpendiculars":"140","Beam":"25",
		"DraftAtForward":"8","DraftAtAft":"8",
		"ShipAndCargoAreaAboveWaterline":"400","BulbousBowTransverseAreaCenterHeight":"1",
		"BulbousBowTransverseArea":"10","ImmersedTransomArea":"20",
		"SurfaceRoughness":"0.0001","LongitudinalBuoyancyCenter":"0.5","SternShapeParam":"NORMAL",
		"FuelType":"MDO","TankSize":"100000","TankInitialCapacityPercentage":"80","TankDepthOfDischarge":"15",
		"EnginesCountPerPropeller":"1","EngineOperationalPowerSettings":"500;1000;1500;2000",
		"EngineTierIIPropertiesPoints":"500,400,0.8;1000,600,0.85;1500,800,0.88;2000,1000,0.9",
		"GearboxRatio":"3","GearboxEfficiency":"0.95","ShaftEfficiency":"0.96",
		"PropellerCount":"1","PropellerDiameter":"5","PropellerPitch":"4","PropellerBladesCount":"4",
		"PropellerExpandedAreaRatio":"0.55","VesselWeight":"20000","CargoWeight":"2000"
	}}]}`

	defs, err := ParseWire([]byte(payload), false)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "W-1", defs[0].ID)
	assert.Len(t, defs[0].Path, 2)
}

package simulator

import (
	"fmt"
	"strings"
)

// summaryFieldSep is the sentinel the wire transport splits on to recover a
// key/value sequence from the rendered summary text.
const summaryFieldSep = "\x1D :"

// GenerateSummary builds the fleet-wide aggregate block followed by one
// detail block per ship, rendered as "key\x1D :value" lines.
func (s *Simulator) GenerateSummary() string {
	ships := s.Ships()

	var b strings.Builder
	writeKV := func(key string, value any) {
		fmt.Fprintf(&b, "%s%s%v\n", key, summaryFieldSep, value)
	}

	var totalCargo, totalTonKM, reached, totalEnergy, totalSpeed, totalAccel, totalDistance float64
	fuelTotals := make(map[string]float64)

	for _, sh := range ships {
		totalCargo += sh.CargoWeight()
		totalTonKM += sh.CargoWeight() * sh.TraveledDistance() / 1000
		if sh.IsReachedDestination() {
			reached++
		}
		totalEnergy += sh.CumulativeEnergy()
		totalSpeed += sh.Speed()
		totalAccel += sh.Acceleration()
		totalDistance += sh.TraveledDistance()
		for fuel, liters := range sh.CumulativeFuelByType() {
			fuelTotals[fuel] += liters
		}
	}

	count := float64(len(ships))
	writeKV("MovedCargo_ton", totalCargo)
	writeKV("TonKM", totalTonKM)
	writeKV("ReachedDestinationCount", int(reached))
	writeKV("OperatingTime_s", s.Clock())
	if count > 0 {
		writeKV("AverageSpeed_mps", totalSpeed/count)
		writeKV("AverageAcceleration_mps2", totalAccel/count)
		writeKV("AverageDistance_m", totalDistance/count)
	}
	writeKV("CumulativeEnergy_KWH", totalEnergy)
	if count > 0 {
		writeKV("AverageEnergy_KWH", totalEnergy/count)
	}
	for fuel, liters := range fuelTotals {
		writeKV(fmt.Sprintf("FuelConsumed_%s_L", fuel), liters)
		writeKV(fmt.Sprintf("CO2Emissions_%s_kg", fuel), liters*co2FactorPerLiter(fuel))
	}

	for _, sh := range ships {
		fmt.Fprintf(&b, "--- ship %s ---\n", sh.ID())
		writeKV(sh.ID()+".TraveledDistance_m", sh.TraveledDistance())
		writeKV(sh.ID()+".CumulativeEnergy_KWH", sh.CumulativeEnergy())
		writeKV(sh.ID()+".ReachedDestination", sh.IsReachedDestination())
	}

	return b.String()
}

// co2FactorPerLiter is a fixed emissions factor per fuel type; real values
// depend on the fuel's carbon content, which this module does not model.
func co2FactorPerLiter(fuelType string) float64 {
	switch strings.ToUpper(fuelType) {
	case "HFO":
		return 3.114
	case "MDO", "MGO":
		return 3.206
	case "LNG":
		return 2.75
	default:
		return 3.15
	}
}

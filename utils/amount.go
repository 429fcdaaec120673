package utils

import "math"

// BOCA amounts travel the wire as decimal display units but are stored as
// integer base units so accounting never accumulates float drift.
const BaseUnitsPerDisplay = 1_000_000

// ToBaseUnits converts a display-unit amount (e.g. 9.5 BOCA) to base units.
// Sub-base precision is rounded to the nearest base unit.
func ToBaseUnits(display float64) int64 {
	return int64(math.Round(display * BaseUnitsPerDisplay))
}

// ToDisplayUnits converts base units back to the decimal wire representation.
func ToDisplayUnits(base int64) float64 {
	return float64(base) / BaseUnitsPerDisplay
}

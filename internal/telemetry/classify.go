package telemetry

// ClassifyFuel maps a tank level percentage to a status using the configured
// thresholds. It is pure and must be evaluated on every read, never cached.
func ClassifyFuel(levelPct, lowPct, criticalPct float64) string {
	switch {
	case levelPct <= criticalPct:
		return StatusCritical
	case levelPct <= lowPct:
		return StatusLow
	default:
		return StatusNormal
	}
}

// ClassifyLoad maps an electrical load to a status. A load above
// overloadFraction of maxLoadKW is an overload.
func ClassifyLoad(loadKW, maxLoadKW, overloadFraction float64) string {
	if maxLoadKW > 0 && loadKW > overloadFraction*maxLoadKW {
		return StatusOverload
	}
	return StatusNormal
}

package risk

import "math"

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// StopLossPrice is the long stop level pct percent below entry.
func StopLossPrice(entry, pct float64) float64 {
	return entry * (1 - pct/100)
}

// TakeProfitPrice is the long target pct percent above entry.
func TakeProfitPrice(entry, pct float64) float64 {
	return entry * (1 + pct/100)
}

// TrailingStopPrice is the stop level pct percent below the high-water mark.
func TrailingStopPrice(highWater, pct float64) float64 {
	return highWater * (1 - pct/100)
}

// PlannedRisk computes the absolute loss if the stop is hit.
func PlannedRisk(quantity, entry, stop float64) float64 {
	return quantity * abs(entry-stop)
}

func RR(entry, stop, takeProfit float64) float64 {
	risk := abs(entry - stop)
	reward := abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

func RiskPct(plannedRisk, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return plannedRisk / equity
}

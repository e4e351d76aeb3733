package risk

import "math"

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// PlannedRisk is the loss in account currency if the stop is hit.
func PlannedRisk(units, entry, stop float64) float64 {
	if stop == 0 {
		return 0
	}
	return units * abs(entry-stop)
}

// RR is the reward-to-risk ratio implied by the protective levels.
func RR(entry, stop, take float64) float64 {
	risk := abs(entry - stop)
	if stop == 0 || take == 0 || risk == 0 {
		return 0
	}
	return abs(take-entry) / risk
}

func RiskPct(plannedRisk, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return plannedRisk / equity
}

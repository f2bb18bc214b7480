package dwell

import "math"

// ClampClaim bounds a client's claimed seconds to [0, grace]. NaN counts as zero.
func ClampClaim(seconds, grace float64) float64 {
	if math.IsNaN(seconds) {
		return 0
	}
	return clamp(seconds, 0, grace)
}

// Settle applies the anti-cheat budget to one report.
//
// excess is the part of the claim that wall-clock time since the previous
// report cannot account for. The budget absorbs excess up to its balance;
// whatever is left over is withheld from the credit. Underclaiming
// replenishes the budget, never past grace.
func Settle(claimed, elapsed, budget, grace float64) (credited, newBudget float64) {
	excess := claimed - elapsed
	overage := math.Max(0, excess-budget)
	credited = math.Max(0, claimed-overage)
	newBudget = clamp(budget-excess, 0, grace)
	return credited, newBudget
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

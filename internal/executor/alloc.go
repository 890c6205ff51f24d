package executor

import "github.com/r3vrt/monzo-auto-sub000/internal/rules"

// requestedAmount resolves one allocation's configured amount against the
// holding balance still available at this point in the autosorter's
// ordered passes (spec.md §4.6.2).
func requestedAmount(a rules.AutosorterAllocation, availableHolding int64, remainingCount int) int64 {
	if a.UseAllRemaining {
		return availableHolding
	}
	switch a.AllocationType {
	case rules.AllocationFixedAmount:
		if a.AmountMinor == nil {
			return 0
		}
		return *a.AmountMinor
	case rules.AllocationPercentage:
		if a.Percentage == nil {
			return 0
		}
		return int64(float64(availableHolding) * *a.Percentage)
	case rules.AllocationEqualShare:
		if remainingCount <= 0 {
			return 0
		}
		return availableHolding / int64(remainingCount)
	default:
		return 0
	}
}

// goalRemaining returns the headroom left under a's configured or the
// pot's own savings goal, preferring the rule-configured goal_amount_minor
// (it may target a different figure than the pot's own Monzo/bank goal).
// ok is false when neither source defines a goal, meaning unbounded.
func goalRemaining(a rules.AutosorterAllocation, localBalance, localGoal int64, localHasGoal bool) (remaining int64, ok bool) {
	goal := localGoal
	hasGoal := localHasGoal
	if a.GoalAmountMinor != nil && *a.GoalAmountMinor > 0 {
		goal = *a.GoalAmountMinor
		hasGoal = true
	}
	if !hasGoal {
		return 0, false
	}
	return maxInt64(0, goal-localBalance), true
}

package executor

import (
	"context"
	"time"

	"github.com/r3vrt/monzo-auto-sub000/internal/bank"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
	"github.com/r3vrt/monzo-auto-sub000/internal/rules"
)

type investItem struct {
	alloc     rules.AutosorterAllocation
	local     model.Pot
	localOK   bool
	hasGoal   bool
	amount    int64
	remaining int64 // headroom still open after pass 1; only meaningful when hasGoal
}

// allocateInvestmentPots runs spec.md §4.6.2 step 4: an initial per-pot
// pass (capped at each pot's configured max and goal headroom), then a
// second pass redistributing whatever pass 1 left unused proportionally
// across goal-bounded pots with remaining headroom, dumping any leftover
// into the highest-priority goal-less pot.
func (e *Executor) allocateInvestmentPots(ctx context.Context, rule model.Rule, holdingPotID string, allocs []rules.AutosorterAllocation, available int64) (moved int64, results []SourceResult) {
	if available <= 0 || len(allocs) == 0 {
		return 0, nil
	}

	items := make([]*investItem, 0, len(allocs))
	for _, a := range allocs {
		local, ok, err := e.store.GetPotByID(a.PotID)
		if err != nil {
			results = append(results, SourceResult{PotName: a.PotName, Err: err.Error()})
			continue
		}
		req := requestedAmount(a, available, len(allocs))
		if a.MaxAllocationMinor != nil && req > *a.MaxAllocationMinor {
			req = *a.MaxAllocationMinor
		}
		space, hasGoal := goalRemaining(a, local.BalanceMinor, local.GoalMinor, ok && local.HasGoal())
		if hasGoal && req > space {
			req = space
		}
		items = append(items, &investItem{alloc: a, local: local, localOK: ok, hasGoal: hasGoal, amount: maxInt64(0, req)})
	}

	var usedPass1 int64
	for _, it := range items {
		usedPass1 += it.amount
	}
	unused := available - usedPass1
	if unused < 0 {
		unused = 0
	}

	if unused > 0 {
		var goalBounded []*investItem
		var goalLess []*investItem
		var totalRemaining int64
		for _, it := range items {
			if !it.hasGoal {
				goalLess = append(goalLess, it)
				continue
			}
			space := maxInt64(0, it.local.GoalMinor-it.local.BalanceMinor-it.amount)
			if it.alloc.GoalAmountMinor != nil && *it.alloc.GoalAmountMinor > 0 {
				space = maxInt64(0, *it.alloc.GoalAmountMinor-it.local.BalanceMinor-it.amount)
			}
			it.remaining = space
			if space > 0 {
				goalBounded = append(goalBounded, it)
				totalRemaining += space
			}
		}

		leftover := unused
		if totalRemaining > 0 {
			for _, it := range goalBounded {
				share := int64(float64(unused) * (float64(it.remaining) / float64(totalRemaining)))
				share = minInt64(share, it.remaining, leftover)
				it.amount += share
				leftover -= share
			}
		}
		if leftover > 0 && len(goalLess) > 0 {
			best := goalLess[0]
			for _, it := range goalLess[1:] {
				if it.alloc.Priority < best.alloc.Priority {
					best = it
				}
			}
			best.amount += leftover
		}
	}

	now := time.Now().UTC()
	for _, it := range items {
		if it.amount <= 0 {
			continue
		}
		dedupe := bank.FormatDedupeID("autosorter_invest", now, holdingPotID, it.alloc.PotID)
		if err := e.potToPot(ctx, rule.UserID, rule.ID, holdingPotID, it.alloc.PotID, it.amount, dedupe); err != nil {
			results = append(results, SourceResult{PotName: it.alloc.PotName, Err: err.Error()})
			continue
		}
		moved += it.amount
		results = append(results, SourceResult{PotName: it.alloc.PotName, AmountMoved: it.amount})
	}
	return moved, results
}

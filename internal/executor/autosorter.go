package executor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/r3vrt/monzo-auto-sub000/internal/bank"
	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
	"github.com/r3vrt/monzo-auto-sub000/internal/rules"
)

// RunAutosorter executes an autosorter rule's fixed five-step allocation
// order (spec.md §4.6.2): bills replenishment, priority pots, goal pots,
// investment pots, each drawing down the same running "available holding"
// figure computed once up front.
func (e *Executor) RunAutosorter(ctx context.Context, rule model.Rule, cfg *rules.AutosorterConfig) (Outcome, error) {
	holdingBal, _, err := e.trigger.PotBalance(ctx, rule.UserID, cfg.HoldingPotID)
	if err != nil {
		return Outcome{}, err
	}
	reserve := computeReserve(cfg, holdingBal, e.log)
	available := maxInt64(0, holdingBal-reserve)

	var totalMoved int64
	var notes []string
	var allResults []SourceResult

	if cfg.BillsPotID != "" {
		moved, note, err := e.replenishBills(ctx, rule, cfg, available)
		if err != nil {
			e.log.Error("executor: autosorter bills replenishment failed", "rule_id", rule.ID, "error", err)
		} else if moved > 0 {
			totalMoved += moved
			available -= moved
			notes = append(notes, note)
		}
	}

	prioritySorted := sortedByPriority(cfg.PriorityPots)
	moved, results, remaining := e.allocatePriorityPots(ctx, rule, cfg.HoldingPotID, prioritySorted, available)
	totalMoved += moved
	available = remaining
	allResults = append(allResults, results...)
	if moved > 0 {
		notes = append(notes, fmt.Sprintf("allocated %d to priority pots", moved))
	}

	if cfg.IncludeGoalPotsOrDefault() {
		moved, results, remaining = e.allocateGoalPots(ctx, rule, cfg, available)
		totalMoved += moved
		available = remaining
		allResults = append(allResults, results...)
		if moved > 0 {
			notes = append(notes, fmt.Sprintf("allocated %d to goal pots", moved))
		}
	}

	investSorted := sortedByPriority(cfg.InvestmentPots)
	moved, results = e.allocateInvestmentPots(ctx, rule, cfg.HoldingPotID, investSorted, available)
	totalMoved += moved
	allResults = append(allResults, results...)
	if moved > 0 {
		notes = append(notes, fmt.Sprintf("allocated %d to investment pots", moved))
	}

	if len(allResults) > 0 {
		var failed []string
		for _, r := range allResults {
			if r.Err != "" {
				failed = append(failed, fmt.Sprintf("%s: %s", r.PotName, r.Err))
			}
		}
		if len(failed) > 0 {
			notes = append(notes, fmt.Sprintf("errors: %s", strings.Join(failed, "; ")))
		}
	}

	if totalMoved == 0 && len(notes) == 0 {
		return Outcome{Success: false, Reason: "no allocations made"}, nil
	}
	return Outcome{Success: totalMoved > 0, AmountMoved: totalMoved, Reason: strings.Join(notes, "; ")}, nil
}

// computeReserve implements spec.md §4.6.2's
// reserve = max(reserveAmount, minHoldingBalance), with a NaN/Inf guard on
// the percentage form (Design Note coverage for autosorter §8 edge cases).
func computeReserve(cfg *rules.AutosorterConfig, holdingBalance int64, log logging.Logger) int64 {
	if cfg.HoldingReservePercentage != nil {
		p := *cfg.HoldingReservePercentage
		if math.IsNaN(p) || math.IsInf(p, 0) {
			log.Error("executor: autosorter holding_reserve_percentage is not finite, treating as 0", "value", p)
			return cfg.MinHoldingBalanceMinor
		}
		return maxInt64(int64(float64(holdingBalance)*p), cfg.MinHoldingBalanceMinor)
	}
	reserve := cfg.MinHoldingBalanceMinor
	if cfg.HoldingReserveAmountMinor != nil {
		reserve = maxInt64(*cfg.HoldingReserveAmountMinor, cfg.MinHoldingBalanceMinor)
	}
	return reserve
}

// replenishBills moves however much left the bills pot since the last
// payday cycle boundary back in, capped at what's available (spec.md
// §4.6.2 step 1).
func (e *Executor) replenishBills(ctx context.Context, rule model.Rule, cfg *rules.AutosorterConfig, available int64) (int64, string, error) {
	payday := lastPaydayDate(time.Now().UTC(), cfg.PaydayDate)
	txns, err := e.store.ListBillsPotTransactionsSince(rule.UserID, cfg.BillsPotID, payday)
	if err != nil {
		return 0, "", err
	}
	var spending int64
	for _, t := range txns {
		if t.AmountMinor < 0 {
			spending += -t.AmountMinor
		}
	}
	amount := minInt64(spending, available)
	if amount <= 0 {
		return 0, "", nil
	}
	dedupe := bank.FormatDedupeID("autosorter_bills", time.Now().UTC(), cfg.HoldingPotID, cfg.BillsPotID)
	if err := e.potToPot(ctx, rule.UserID, rule.ID, cfg.HoldingPotID, cfg.BillsPotID, amount, dedupe); err != nil {
		return 0, "", err
	}
	return amount, fmt.Sprintf("replenished bills pot by %d", amount), nil
}

// allocatePriorityPots runs spec.md §4.6.2 step 2: in priority order,
// transfer min(requestedAmount, goalSpaceRemaining, available).
func (e *Executor) allocatePriorityPots(ctx context.Context, rule model.Rule, holdingPotID string, pots []rules.AutosorterAllocation, available int64) (moved int64, results []SourceResult, remaining int64) {
	remaining = available
	for i, p := range pots {
		remainingCount := len(pots) - i
		req := requestedAmount(p, remaining, remainingCount)
		local, ok, err := e.store.GetPotByID(p.PotID)
		if err != nil {
			results = append(results, SourceResult{PotName: p.PotName, Err: err.Error()})
			continue
		}
		amount := req
		if space, hasGoal := goalRemaining(p, local.BalanceMinor, local.GoalMinor, ok && local.HasGoal()); hasGoal {
			amount = minInt64(amount, space)
		}
		amount = minInt64(amount, remaining)
		if amount <= 0 {
			continue
		}
		dedupe := bank.FormatDedupeID("autosorter_priority", time.Now().UTC(), holdingPotID, p.PotID)
		if err := e.potToPot(ctx, rule.UserID, rule.ID, holdingPotID, p.PotID, amount, dedupe); err != nil {
			results = append(results, SourceResult{PotName: p.PotName, Err: err.Error()})
			continue
		}
		moved += amount
		remaining -= amount
		results = append(results, SourceResult{PotName: p.PotName, AmountMoved: amount})
	}
	return moved, results, remaining
}

// allocateGoalPots runs spec.md §4.6.2 step 3: every non-deleted pot with
// a goal that isn't already targeted by the priority or investment lists
// gets an equal share of what's left, capped at 20% of that remaining
// figure per pot and at the pot's own remaining goal headroom.
func (e *Executor) allocateGoalPots(ctx context.Context, rule model.Rule, cfg *rules.AutosorterConfig, available int64) (moved int64, results []SourceResult, remaining int64) {
	remaining = available
	if available <= 0 {
		return 0, nil, remaining
	}
	excluded := make(map[string]bool)
	for _, p := range cfg.PriorityPots {
		excluded[p.PotID] = true
	}
	for _, p := range cfg.InvestmentPots {
		excluded[p.PotID] = true
	}

	allPots, err := e.store.ListPotsForUser(rule.UserID)
	if err != nil {
		return 0, []SourceResult{{Err: err.Error()}}, remaining
	}
	var candidates []model.Pot
	for _, p := range allPots {
		if p.Deleted || excluded[p.BankPotID] || !p.HasGoal() {
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return 0, nil, remaining
	}

	share := available / int64(len(candidates))
	perPotCap := int64(float64(available) * 0.2)
	for _, p := range candidates {
		amount := minInt64(share, perPotCap, maxInt64(0, p.GoalMinor-p.BalanceMinor), remaining)
		if amount <= 0 {
			continue
		}
		dedupe := bank.FormatDedupeID("autosorter_goal", time.Now().UTC(), cfg.HoldingPotID, p.BankPotID)
		if err := e.potToPot(ctx, rule.UserID, rule.ID, cfg.HoldingPotID, p.BankPotID, amount, dedupe); err != nil {
			results = append(results, SourceResult{PotName: p.Name, Err: err.Error()})
			continue
		}
		moved += amount
		remaining -= amount
		results = append(results, SourceResult{PotName: p.Name, AmountMoved: amount})
	}
	return moved, results, remaining
}

func sortedByPriority(allocs []rules.AutosorterAllocation) []rules.AutosorterAllocation {
	out := append([]rules.AutosorterAllocation(nil), allocs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

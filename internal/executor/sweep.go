package executor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/r3vrt/monzo-auto-sub000/internal/bank"
	"github.com/r3vrt/monzo-auto-sub000/internal/coreerr"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
	"github.com/r3vrt/monzo-auto-sub000/internal/rules"
)

// sweepPaydayCooldown mirrors internal/trigger's payday_detection
// re-trigger window (evaluatePaydayDetection's 7-day check): a
// payday_detection sweep run directly — via automation.ExecuteManual,
// which bypasses the trigger evaluator entirely — still must not
// double-sweep a payday already acted on this week.
const sweepPaydayCooldown = 7 * 24 * time.Hour

// RunSweep executes a pot_sweep rule (spec.md §4.6.1): for each configured
// source, in priority order, compute its strategy-derived amount from a
// live balance read and move it into the target pot.
func (e *Executor) RunSweep(ctx context.Context, rule model.Rule, cfg *rules.SweepConfig) (Outcome, error) {
	if cfg.TriggerType == rules.SweepTriggerPaydayDetection && rule.LastExecuted != nil && time.Since(rule.LastExecuted.UTC()) < sweepPaydayCooldown {
		return Outcome{Success: false, Reason: coreerr.ErrDuplicateSuppressed.Error()}, nil
	}

	target, ok, err := e.store.FindPotByName(rule.UserID, cfg.TargetPotName)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return Outcome{Success: false, Reason: fmt.Sprintf("target pot %q not found", cfg.TargetPotName)}, nil
	}

	sources := append([]rules.SweepSource(nil), cfg.Sources...)
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Priority < sources[j].Priority })

	now := time.Now().UTC()
	var total int64
	var results []SourceResult

	for _, src := range sources {
		bal, _, err := e.trigger.BalanceByName(ctx, rule.UserID, src.PotName)
		if err != nil {
			results = append(results, SourceResult{PotName: src.PotName, Err: err.Error()})
			continue
		}
		amount := computeSweepAmount(src, bal)
		if amount <= 0 {
			continue
		}

		dedupe := bank.FormatDedupeID("sweep", now, src.PotName, cfg.TargetPotName)
		var moveErr error
		if src.PotName == model.MainAccountSentinel {
			moveErr = e.mainToPot(ctx, rule.UserID, target.BankPotID, amount, dedupe)
		} else {
			srcPot, found, findErr := e.store.FindPotByName(rule.UserID, src.PotName)
			switch {
			case findErr != nil:
				moveErr = findErr
			case !found:
				moveErr = fmt.Errorf("executor: sweep source pot %q not found", src.PotName)
			default:
				moveErr = e.potToPot(ctx, rule.UserID, rule.ID, srcPot.BankPotID, target.BankPotID, amount, dedupe)
			}
		}
		if moveErr != nil {
			results = append(results, SourceResult{PotName: src.PotName, Err: moveErr.Error()})
			continue
		}
		total += amount
		results = append(results, SourceResult{PotName: src.PotName, AmountMoved: amount})
	}

	if total == 0 {
		return Outcome{Success: false, Reason: "no funds moved"}, nil
	}
	return Outcome{Success: true, AmountMoved: total, Reason: fmt.Sprintf("swept from %d source(s) into %q", len(results), cfg.TargetPotName)}, nil
}

// computeSweepAmount implements spec.md §4.6.1's per-source strategies.
func computeSweepAmount(src rules.SweepSource, balance int64) int64 {
	switch src.Strategy {
	case rules.StrategyFixedAmount:
		if src.AmountMinor == nil {
			return 0
		}
		return minInt64(*src.AmountMinor, balance)
	case rules.StrategyPercentage:
		if src.Percentage == nil {
			return 0
		}
		return int64(float64(balance) * *src.Percentage)
	case rules.StrategyRemainingBalance:
		var minBal int64
		if src.MinBalanceMinor != nil {
			minBal = *src.MinBalanceMinor
		}
		return maxInt64(0, balance-minBal)
	case rules.StrategyAllAvailable:
		return balance
	default:
		return 0
	}
}

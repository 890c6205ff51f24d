package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/r3vrt/monzo-auto-sub000/internal/bank"
	"github.com/r3vrt/monzo-auto-sub000/internal/coreerr"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
	"github.com/r3vrt/monzo-auto-sub000/internal/rules"
	"github.com/r3vrt/monzo-auto-sub000/internal/trigger"
)

// topupCooldown suppresses duplicate auto_topup runs that land on the
// queue in quick succession (spec.md §4.6.3 step 1).
const topupCooldown = 5 * time.Minute

// RunAutoTopup executes an auto_topup rule (spec.md §4.6.3): re-checks the
// trigger against freshly read balances, computes the transfer amount,
// verifies the source can cover it, and moves the money.
func (e *Executor) RunAutoTopup(ctx context.Context, rule model.Rule, cfg *rules.AutoTopupConfig) (Outcome, error) {
	if rule.LastExecuted != nil && time.Since(rule.LastExecuted.UTC()) < topupCooldown {
		return Outcome{Success: false, Reason: coreerr.ErrDuplicateSuppressed.Error()}, nil
	}

	// "Lightweight re-sync" (spec.md §4.7 inner hook) is satisfied here by
	// reading live balances below through trigger.Reader rather than any
	// locally cached Store row — there is no separate sync pass to invoke
	// without reaching back into internal/sync and creating the cycle the
	// scheduler's PostSyncHook seam exists to avoid.
	result, err := e.trigger.Evaluate(ctx, rule, cfg, time.Now())
	if err != nil {
		return Outcome{}, err
	}
	if !result.ShouldFire {
		return Outcome{Success: false, Reason: "not triggered: " + result.Reason}, nil
	}

	targetBal, _, err := e.trigger.PotBalance(ctx, rule.UserID, cfg.TargetPotID)
	if err != nil {
		return Outcome{}, err
	}
	sourceBal, _, err := e.trigger.AccountBalance(ctx, rule.UserID, cfg.SourceAccountID)
	if err != nil {
		return Outcome{}, err
	}

	amount := cfg.AmountMinor
	if cfg.TargetBalanceMinor != nil {
		amount = trigger.ComputeTopupAmount(*cfg.TargetBalanceMinor, targetBal, cfg.AmountMinor, sourceBal)
		if amount <= 0 {
			return Outcome{Success: false, Reason: "target balance already at or above target_balance_minor"}, nil
		}
	}

	if sourceBal < amount {
		return Outcome{}, fmt.Errorf("executor: auto_topup rule %s: source balance %d below required %d: %w", rule.ID, sourceBal, amount, coreerr.ErrInsufficientFunds)
	}

	dedupe := bank.FormatDedupeID("topup", time.Now().UTC(), "", "")
	if err := e.bank.DepositToPot(ctx, rule.UserID, cfg.TargetPotID, cfg.SourceAccountID, amount, dedupe); err != nil {
		return Outcome{}, err
	}
	return Outcome{Success: true, AmountMoved: amount, Reason: "topped up"}, nil
}

package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

// potToPot moves money between two pots via the account the bank's API
// actually exposes: withdraw source pot to the primary account, then
// deposit the primary account into the target pot (spec.md §4.6.1 step 4
// "pot→account then account→pot"). A TransferIntent row is written before
// the first leg and cleared after the second, so an interrupted transfer
// is detectable on restart (Design Note "Pot-to-pot Atomicity").
func (e *Executor) potToPot(ctx context.Context, userID, ruleID, fromPotID, toPotID string, amountMinor int64, dedupeBase string) error {
	acct, ok, err := e.store.PrimaryAccountForUser(userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("executor: user %s has no primary account", userID)
	}

	intent := model.TransferIntent{
		ID: dedupeBase, UserID: userID, RuleID: ruleID,
		FromPotID: fromPotID, ToPotID: toPotID, AmountMinor: amountMinor,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.PutTransferIntent(intent); err != nil {
		return err
	}

	if err := e.bank.WithdrawFromPot(ctx, userID, fromPotID, acct.BankAccountID, amountMinor, dedupeBase+"_withdraw"); err != nil {
		return fmt.Errorf("executor: withdraw leg: %w", err)
	}
	intent.WithdrawDone = true
	if err := e.store.PutTransferIntent(intent); err != nil {
		e.log.Error("executor: failed to mark withdraw leg done", "intent_id", intent.ID, "error", err)
	}

	if err := e.bank.DepositToPot(ctx, userID, toPotID, acct.BankAccountID, amountMinor, dedupeBase+"_deposit"); err != nil {
		return fmt.Errorf("executor: deposit leg: %w", err)
	}
	return e.store.DeleteTransferIntent(userID, intent.ID)
}

// mainToPot deposits directly from the primary account into toPotID — the
// single-leg case (spec.md §4.6.1 "main account→pot").
func (e *Executor) mainToPot(ctx context.Context, userID, toPotID string, amountMinor int64, dedupeID string) error {
	acct, ok, err := e.store.PrimaryAccountForUser(userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("executor: user %s has no primary account", userID)
	}
	return e.bank.DepositToPot(ctx, userID, toPotID, acct.BankAccountID, amountMinor, dedupeID)
}

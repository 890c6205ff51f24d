package sync

import (
	"context"
	"fmt"
)

// CheckOrphanedIntents logs every open TransferIntent found across all
// users at startup. The spec doesn't prescribe an automatic recovery
// mechanism for a transfer intent left stranded mid-leg by a crash, and
// auto-completing or auto-reversing it risks double-moving money against
// a bank API that may have already applied one leg; surfacing it for a
// human to reconcile is the safer default (Open Question: "orphaned
// TransferIntent recovery").
func (e *Engine) CheckOrphanedIntents(ctx context.Context) error {
	intents, err := e.store.ListOpenIntentsAllUsers()
	if err != nil {
		return fmt.Errorf("sync: list open transfer intents: %w", err)
	}
	for _, i := range intents {
		e.log.Warn("sync: orphaned transfer intent found at startup",
			"intent_id", i.ID,
			"user_id", i.UserID,
			"rule_id", i.RuleID,
			"from_pot_id", i.FromPotID,
			"to_pot_id", i.ToPotID,
			"amount_minor", i.AmountMinor,
			"withdraw_done", i.WithdrawDone,
			"deposit_done", i.DepositDone,
			"created_at", i.CreatedAt,
		)
	}
	return nil
}

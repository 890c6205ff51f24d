package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/r3vrt/monzo-auto-sub000/internal/coreerr"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
	"github.com/r3vrt/monzo-auto-sub000/internal/store"
)

// syncAccount runs the six-step per-account algorithm (spec.md §4.2) inside
// one pebble batch, rolling the batch back if the call times out or errors
// partway so a half-written account never becomes visible.
func (e *Engine) syncAccount(ctx context.Context, local model.Account) error {
	timeout := accountTimeout
	if local.LastSyncAt.IsZero() {
		timeout = paginatedTimeout
	}
	acctCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := e.store.NewBatch()
	committed := false
	defer func() {
		if !committed {
			if err := store.DiscardBatch(b); err != nil {
				e.log.Warn("sync: discard batch failed", "error", err)
			}
		}
	}()

	// Step 1: refresh account metadata.
	remote, found, err := e.fetchAccount(acctCtx, local.UserID, local.BankAccountID)
	if err != nil {
		if isErr(err, coreerr.ErrReauthRequired) {
			_ = e.store.MarkNeedsReauth(local.UserID, true)
		}
		return fmt.Errorf("sync: refresh account %s: %w", local.BankAccountID, err)
	}
	if !found || remote.Closed {
		e.log.Warn("sync: account missing or closed, skipping", "user_id", local.UserID, "account_id", local.BankAccountID)
		return nil
	}
	remote.LastSyncAt = time.Now().UTC()
	remote.ActiveForSync = local.ActiveForSync
	if err := e.store.PutAccountBatch(b, remote); err != nil {
		return fmt.Errorf("sync: write account: %w", err)
	}

	// Step 2: refresh pots.
	pots, err := e.bank.GetPots(acctCtx, local.UserID, local.BankAccountID)
	if err != nil {
		return fmt.Errorf("sync: refresh pots: %w", err)
	}
	for _, p := range pots {
		if err := e.store.PutPotBatch(b, p); err != nil {
			return fmt.Errorf("sync: write pot %s: %w", p.BankPotID, err)
		}
	}

	// Step 3: transactions, incremental or first-time.
	var since, before *time.Time
	autoPaginate := false
	cursor, hasCursor, err := e.store.LatestTransaction(local.UserID, local.BankAccountID)
	if err != nil {
		return fmt.Errorf("sync: read cursor: %w", err)
	}
	var sinceTime time.Time
	if hasCursor {
		sinceTime = cursor.CreatedAt
		since = &sinceTime
		now := time.Now().UTC()
		before = &now
		autoPaginate = true
	} else {
		sinceTime = time.Now().UTC().Add(-historyWindow)
		since = &sinceTime
	}

	txns, err := e.bank.GetTransactions(acctCtx, local.UserID, local.BankAccountID, since, before, autoPaginate)
	if err != nil {
		return fmt.Errorf("sync: fetch transactions: %w", err)
	}

	written := 0
	for _, t := range txns {
		if hasCursor {
			if t.BankTransactionID == cursor.BankTransactionID {
				continue
			}
			if !t.CreatedAt.After(cursor.CreatedAt) {
				continue
			}
		}
		// Step 4: extract pot_current_id from metadata when present.
		if id, ok := t.Metadata["pot_current_id"]; ok {
			t.PotCurrentID = id
		}
		if err := e.store.PutTransactionBatch(b, t); err != nil {
			return fmt.Errorf("sync: write transaction %s: %w", t.BankTransactionID, err)
		}
		written++
		if written >= maxCommitBatch {
			e.log.Warn("sync: transaction batch cap reached", "user_id", local.UserID, "account_id", local.BankAccountID, "cap", maxCommitBatch)
			break
		}
	}

	if err := e.store.CommitBatch(b); err != nil {
		return fmt.Errorf("sync: commit batch: %w", err)
	}
	committed = true

	// Step 5 (cursor re-read) is implicit: the next run's LatestTransaction
	// call re-derives the cursor from whatever was just committed, rather
	// than this run tracking it in memory.

	if err := e.syncBillsPots(ctx, local); err != nil {
		e.log.Error("sync: bills pot sync failed", "user_id", local.UserID, "account_id", local.BankAccountID, "error", err)
	}

	return nil
}

func (e *Engine) fetchAccount(ctx context.Context, userID, accountID string) (model.Account, bool, error) {
	accts, err := e.bank.GetAccounts(ctx, userID)
	if err != nil {
		return model.Account{}, false, err
	}
	for _, a := range accts {
		if a.BankAccountID == accountID {
			return a, true, nil
		}
	}
	return model.Account{}, false, nil
}

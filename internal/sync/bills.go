package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/r3vrt/monzo-auto-sub000/internal/model"
	"github.com/r3vrt/monzo-auto-sub000/internal/store"
)

// billsFirstSyncSlice is the chunk width the bank API enforces for
// pot-scoped transaction history on a first-time sync (spec.md §4.2
// "Specialized bills pot sync").
const billsFirstSyncSlice = 10 * 24 * time.Hour

// potTransferPrefixes identify a transaction description as a pot
// transfer rather than external spend.
var potTransferPrefixes = []string{"pot transfer", "pot:", "savings pot"}

// syncBillsPots mirrors transactions for every pot tagged "bills" on this
// account, using the pot's pot_current_id as the account id the bank API
// expects (spec.md §4.2). A first-time sync chunks the 89-day window into
// 10-day slices; an incremental sync reads since the local cursor.
func (e *Engine) syncBillsPots(ctx context.Context, account model.Account) error {
	billsPots, err := e.store.PotsWithCategory(account.UserID, model.CategoryBills)
	if err != nil {
		return fmt.Errorf("sync: list bills pots: %w", err)
	}

	var firstErr error
	for _, pot := range billsPots {
		if pot.Deleted || pot.AccountID != account.BankAccountID || pot.PotCurrentID == "" {
			continue
		}
		if err := e.syncBillsPot(ctx, account.UserID, pot); err != nil {
			e.log.Error("sync: bills pot sync failed", "user_id", account.UserID, "pot_id", pot.BankPotID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (e *Engine) syncBillsPot(ctx context.Context, userID string, pot model.Pot) error {
	cursor, hasCursor, err := e.store.LatestBillsPotTransaction(userID, pot.BankPotID)
	if err != nil {
		return fmt.Errorf("sync: read bills cursor: %w", err)
	}

	var windows [][2]time.Time
	now := time.Now().UTC()
	if hasCursor {
		windows = [][2]time.Time{{cursor.CreatedAt, now}}
	} else {
		windows = sliceWindow(now.Add(-historyWindow), now, billsFirstSyncSlice)
	}

	b := e.store.NewBatch()
	committed := false
	defer func() {
		if !committed {
			if err := store.DiscardBatch(b); err != nil {
				e.log.Warn("sync: discard bills batch failed", "error", err)
			}
		}
	}()

	written := 0
	for _, w := range windows {
		since, before := w[0], w[1]
		timeout := accountTimeout
		if !hasCursor {
			timeout = paginatedTimeout
		}
		winCtx, cancel := context.WithTimeout(ctx, timeout)
		txns, err := e.bank.GetTransactions(winCtx, userID, pot.PotCurrentID, &since, &before, !hasCursor)
		cancel()
		if err != nil {
			return fmt.Errorf("sync: fetch bills transactions: %w", err)
		}
		for _, t := range txns {
			if hasCursor && (t.BankTransactionID == cursor.BankTransactionID || !t.CreatedAt.After(cursor.CreatedAt)) {
				continue
			}
			bt := model.BillsPotTransaction{
				BankTransactionID: t.BankTransactionID,
				UserID:            userID,
				PotID:             pot.BankPotID,
				CreatedAt:         t.CreatedAt,
				AmountMinor:       t.AmountMinor,
				Description:       t.Description,
				TransactionType:   classifyBillsTransaction(t, e.subscriptionMerchants),
				IsPotWithdrawal:   t.Metadata["pot_withdrawal_id"] != "",
			}
			if err := e.store.PutBillsPotTransactionBatch(b, bt); err != nil {
				return fmt.Errorf("sync: write bills transaction %s: %w", bt.BankTransactionID, err)
			}
			written++
			if written >= maxCommitBatch {
				break
			}
		}
		if written >= maxCommitBatch {
			e.log.Warn("sync: bills transaction batch cap reached", "user_id", userID, "pot_id", pot.BankPotID, "cap", maxCommitBatch)
			break
		}
	}

	if err := e.store.CommitBatch(b); err != nil {
		return fmt.Errorf("sync: commit bills batch: %w", err)
	}
	committed = true
	return nil
}

// classifyBillsTransaction tags a transaction as subscription spend,
// a pot transfer, or other (spec.md §4.2).
func classifyBillsTransaction(t model.Transaction, subscriptionMerchants []string) model.TransactionType {
	desc := strings.ToLower(t.Description)
	merchant := strings.ToLower(t.Merchant)
	for _, m := range subscriptionMerchants {
		if strings.Contains(desc, m) || strings.Contains(merchant, m) {
			return model.TxTypeSubscription
		}
	}
	for _, p := range potTransferPrefixes {
		if strings.HasPrefix(desc, p) {
			return model.TxTypePotTransfer
		}
	}
	return model.TxTypeOther
}

// sliceWindow splits [start, end) into consecutive chunks no wider than
// width, used to respect the bank API's pot-scoped history slice limit.
func sliceWindow(start, end time.Time, width time.Duration) [][2]time.Time {
	var windows [][2]time.Time
	for cur := start; cur.Before(end); {
		next := cur.Add(width)
		if next.After(end) {
			next = end
		}
		windows = append(windows, [2]time.Time{cur, next})
		cur = next
	}
	return windows
}

package store

import (
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

// PutTransaction commits t if (id, user) is not already present — spec.md
// §3's "(id, user) is unique; transactions are append-only" invariant,
// except that SettledAt and Metadata may be updated on an existing row.
func (s *Store) PutTransaction(t model.Transaction) (committed bool, err error) {
	existing, ok, err := s.GetTransaction(t.UserID, t.BankTransactionID)
	if err != nil {
		return false, err
	}
	if ok {
		existing.SettledAt = t.SettledAt
		existing.Metadata = t.Metadata
		existing.PotCurrentID = t.PotCurrentID
		if err := s.writeTxn(nil, existing); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := s.writeTxn(nil, t); err != nil {
		return false, err
	}
	return true, nil
}

// PutTransactionBatch stages a new (never-before-seen) transaction into a
// caller-owned batch. Callers are responsible for deduping before calling
// this — the sync engine already has the full local cursor in memory and
// checks ids there, so a duplicate read-before-write per row is wasted
// work inside a hot sync loop.
func (s *Store) PutTransactionBatch(b *pebble.Batch, t model.Transaction) error {
	return s.writeTxn(b, t)
}

func (s *Store) writeTxn(b *pebble.Batch, t model.Transaction) error {
	primary := keyTxn(t.UserID, t.AccountID, t.CreatedAt, t.BankTransactionID)
	idx := keyTxnByID(t.UserID, t.BankTransactionID)
	if b != nil {
		if err := putBatch(b, primary, t); err != nil {
			return err
		}
		return putBatch(b, idx, primary)
	}
	if err := s.put(primary, t); err != nil {
		return err
	}
	return s.put(idx, primary)
}

// GetTransaction fetches one transaction by (user, bank transaction id).
func (s *Store) GetTransaction(userID, txnID string) (model.Transaction, bool, error) {
	var primaryKey []byte
	ok, err := s.get(keyTxnByID(userID, txnID), &primaryKey)
	if err != nil || !ok {
		return model.Transaction{}, false, err
	}
	var t model.Transaction
	ok, err = s.get(primaryKey, &t)
	return t, ok, err
}

// LatestTransaction returns the most recent local transaction for
// (account, user) ordered by (created desc, id desc) — the cursor used to
// drive incremental sync (spec.md §4.2 step 3).
func (s *Store) LatestTransaction(userID, accountID string) (model.Transaction, bool, error) {
	var t model.Transaction
	found := false
	err := s.reversePrefixIter(txnAccountPrefix(userID, accountID), func(_, value []byte) (bool, error) {
		if err := jsonUnmarshal(value, &t); err != nil {
			return false, err
		}
		found = true
		return false, nil
	})
	return t, found, err
}

// ListTransactionsForAccount returns every locally stored transaction for
// an account, oldest first.
func (s *Store) ListTransactionsForAccount(userID, accountID string) ([]model.Transaction, error) {
	var out []model.Transaction
	err := s.prefixIter(txnAccountPrefix(userID, accountID), func(_, value []byte) (bool, error) {
		var t model.Transaction
		if err := jsonUnmarshal(value, &t); err != nil {
			return false, err
		}
		out = append(out, t)
		return true, nil
	})
	return out, err
}

// ListTransactionsSince returns every transaction for userID (across all
// their accounts) created at or after since, used by the trigger evaluator
// for payday detection and transaction_based triggers (spec.md §4.4).
func (s *Store) ListTransactionsSince(userID string, since time.Time) ([]model.Transaction, error) {
	accounts, err := s.ListAccountsForUser(userID)
	if err != nil {
		return nil, err
	}
	var out []model.Transaction
	for _, a := range accounts {
		txns, err := s.ListTransactionsForAccount(userID, a.BankAccountID)
		if err != nil {
			return nil, err
		}
		for _, t := range txns {
			if !t.CreatedAt.Before(since) {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

// PutBillsPotTransaction upserts a BillsPotTransaction row (spec.md §4.2
// "Bills pot sync (specialized)").
func (s *Store) PutBillsPotTransaction(t model.BillsPotTransaction) error {
	return s.put(keyBillsTxn(t.UserID, t.PotID, t.CreatedAt, t.BankTransactionID), t)
}

// PutBillsPotTransactionBatch is PutBillsPotTransaction staged into a
// caller-owned batch.
func (s *Store) PutBillsPotTransactionBatch(b *pebble.Batch, t model.BillsPotTransaction) error {
	return putBatch(b, keyBillsTxn(t.UserID, t.PotID, t.CreatedAt, t.BankTransactionID), t)
}

// LatestBillsPotTransaction mirrors LatestTransaction for the specialized
// bills pot cursor.
func (s *Store) LatestBillsPotTransaction(userID, potID string) (model.BillsPotTransaction, bool, error) {
	var t model.BillsPotTransaction
	found := false
	err := s.reversePrefixIter(billsTxnPotPrefix(userID, potID), func(_, value []byte) (bool, error) {
		if err := jsonUnmarshal(value, &t); err != nil {
			return false, err
		}
		found = true
		return false, nil
	})
	return t, found, err
}

// ListBillsPotTransactionsSince returns every BillsPotTransaction for potID
// created at or after since, used by the autosorter's bills-replenishment
// calculation (spec.md §4.6.2 step 1).
func (s *Store) ListBillsPotTransactionsSince(userID, potID string, since time.Time) ([]model.BillsPotTransaction, error) {
	var out []model.BillsPotTransaction
	err := s.prefixIter(billsTxnPotPrefix(userID, potID), func(_, value []byte) (bool, error) {
		var t model.BillsPotTransaction
		if err := jsonUnmarshal(value, &t); err != nil {
			return false, err
		}
		if !t.CreatedAt.Before(since) {
			out = append(out, t)
		}
		return true, nil
	})
	return out, err
}

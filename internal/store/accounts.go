package store

import (
	"github.com/cockroachdb/pebble"

	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

// PutAccount upserts an Account row.
func (s *Store) PutAccount(a model.Account) error {
	return s.put(keyAccount(a.UserID, a.BankAccountID), a)
}

// PutAccountBatch is PutAccount staged into a caller-owned batch (used by
// the sync engine so a whole account's sync commits atomically).
func (s *Store) PutAccountBatch(b *pebble.Batch, a model.Account) error {
	return putBatch(b, keyAccount(a.UserID, a.BankAccountID), a)
}

// GetAccount fetches one account owned by userID.
func (s *Store) GetAccount(userID, accountID string) (model.Account, bool, error) {
	var a model.Account
	ok, err := s.get(keyAccount(userID, accountID), &a)
	return a, ok, err
}

// ListAccountsForUser returns every account owned by userID.
func (s *Store) ListAccountsForUser(userID string) ([]model.Account, error) {
	var out []model.Account
	err := s.prefixIter(accountPrefix(userID), func(_, value []byte) (bool, error) {
		var a model.Account
		if err := jsonUnmarshal(value, &a); err != nil {
			return false, err
		}
		out = append(out, a)
		return true, nil
	})
	return out, err
}

// PrimaryAccountForUser resolves the model.MainAccountSentinel reference
// used by sweep sources and auto-topup: the oldest still-syncable account
// owned by userID. The bank API exposes no explicit "primary account"
// flag, so the earliest-opened active account stands in for it (Open
// Question resolution, see DESIGN.md).
func (s *Store) PrimaryAccountForUser(userID string) (model.Account, bool, error) {
	accounts, err := s.ListAccountsForUser(userID)
	if err != nil {
		return model.Account{}, false, err
	}
	var best model.Account
	found := false
	for _, a := range accounts {
		if !a.ShouldSync() {
			continue
		}
		if !found || a.CreatedAt.Before(best.CreatedAt) {
			best = a
			found = true
		}
	}
	return best, found, nil
}

// ListActiveAccounts returns every account across every user that is
// eligible for sync (spec.md §3 Account invariant), for the global sync
// ticker (spec.md §4.8).
func (s *Store) ListActiveAccounts() ([]model.Account, error) {
	users, err := s.ListUsers()
	if err != nil {
		return nil, err
	}
	var out []model.Account
	for _, u := range users {
		if u.NeedsReauth {
			continue
		}
		accts, err := s.ListAccountsForUser(u.BankUserID)
		if err != nil {
			return nil, err
		}
		for _, a := range accts {
			if a.ShouldSync() {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

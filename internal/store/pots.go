package store

import (
	"github.com/cockroachdb/pebble"

	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

// potByIDPointer is the value stored under the secondary nsPotByID index,
// letting callers resolve a bank pot id to its owning account/user without
// knowing them up front (executors only ever have a pot id).
type potByIDPointer struct {
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
}

// PutPot upserts a Pot row and its by-id secondary index entry.
func (s *Store) PutPot(p model.Pot) error {
	if err := s.put(keyPot(p.UserID, p.AccountID, p.BankPotID), p); err != nil {
		return err
	}
	return s.put(keyPotByID(p.BankPotID), potByIDPointer{UserID: p.UserID, AccountID: p.AccountID})
}

// PutPotBatch is PutPot staged into a caller-owned batch.
func (s *Store) PutPotBatch(b *pebble.Batch, p model.Pot) error {
	if err := putBatch(b, keyPot(p.UserID, p.AccountID, p.BankPotID), p); err != nil {
		return err
	}
	return putBatch(b, keyPotByID(p.BankPotID), potByIDPointer{UserID: p.UserID, AccountID: p.AccountID})
}

// GetPot fetches one pot by its owning account and user.
func (s *Store) GetPot(userID, accountID, potID string) (model.Pot, bool, error) {
	var p model.Pot
	ok, err := s.get(keyPot(userID, accountID, potID), &p)
	return p, ok, err
}

// GetPotByID resolves a bare pot id, used by executors that only have the
// id from rule configuration.
func (s *Store) GetPotByID(potID string) (model.Pot, bool, error) {
	var ptr potByIDPointer
	ok, err := s.get(keyPotByID(potID), &ptr)
	if err != nil || !ok {
		return model.Pot{}, false, err
	}
	return s.GetPot(ptr.UserID, ptr.AccountID, potID)
}

// ListPotsForAccount returns every pot (including deleted ones; callers
// filter per their own invariant needs) belonging to accountID.
func (s *Store) ListPotsForAccount(userID, accountID string) ([]model.Pot, error) {
	var out []model.Pot
	err := s.prefixIter(potPrefix(userID, accountID), func(_, value []byte) (bool, error) {
		var p model.Pot
		if err := jsonUnmarshal(value, &p); err != nil {
			return false, err
		}
		out = append(out, p)
		return true, nil
	})
	return out, err
}

// ListPotsForUser returns every pot across every account of userID.
func (s *Store) ListPotsForUser(userID string) ([]model.Pot, error) {
	accounts, err := s.ListAccountsForUser(userID)
	if err != nil {
		return nil, err
	}
	var out []model.Pot
	for _, a := range accounts {
		pots, err := s.ListPotsForAccount(userID, a.BankAccountID)
		if err != nil {
			return nil, err
		}
		out = append(out, pots...)
	}
	return out, nil
}

// FindPotByName looks up a non-deleted pot by its display name within a
// user's accounts, used to resolve sweep rule potName references.
func (s *Store) FindPotByName(userID, name string) (model.Pot, bool, error) {
	pots, err := s.ListPotsForUser(userID)
	if err != nil {
		return model.Pot{}, false, err
	}
	for _, p := range pots {
		if !p.Deleted && p.Name == name {
			return p, true, nil
		}
	}
	return model.Pot{}, false, nil
}

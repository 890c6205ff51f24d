package store

import "github.com/r3vrt/monzo-auto-sub000/internal/model"

// PutTransferIntent records a pot-to-pot transfer's progress so a crash
// between legs can be detected on restart (Design Note "Pot-to-pot
// Atomicity").
func (s *Store) PutTransferIntent(i model.TransferIntent) error {
	return s.put(keyIntent(i.UserID, i.ID), i)
}

// GetTransferIntent fetches one intent.
func (s *Store) GetTransferIntent(userID, id string) (model.TransferIntent, bool, error) {
	var i model.TransferIntent
	ok, err := s.get(keyIntent(userID, id), &i)
	return i, ok, err
}

// DeleteTransferIntent clears an intent once both legs have committed.
func (s *Store) DeleteTransferIntent(userID, id string) error {
	return s.delete(keyIntent(userID, id))
}

// ListOpenIntents returns every not-yet-cleared intent for userID, scanned
// at startup to surface transfers left incomplete by a prior crash.
func (s *Store) ListOpenIntents(userID string) ([]model.TransferIntent, error) {
	var out []model.TransferIntent
	err := s.prefixIter(intentPrefix(userID), func(_, value []byte) (bool, error) {
		var i model.TransferIntent
		if err := jsonUnmarshal(value, &i); err != nil {
			return false, err
		}
		if !(i.WithdrawDone && i.DepositDone) {
			out = append(out, i)
		}
		return true, nil
	})
	return out, err
}

// ListOpenIntentsAllUsers scans every user's intents, used by the sync
// engine startup orphan scan.
func (s *Store) ListOpenIntentsAllUsers() ([]model.TransferIntent, error) {
	users, err := s.ListUsers()
	if err != nil {
		return nil, err
	}
	var out []model.TransferIntent
	for _, u := range users {
		intents, err := s.ListOpenIntents(u.BankUserID)
		if err != nil {
			return nil, err
		}
		out = append(out, intents...)
	}
	return out, nil
}

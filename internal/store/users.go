package store

import "github.com/r3vrt/monzo-auto-sub000/internal/model"

// PutUser creates or updates a User row.
func (s *Store) PutUser(u model.User) error {
	return s.put(keyUser(u.BankUserID), u)
}

// GetUser fetches a User by bank user id.
func (s *Store) GetUser(userID string) (model.User, bool, error) {
	var u model.User
	ok, err := s.get(keyUser(userID), &u)
	return u, ok, err
}

// MarkNeedsReauth flags a user as requiring OAuth re-authorization
// (spec.md §7, ErrReauthRequired) and persists the change.
func (s *Store) MarkNeedsReauth(userID string, needs bool) error {
	u, ok, err := s.GetUser(userID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	u.NeedsReauth = needs
	return s.PutUser(u)
}

// ListUsers returns every known user, for scheduler startup registration
// and sync engine enumeration.
func (s *Store) ListUsers() ([]model.User, error) {
	var out []model.User
	err := s.prefixIter(k(nsUser, ""), func(_, value []byte) (bool, error) {
		var u model.User
		if err := jsonUnmarshal(value, &u); err != nil {
			return false, err
		}
		out = append(out, u)
		return true, nil
	})
	return out, err
}

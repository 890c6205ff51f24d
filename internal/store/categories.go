package store

import "github.com/r3vrt/monzo-auto-sub000/internal/model"

// PutCategory assigns category to potID. Every categorical lookup in the
// core goes through this table, never a name-based heuristic (spec.md §3
// UserPotCategory).
func (s *Store) PutCategory(c model.UserPotCategory) error {
	return s.put(keyCategory(c.UserID, c.PotID, string(c.Category)), c)
}

// RemoveCategory removes one category assignment from a pot.
func (s *Store) RemoveCategory(userID, potID string, category model.PotCategory) error {
	return s.delete(keyCategory(userID, potID, string(category)))
}

// CategoriesForPot returns every category assigned to potID.
func (s *Store) CategoriesForPot(userID, potID string) ([]model.PotCategory, error) {
	var out []model.PotCategory
	err := s.prefixIter(categoryPotPrefix(userID, potID), func(_, value []byte) (bool, error) {
		var c model.UserPotCategory
		if err := jsonUnmarshal(value, &c); err != nil {
			return false, err
		}
		out = append(out, c.Category)
		return true, nil
	})
	return out, err
}

// HasCategory reports whether potID carries the given category.
func (s *Store) HasCategory(userID, potID string, category model.PotCategory) (bool, error) {
	cats, err := s.CategoriesForPot(userID, potID)
	if err != nil {
		return false, err
	}
	for _, c := range cats {
		if c == category {
			return true, nil
		}
	}
	return false, nil
}

// PotsWithCategory returns every pot belonging to userID tagged with
// category (e.g. every "bills" pot, for the specialized bills sync).
func (s *Store) PotsWithCategory(userID string, category model.PotCategory) ([]model.Pot, error) {
	var potIDs []string
	err := s.prefixIter(categoryUserPrefix(userID), func(_, value []byte) (bool, error) {
		var c model.UserPotCategory
		if err := jsonUnmarshal(value, &c); err != nil {
			return false, err
		}
		if c.Category == category {
			potIDs = append(potIDs, c.PotID)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	var out []model.Pot
	for _, id := range potIDs {
		p, ok, err := s.GetPotByID(id)
		if err != nil {
			return nil, err
		}
		if ok && !p.Deleted {
			out = append(out, p)
		}
	}
	return out, nil
}

package store

import "github.com/r3vrt/monzo-auto-sub000/internal/model"

// ruleByIDPointer resolves a bare rule id (as used by queue items and
// dependency sets) to its owning user.
type ruleByIDPointer struct {
	UserID string `json:"user_id"`
}

// PutRule creates or updates a Rule row and its by-id index.
func (s *Store) PutRule(r model.Rule) error {
	if err := s.put(keyRule(r.UserID, r.ID), r); err != nil {
		return err
	}
	return s.put(keyRuleByID(r.ID), ruleByIDPointer{UserID: r.UserID})
}

// GetRule fetches a rule owned by userID.
func (s *Store) GetRule(userID, ruleID string) (model.Rule, bool, error) {
	var r model.Rule
	ok, err := s.get(keyRule(userID, ruleID), &r)
	return r, ok, err
}

// GetRuleByID resolves a bare rule id without knowing its owner up front.
func (s *Store) GetRuleByID(ruleID string) (model.Rule, bool, error) {
	var ptr ruleByIDPointer
	ok, err := s.get(keyRuleByID(ruleID), &ptr)
	if err != nil || !ok {
		return model.Rule{}, false, err
	}
	return s.GetRule(ptr.UserID, ruleID)
}

// DeleteRule hard-deletes a rule and its index entry (spec.md §3 "Rules
// are hard-deletable by their owner"). Callers are responsible for the
// scheduling side effect (removing any per-rule ticker) and for dropping
// queued executions of this rule — see internal/scheduler and
// internal/queue respectively.
func (s *Store) DeleteRule(userID, ruleID string) error {
	if err := s.delete(keyRule(userID, ruleID)); err != nil {
		return err
	}
	return s.delete(keyRuleByID(ruleID))
}

// ListRulesForUser returns every rule (enabled or not) owned by userID.
func (s *Store) ListRulesForUser(userID string) ([]model.Rule, error) {
	var out []model.Rule
	err := s.prefixIter(rulePrefix(userID), func(_, value []byte) (bool, error) {
		var r model.Rule
		if err := jsonUnmarshal(value, &r); err != nil {
			return false, err
		}
		out = append(out, r)
		return true, nil
	})
	return out, err
}

// ListEnabledRulesForUser returns only the enabled rules owned by userID
// (spec.md §4.7 step 1).
func (s *Store) ListEnabledRulesForUser(userID string) ([]model.Rule, error) {
	all, err := s.ListRulesForUser(userID)
	if err != nil {
		return nil, err
	}
	var out []model.Rule
	for _, r := range all {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListAllEnabledRules returns every enabled rule across every user, used
// at scheduler startup to register per-rule tickers (spec.md §4.8).
func (s *Store) ListAllEnabledRules() ([]model.Rule, error) {
	users, err := s.ListUsers()
	if err != nil {
		return nil, err
	}
	var out []model.Rule
	for _, u := range users {
		rules, err := s.ListEnabledRulesForUser(u.BankUserID)
		if err != nil {
			return nil, err
		}
		out = append(out, rules...)
	}
	return out, nil
}

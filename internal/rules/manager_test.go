package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

type fakeStore struct {
	rules map[string]model.Rule
}

func newFakeStore() *fakeStore { return &fakeStore{rules: make(map[string]model.Rule)} }

func (s *fakeStore) PutRule(r model.Rule) error {
	s.rules[r.ID] = r
	return nil
}

func (s *fakeStore) GetRule(userID, ruleID string) (model.Rule, bool, error) {
	r, ok := s.rules[ruleID]
	return r, ok, nil
}

func (s *fakeStore) DeleteRule(userID, ruleID string) error {
	delete(s.rules, ruleID)
	return nil
}

func (s *fakeStore) ListRulesForUser(userID string) ([]model.Rule, error) {
	var out []model.Rule
	for _, r := range s.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) ListEnabledRulesForUser(userID string) ([]model.Rule, error) {
	var out []model.Rule
	for _, r := range s.rules {
		if r.UserID == userID && r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeQueueHook struct {
	cancelled []string
}

func (f *fakeQueueHook) CancelRule(ruleID string) int {
	f.cancelled = append(f.cancelled, ruleID)
	return 1
}

// TestDeleteCancelsQueuedExecutions is the review fix under test: deleting
// a rule must also drop its not-yet-run queued executions (spec.md line
// 60), not just the scheduler registration.
func TestDeleteCancelsQueuedExecutions(t *testing.T) {
	store := newFakeStore()
	hook := &fakeQueueHook{}
	m := NewManager(store, nil, logging.Noop())
	m.SetQueueHook(hook)

	cfg := &SweepConfig{
		TargetPotName: "Savings",
		Sources:       []SweepSource{{PotName: "Spare", Strategy: StrategyAllAvailable}},
		TriggerType:   SweepTriggerManual,
	}
	r, err := m.Create("u1", "sweep", cfg, true)
	require.NoError(t, err)

	require.NoError(t, m.Delete("u1", r.ID))
	require.Equal(t, []string{r.ID}, hook.cancelled)

	_, ok, err := store.GetRule("u1", r.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

// TestDeleteWithoutQueueHookStillSucceeds covers the default NoopQueue,
// wired by NewManager before SetQueueHook is called (e.g. in tests that
// never wire a real queue).
func TestDeleteWithoutQueueHookStillSucceeds(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil, logging.Noop())

	cfg := &SweepConfig{
		TargetPotName: "Savings",
		Sources:       []SweepSource{{PotName: "Spare", Strategy: StrategyAllAvailable}},
		TriggerType:   SweepTriggerManual,
	}
	r, err := m.Create("u1", "sweep", cfg, true)
	require.NoError(t, err)
	require.NoError(t, m.Delete("u1", r.ID))
}

package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3vrt/monzo-auto-sub000/internal/executor"
	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
	"github.com/r3vrt/monzo-auto-sub000/internal/queue"
	"github.com/r3vrt/monzo-auto-sub000/internal/rules"
	"github.com/r3vrt/monzo-auto-sub000/internal/trigger"
)

type fakeStore struct {
	users         []model.User
	rulesByUser   map[string][]model.Rule
	rulesByID     map[string]model.Rule
	primaryByUser map[string]model.Account
}

func (f *fakeStore) ListUsers() ([]model.User, error) { return f.users, nil }

func (f *fakeStore) ListEnabledRulesForUser(userID string) ([]model.Rule, error) {
	return f.rulesByUser[userID], nil
}

func (f *fakeStore) GetRule(userID, ruleID string) (model.Rule, bool, error) {
	r, ok := f.rulesByID[ruleID]
	return r, ok, nil
}

func (f *fakeStore) PrimaryAccountForUser(userID string) (model.Account, bool, error) {
	a, ok := f.primaryByUser[userID]
	return a, ok, nil
}

type fakeExecutor struct {
	sweepCalls, autosorterCalls, topupCalls int
}

func (f *fakeExecutor) RunSweep(ctx context.Context, rule model.Rule, cfg *rules.SweepConfig) (executor.Outcome, error) {
	f.sweepCalls++
	return executor.Outcome{Success: true, AmountMoved: 100}, nil
}

func (f *fakeExecutor) RunAutosorter(ctx context.Context, rule model.Rule, cfg *rules.AutosorterConfig) (executor.Outcome, error) {
	f.autosorterCalls++
	return executor.Outcome{Success: true, AmountMoved: 50}, nil
}

func (f *fakeExecutor) RunAutoTopup(ctx context.Context, rule model.Rule, cfg *rules.AutoTopupConfig) (executor.Outcome, error) {
	f.topupCalls++
	return executor.Outcome{Success: true, AmountMoved: 25}, nil
}

type fakeTrigger struct {
	fire map[string]bool
}

func (f *fakeTrigger) Evaluate(ctx context.Context, rule model.Rule, cfg rules.RuleConfig, now time.Time) (trigger.Result, error) {
	if f.fire[rule.ID] {
		return trigger.Result{ShouldFire: true, Reason: "test fired"}, nil
	}
	return trigger.Result{ShouldFire: false, Reason: "test not fired"}, nil
}

type fakeQueue struct {
	resetCalls int
	items      []queue.Item
}

func (f *fakeQueue) ResetCycle()            { f.resetCalls++ }
func (f *fakeQueue) Enqueue(item queue.Item) { f.items = append(f.items, item) }

func ruleWithConfig(t *testing.T, id, userID string, family model.RuleFamily, cfg rules.RuleConfig) model.Rule {
	t.Helper()
	data, err := rules.Encode(cfg)
	require.NoError(t, err)
	return model.Rule{ID: id, UserID: userID, Family: family, Enabled: true, ConfigJSON: data}
}

func TestRunCycleEnqueuesFiringRulesOnly(t *testing.T) {
	sweepCfg := &rules.SweepConfig{
		Sources:       []rules.SweepSource{{PotName: "Bills", Strategy: rules.StrategyAllAvailable, Priority: 1}},
		TargetPotName: "Savings",
		TriggerType:   rules.SweepTriggerManual,
	}
	r1 := ruleWithConfig(t, "r1", "user_1", model.FamilyPotSweep, sweepCfg)
	r2 := ruleWithConfig(t, "r2", "user_1", model.FamilyPotSweep, sweepCfg)

	store := &fakeStore{
		users:       []model.User{{BankUserID: "user_1"}},
		rulesByUser: map[string][]model.Rule{"user_1": {r1, r2}},
	}
	q := &fakeQueue{}
	tr := &fakeTrigger{fire: map[string]bool{"r1": true}}
	exec := &fakeExecutor{}

	e := New(store, exec, tr, q, logging.Noop())
	require.NoError(t, e.RunCycle(context.Background()))

	assert.Equal(t, 1, q.resetCalls)
	require.Len(t, q.items, 1)
	assert.Equal(t, "r1", q.items[0].RuleID)
}

func TestRunCycleSkipsUsersNeedingReauth(t *testing.T) {
	sweepCfg := &rules.SweepConfig{
		Sources:       []rules.SweepSource{{PotName: "Bills", Strategy: rules.StrategyAllAvailable, Priority: 1}},
		TargetPotName: "Savings",
		TriggerType:   rules.SweepTriggerManual,
	}
	r1 := ruleWithConfig(t, "r1", "user_1", model.FamilyPotSweep, sweepCfg)
	store := &fakeStore{
		users:       []model.User{{BankUserID: "user_1", NeedsReauth: true}},
		rulesByUser: map[string][]model.Rule{"user_1": {r1}},
	}
	q := &fakeQueue{}
	tr := &fakeTrigger{fire: map[string]bool{"r1": true}}
	exec := &fakeExecutor{}

	e := New(store, exec, tr, q, logging.Noop())
	require.NoError(t, e.RunCycle(context.Background()))
	assert.Empty(t, q.items)
}

func TestRunCycleDefersAutomationTriggerAutosorterWithDependsOn(t *testing.T) {
	sweepCfg := &rules.SweepConfig{
		Sources:       []rules.SweepSource{{PotName: "Bills", Strategy: rules.StrategyAllAvailable, Priority: 1}},
		TargetPotName: "Savings",
		TriggerType:   rules.SweepTriggerManual,
	}
	autosorterCfg := &rules.AutosorterConfig{
		HoldingPotID: "pot_holding",
		TriggerType:  rules.AutosorterTriggerAutomationTrigger,
	}
	r1 := ruleWithConfig(t, "r1", "user_1", model.FamilyPotSweep, sweepCfg)
	r2 := ruleWithConfig(t, "r2", "user_1", model.FamilyAutosorter, autosorterCfg)

	store := &fakeStore{
		users:       []model.User{{BankUserID: "user_1"}},
		rulesByUser: map[string][]model.Rule{"user_1": {r1, r2}},
	}
	q := &fakeQueue{}
	tr := &fakeTrigger{fire: map[string]bool{"r1": true}}
	exec := &fakeExecutor{}

	e := New(store, exec, tr, q, logging.Noop())
	require.NoError(t, e.RunCycle(context.Background()))

	require.Len(t, q.items, 2)
	assert.Equal(t, "r1", q.items[0].RuleID)
	assert.Equal(t, "r2", q.items[1].RuleID)
	assert.Equal(t, []string{"r1"}, q.items[1].DependsOn)
}

func TestExecuteManualBypassesTriggerEvaluator(t *testing.T) {
	topupCfg := &rules.AutoTopupConfig{
		SourceAccountID: "acc_1",
		TargetPotID:     "pot_1",
		AmountMinor:     500,
		TriggerType:     rules.AutoTopupTriggerBalanceThreshold,
		MinBalanceMinor: int64Ptr(100),
	}
	r1 := ruleWithConfig(t, "r1", "user_1", model.FamilyAutoTopup, topupCfg)
	store := &fakeStore{rulesByID: map[string]model.Rule{"r1": r1}}
	q := &fakeQueue{}
	tr := &fakeTrigger{} // nothing fires — must not matter for manual execution
	exec := &fakeExecutor{}

	e := New(store, exec, tr, q, logging.Noop())
	require.NoError(t, e.ExecuteManual(context.Background(), "user_1", "r1"))

	require.Len(t, q.items, 1)
	assert.True(t, q.items[0].Manual)
	assert.Equal(t, queue.PriorityNormal, q.items[0].Priority)
	assert.Equal(t, "acc_1", q.items[0].AccountID)
}

func int64Ptr(v int64) *int64 { return &v }

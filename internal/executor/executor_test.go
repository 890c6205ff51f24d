package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
	"github.com/r3vrt/monzo-auto-sub000/internal/rules"
	"github.com/r3vrt/monzo-auto-sub000/internal/trigger"
)

type fakeStore struct {
	pots         map[string]model.Pot
	potsByName   map[string]model.Pot
	account      model.Account
	billsTxns    []model.BillsPotTransaction
	allUserPots  []model.Pot
	intents      map[string]model.TransferIntent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pots:       make(map[string]model.Pot),
		potsByName: make(map[string]model.Pot),
		intents:    make(map[string]model.TransferIntent),
	}
}

func (f *fakeStore) addPot(p model.Pot) {
	f.pots[p.BankPotID] = p
	f.potsByName[p.Name] = p
	f.allUserPots = append(f.allUserPots, p)
}

func (f *fakeStore) GetPotByID(potID string) (model.Pot, bool, error) {
	p, ok := f.pots[potID]
	return p, ok, nil
}
func (f *fakeStore) FindPotByName(userID, name string) (model.Pot, bool, error) {
	p, ok := f.potsByName[name]
	return p, ok, nil
}
func (f *fakeStore) ListPotsForUser(userID string) ([]model.Pot, error) { return f.allUserPots, nil }
func (f *fakeStore) PrimaryAccountForUser(userID string) (model.Account, bool, error) {
	return f.account, true, nil
}
func (f *fakeStore) PutTransferIntent(i model.TransferIntent) error {
	f.intents[i.ID] = i
	return nil
}
func (f *fakeStore) DeleteTransferIntent(userID, id string) error {
	delete(f.intents, id)
	return nil
}
func (f *fakeStore) ListBillsPotTransactionsSince(userID, potID string, since time.Time) ([]model.BillsPotTransaction, error) {
	return f.billsTxns, nil
}
func (f *fakeStore) ListTransactionsSince(userID string, since time.Time) ([]model.Transaction, error) {
	return nil, nil
}

type fakeBank struct {
	accountBalances map[string]int64
	potsByAccount   map[string][]model.Pot
	deposits        []bankMove
	withdrawals     []bankMove
}

type bankMove struct {
	PotID, AccountID string
	AmountMinor      int64
	DedupeID         string
}

func newFakeBank() *fakeBank {
	return &fakeBank{accountBalances: make(map[string]int64), potsByAccount: make(map[string][]model.Pot)}
}

func (f *fakeBank) GetBalance(ctx context.Context, userID, accountID string) (int64, error) {
	return f.accountBalances[accountID], nil
}
func (f *fakeBank) GetPots(ctx context.Context, userID, accountID string) ([]model.Pot, error) {
	return f.potsByAccount[accountID], nil
}
func (f *fakeBank) DepositToPot(ctx context.Context, userID, potID, fromAccountID string, amountMinor int64, dedupeID string) error {
	f.deposits = append(f.deposits, bankMove{potID, fromAccountID, amountMinor, dedupeID})
	return nil
}
func (f *fakeBank) WithdrawFromPot(ctx context.Context, userID, potID, toAccountID string, amountMinor int64, dedupeID string) error {
	f.withdrawals = append(f.withdrawals, bankMove{potID, toAccountID, amountMinor, dedupeID})
	return nil
}

func newTestExecutor(store *fakeStore, bank *fakeBank) *Executor {
	tr := trigger.NewReader(store, bank, logging.Noop())
	return New(store, bank, tr, logging.Noop())
}

// TestAutoTopupHappyPath reproduces spec.md's worked example: main account
// balance 1,200 pence, target pot "Coffee" at 500 pence, targetBalance
// 5,000, configured amount (max) 10,000, minBalance 1,000 — expecting a
// topup of 4,500 pence, clamped by the 1,200 pence source balance to 1,200.
func TestAutoTopupHappyPath(t *testing.T) {
	store := newFakeStore()
	bankFake := newFakeBank()
	store.account = model.Account{BankAccountID: "acc1"}
	store.addPot(model.Pot{BankPotID: "pot-coffee", AccountID: "acc1", Name: "Coffee", BalanceMinor: 500})
	bankFake.accountBalances["acc1"] = 1200
	bankFake.potsByAccount["acc1"] = []model.Pot{{BankPotID: "pot-coffee", BalanceMinor: 500}}

	e := newTestExecutor(store, bankFake)
	target := int64(5000)
	minBal := int64(1000)
	cfg := &rules.AutoTopupConfig{
		SourceAccountID:    "acc1",
		TargetPotID:        "pot-coffee",
		AmountMinor:        10000,
		TargetBalanceMinor: &target,
		TriggerType:        rules.AutoTopupTriggerBalanceThreshold,
		MinBalanceMinor:    &minBal,
	}
	rule := model.Rule{ID: "r1", UserID: "u1", Family: model.FamilyAutoTopup}

	outcome, err := e.RunAutoTopup(context.Background(), rule, cfg)
	require.NoError(t, err)
	require.True(t, outcome.Success)
	require.Equal(t, int64(1200), outcome.AmountMoved)
	require.Len(t, bankFake.deposits, 1)
	require.Equal(t, "pot-coffee", bankFake.deposits[0].PotID)
	require.Equal(t, int64(1200), bankFake.deposits[0].AmountMinor)
}

func TestAutoTopupSuppressedWithinCooldown(t *testing.T) {
	store := newFakeStore()
	bankFake := newFakeBank()
	e := newTestExecutor(store, bankFake)
	recent := time.Now().Add(-time.Minute)
	rule := model.Rule{ID: "r1", UserID: "u1", LastExecuted: &recent}
	cfg := &rules.AutoTopupConfig{TargetPotID: "p", AmountMinor: 100, TriggerType: rules.AutoTopupTriggerDaily}

	outcome, err := e.RunAutoTopup(context.Background(), rule, cfg)
	require.NoError(t, err)
	require.False(t, outcome.Success)
	require.Empty(t, bankFake.deposits)
}

func TestAutoTopupInsufficientSourceBalanceErrors(t *testing.T) {
	store := newFakeStore()
	bankFake := newFakeBank()
	store.account = model.Account{BankAccountID: "acc1"}
	store.addPot(model.Pot{BankPotID: "pot1", AccountID: "acc1", Name: "Target", BalanceMinor: 0})
	bankFake.accountBalances["acc1"] = 10
	bankFake.potsByAccount["acc1"] = []model.Pot{{BankPotID: "pot1", BalanceMinor: 0}}

	e := newTestExecutor(store, bankFake)
	rule := model.Rule{ID: "r1", UserID: "u1"}
	cfg := &rules.AutoTopupConfig{
		SourceAccountID: "acc1", TargetPotID: "pot1", AmountMinor: 500,
		TriggerType: rules.AutoTopupTriggerMinute, IntervalMinutes: 1,
	}
	_, err := e.RunAutoTopup(context.Background(), rule, cfg)
	require.Error(t, err)
}

func TestSweepFixedAmount(t *testing.T) {
	store := newFakeStore()
	bankFake := newFakeBank()
	store.account = model.Account{BankAccountID: "acc1"}
	store.addPot(model.Pot{BankPotID: "pot-target", AccountID: "acc1", Name: "Savings"})
	store.addPot(model.Pot{BankPotID: "pot-source", AccountID: "acc1", Name: "Spare", BalanceMinor: 3000})
	bankFake.potsByAccount["acc1"] = []model.Pot{
		{BankPotID: "pot-target", BalanceMinor: 0},
		{BankPotID: "pot-source", BalanceMinor: 3000},
	}

	e := newTestExecutor(store, bankFake)
	amt := int64(1000)
	cfg := &rules.SweepConfig{
		TargetPotName: "Savings",
		TriggerType:   rules.SweepTriggerManual,
		Sources: []rules.SweepSource{
			{PotName: "Spare", Strategy: rules.StrategyFixedAmount, AmountMinor: &amt, Priority: 0},
		},
	}
	rule := model.Rule{ID: "r1", UserID: "u1", Family: model.FamilyPotSweep}

	outcome, err := e.RunSweep(context.Background(), rule, cfg)
	require.NoError(t, err)
	require.True(t, outcome.Success)
	require.Equal(t, int64(1000), outcome.AmountMoved)
	require.Len(t, bankFake.withdrawals, 1)
	require.Len(t, bankFake.deposits, 1)
}

func TestSweepMainAccountSourceIsSingleLeg(t *testing.T) {
	store := newFakeStore()
	bankFake := newFakeBank()
	store.account = model.Account{BankAccountID: "acc1"}
	store.addPot(model.Pot{BankPotID: "pot-target", AccountID: "acc1", Name: "Savings"})
	bankFake.accountBalances["acc1"] = 2000
	bankFake.potsByAccount["acc1"] = []model.Pot{{BankPotID: "pot-target", BalanceMinor: 0}}

	e := newTestExecutor(store, bankFake)
	cfg := &rules.SweepConfig{
		TargetPotName: "Savings",
		TriggerType:   rules.SweepTriggerManual,
		Sources: []rules.SweepSource{
			{PotName: model.MainAccountSentinel, Strategy: rules.StrategyAllAvailable, Priority: 0},
		},
	}
	rule := model.Rule{ID: "r1", UserID: "u1"}

	outcome, err := e.RunSweep(context.Background(), rule, cfg)
	require.NoError(t, err)
	require.True(t, outcome.Success)
	require.Equal(t, int64(2000), outcome.AmountMoved)
	require.Empty(t, bankFake.withdrawals)
	require.Len(t, bankFake.deposits, 1)
}

func TestSweepPaydayDetectionSuppressedWithinCooldown(t *testing.T) {
	store := newFakeStore()
	bankFake := newFakeBank()
	e := newTestExecutor(store, bankFake)
	recent := time.Now().Add(-time.Hour)
	rule := model.Rule{ID: "r1", UserID: "u1", LastExecuted: &recent}
	cfg := &rules.SweepConfig{
		TargetPotName: "Savings",
		TriggerType:   rules.SweepTriggerPaydayDetection,
		Sources:       []rules.SweepSource{{PotName: "Spare", Strategy: rules.StrategyAllAvailable, Priority: 0}},
	}

	outcome, err := e.RunSweep(context.Background(), rule, cfg)
	require.NoError(t, err)
	require.False(t, outcome.Success)
	require.Empty(t, bankFake.withdrawals)
	require.Empty(t, bankFake.deposits)
}

func TestAutosorterBillsReplenishmentMovesBillsSpending(t *testing.T) {
	store := newFakeStore()
	bankFake := newFakeBank()
	store.account = model.Account{BankAccountID: "acc1"}
	store.addPot(model.Pot{BankPotID: "pot-holding", AccountID: "acc1", Name: "Holding", BalanceMinor: 5000})
	store.addPot(model.Pot{BankPotID: "pot-bills", AccountID: "acc1", Name: "Bills", BalanceMinor: 100})
	bankFake.potsByAccount["acc1"] = []model.Pot{
		{BankPotID: "pot-holding", BalanceMinor: 5000},
		{BankPotID: "pot-bills", BalanceMinor: 100},
	}
	store.billsTxns = []model.BillsPotTransaction{
		{BankTransactionID: "t1", PotID: "pot-bills", AmountMinor: -800, CreatedAt: time.Now().Add(-time.Hour)},
	}

	e := newTestExecutor(store, bankFake)
	cfg := &rules.AutosorterConfig{
		HoldingPotID:           "pot-holding",
		BillsPotID:             "pot-bills",
		PaydayDate:             1,
		MinHoldingBalanceMinor: 0,
		TriggerType:            rules.AutosorterTriggerManualOnly,
	}
	rule := model.Rule{ID: "r1", UserID: "u1"}

	outcome, err := e.RunAutosorter(context.Background(), rule, cfg)
	require.NoError(t, err)
	require.True(t, outcome.Success)
	require.Equal(t, int64(800), outcome.AmountMoved)
}

func TestAutosorterPriorityPotsCapAtGoal(t *testing.T) {
	store := newFakeStore()
	bankFake := newFakeBank()
	store.account = model.Account{BankAccountID: "acc1"}
	store.addPot(model.Pot{BankPotID: "pot-holding", AccountID: "acc1", Name: "Holding", BalanceMinor: 10000})
	store.addPot(model.Pot{BankPotID: "pot-goal", AccountID: "acc1", Name: "NewPhone", BalanceMinor: 900, GoalMinor: 1000})
	bankFake.potsByAccount["acc1"] = []model.Pot{
		{BankPotID: "pot-holding", BalanceMinor: 10000},
		{BankPotID: "pot-goal", BalanceMinor: 900},
	}

	e := newTestExecutor(store, bankFake)
	amt := int64(5000)
	cfg := &rules.AutosorterConfig{
		HoldingPotID: "pot-holding",
		PriorityPots: []rules.AutosorterAllocation{
			{PotID: "pot-goal", PotName: "NewPhone", AllocationType: rules.AllocationFixedAmount, AmountMinor: &amt, Priority: 0},
		},
		IncludeGoalPots: boolPtr(false),
		TriggerType:     rules.AutosorterTriggerManualOnly,
	}
	rule := model.Rule{ID: "r1", UserID: "u1"}

	outcome, err := e.RunAutosorter(context.Background(), rule, cfg)
	require.NoError(t, err)
	require.True(t, outcome.Success)
	require.Equal(t, int64(100), outcome.AmountMoved) // capped at goal headroom, not the requested 5000
}

func boolPtr(b bool) *bool { return &b }

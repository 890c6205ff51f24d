package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
	"github.com/r3vrt/monzo-auto-sub000/internal/rules"
)

type fakeStore struct {
	pots         map[string]model.Pot
	potsByName   map[string]model.Pot
	primary      model.Account
	hasPrimary   bool
	transactions []model.Transaction
}

func (f *fakeStore) GetPotByID(potID string) (model.Pot, bool, error) {
	p, ok := f.pots[potID]
	return p, ok, nil
}

func (f *fakeStore) FindPotByName(userID, name string) (model.Pot, bool, error) {
	p, ok := f.potsByName[name]
	return p, ok, nil
}

func (f *fakeStore) PrimaryAccountForUser(userID string) (model.Account, bool, error) {
	return f.primary, f.hasPrimary, nil
}

func (f *fakeStore) ListTransactionsSince(userID string, since time.Time) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, t := range f.transactions {
		if !t.CreatedAt.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeBank struct {
	balances map[string]int64
	balErr   error
	pots     map[string][]model.Pot
}

func (f *fakeBank) GetBalance(ctx context.Context, userID, accountID string) (int64, error) {
	if f.balErr != nil {
		return 0, f.balErr
	}
	return f.balances[accountID], nil
}

func (f *fakeBank) GetPots(ctx context.Context, userID, accountID string) ([]model.Pot, error) {
	return f.pots[accountID], nil
}

func newTestReader(store Store, bank BankClient) *Reader {
	return NewReader(store, bank, logging.Noop())
}

func TestEvaluateAutoTopupBalanceThreshold(t *testing.T) {
	minBal := int64(1000)
	cfg := &rules.AutoTopupConfig{
		TargetPotID: "pot1", TriggerType: rules.AutoTopupTriggerBalanceThreshold, MinBalanceMinor: &minBal,
	}
	store := &fakeStore{pots: map[string]model.Pot{"pot1": {BankPotID: "pot1", AccountID: "acc1", BalanceMinor: 500}}}
	bank := &fakeBank{pots: map[string][]model.Pot{"acc1": {{BankPotID: "pot1", BalanceMinor: 500}}}}
	r := newTestReader(store, bank)

	res, err := r.Evaluate(context.Background(), model.Rule{UserID: "u1"}, cfg, time.Now())
	require.NoError(t, err)
	require.True(t, res.ShouldFire)
}

func TestEvaluateAutoTopupBalanceThresholdNotFired(t *testing.T) {
	minBal := int64(100)
	cfg := &rules.AutoTopupConfig{
		TargetPotID: "pot1", TriggerType: rules.AutoTopupTriggerBalanceThreshold, MinBalanceMinor: &minBal,
	}
	store := &fakeStore{pots: map[string]model.Pot{"pot1": {BankPotID: "pot1", AccountID: "acc1", BalanceMinor: 500}}}
	bank := &fakeBank{pots: map[string][]model.Pot{"acc1": {{BankPotID: "pot1", BalanceMinor: 500}}}}
	r := newTestReader(store, bank)

	res, err := r.Evaluate(context.Background(), model.Rule{UserID: "u1"}, cfg, time.Now())
	require.NoError(t, err)
	require.False(t, res.ShouldFire)
}

func TestEvaluateAutoTopupMinuteInterval(t *testing.T) {
	cfg := &rules.AutoTopupConfig{TargetPotID: "pot1", TriggerType: rules.AutoTopupTriggerMinute, IntervalMinutes: 30}
	store := &fakeStore{pots: map[string]model.Pot{"pot1": {BankPotID: "pot1", AccountID: "acc1", BalanceMinor: 0}}}
	bank := &fakeBank{pots: map[string][]model.Pot{"acc1": {{BankPotID: "pot1", BalanceMinor: 0}}}}
	r := newTestReader(store, bank)

	now := time.Now().UTC()
	recent := now.Add(-10 * time.Minute)
	rule := model.Rule{UserID: "u1", LastExecuted: &recent}
	res, err := r.Evaluate(context.Background(), rule, cfg, now)
	require.NoError(t, err)
	require.False(t, res.ShouldFire, "interval not yet elapsed")

	old := now.Add(-45 * time.Minute)
	rule.LastExecuted = &old
	res, err = r.Evaluate(context.Background(), rule, cfg, now)
	require.NoError(t, err)
	require.True(t, res.ShouldFire, "interval elapsed")
}

func TestEvaluateAutoTopupMinBalanceGate(t *testing.T) {
	minBal := int64(200)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cfg := &rules.AutoTopupConfig{
		TargetPotID: "pot1", TriggerType: rules.AutoTopupTriggerDaily,
		TriggerHour: 9, TriggerMin: 0, MinBalanceMinor: &minBal,
	}
	store := &fakeStore{pots: map[string]model.Pot{"pot1": {BankPotID: "pot1", AccountID: "acc1", BalanceMinor: 500}}}
	bank := &fakeBank{pots: map[string][]model.Pot{"acc1": {{BankPotID: "pot1", BalanceMinor: 500}}}}
	r := newTestReader(store, bank)

	res, err := r.Evaluate(context.Background(), model.Rule{UserID: "u1"}, cfg, now)
	require.NoError(t, err)
	require.False(t, res.ShouldFire, "time matches but balance is above min_balance_minor")
}

func TestEvaluateSweepPaydayDetection(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	cfg := &rules.SweepConfig{
		TargetPotName: "Savings", Sources: []rules.SweepSource{{PotName: model.MainAccountSentinel, Strategy: rules.StrategyAllAvailable}},
		TriggerType: rules.SweepTriggerPaydayDetection, PaydayThresholdMinor: 50_000,
	}
	store := &fakeStore{
		transactions: []model.Transaction{
			{BankTransactionID: "t1", CreatedAt: now.Add(-1 * time.Hour), AmountMinor: 100_000, Description: "ACME PAYROLL"},
		},
	}
	bank := &fakeBank{}
	r := newTestReader(store, bank)

	res, err := r.Evaluate(context.Background(), model.Rule{UserID: "u1"}, cfg, now)
	require.NoError(t, err)
	require.True(t, res.ShouldFire)
}

func TestEvaluateSweepPaydayDetectionRespectsCooldown(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	lastExec := now.Add(-2 * 24 * time.Hour)
	cfg := &rules.SweepConfig{
		TargetPotName: "Savings", Sources: []rules.SweepSource{{PotName: model.MainAccountSentinel, Strategy: rules.StrategyAllAvailable}},
		TriggerType: rules.SweepTriggerPaydayDetection, PaydayThresholdMinor: 50_000,
	}
	store := &fakeStore{
		transactions: []model.Transaction{
			{BankTransactionID: "t1", CreatedAt: now.Add(-1 * time.Hour), AmountMinor: 100_000, Description: "PAYROLL"},
		},
	}
	r := newTestReader(store, &fakeBank{})

	res, err := r.Evaluate(context.Background(), model.Rule{UserID: "u1", LastExecuted: &lastExec}, cfg, now)
	require.NoError(t, err)
	require.False(t, res.ShouldFire)
}

func TestEvaluateAutosorterDateRangeWraps(t *testing.T) {
	cfg := &rules.AutosorterConfig{
		HoldingPotID: "holding", TriggerType: rules.AutosorterTriggerDateRange,
		DateRangeStart: 28, DateRangeEnd: 3,
	}
	r := newTestReader(&fakeStore{}, &fakeBank{})

	for _, day := range []int{28, 30, 31, 1, 2, 3} {
		// time.Date normalizes day-of-month overflow, so day 30/31 in
		// February rolls forward into March automatically.
		now := time.Date(2026, 2, day, 10, 0, 0, 0, time.UTC)
		res, err := r.Evaluate(context.Background(), model.Rule{UserID: "u1"}, cfg, now)
		require.NoError(t, err)
		require.True(t, res.ShouldFire)
	}

	mid := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)
	res, err := r.Evaluate(context.Background(), model.Rule{UserID: "u1"}, cfg, mid)
	require.NoError(t, err)
	require.False(t, res.ShouldFire)
}

func TestEvaluateAutosorterTimeOfDayWindow(t *testing.T) {
	cfg := &rules.AutosorterConfig{
		HoldingPotID: "holding", TriggerType: rules.AutosorterTriggerTimeOfDay,
		PaydayDate: 1, TimeOfDayHour: 9, TimeOfDayMin: 0,
	}
	r := newTestReader(&fakeStore{}, &fakeBank{})

	withinWindow := time.Date(2026, 4, 1, 9, 45, 0, 0, time.UTC)
	res, err := r.Evaluate(context.Background(), model.Rule{UserID: "u1"}, cfg, withinWindow)
	require.NoError(t, err)
	require.True(t, res.ShouldFire)

	outsideWindow := time.Date(2026, 4, 1, 11, 30, 0, 0, time.UTC)
	res, err = r.Evaluate(context.Background(), model.Rule{UserID: "u1"}, cfg, outsideWindow)
	require.NoError(t, err)
	require.False(t, res.ShouldFire)
}

func TestEvaluateAutosorterManualOnlyNeverFires(t *testing.T) {
	cfg := &rules.AutosorterConfig{HoldingPotID: "holding", TriggerType: rules.AutosorterTriggerManualOnly}
	r := newTestReader(&fakeStore{}, &fakeBank{})

	res, err := r.Evaluate(context.Background(), model.Rule{UserID: "u1"}, cfg, time.Now())
	require.NoError(t, err)
	require.False(t, res.ShouldFire)
}

func TestEvaluateTransactionBasedFilter(t *testing.T) {
	now := time.Now().UTC()
	min := int64(1000)
	cfg := &rules.AutoTopupConfig{
		TargetPotID: "pot1", TriggerType: rules.AutoTopupTriggerTransactionBased,
		TransactionFilter: rules.TransactionFilter{DescriptionContains: "coffee", AmountMinMinor: &min},
	}
	store := &fakeStore{transactions: []model.Transaction{
		{BankTransactionID: "t1", CreatedAt: now.Add(-time.Minute), Description: "Costa Coffee", AmountMinor: 1500},
		{BankTransactionID: "t2", CreatedAt: now.Add(-time.Minute), Description: "Tesco", AmountMinor: 2000},
	}}
	r := newTestReader(store, &fakeBank{})

	res, err := r.Evaluate(context.Background(), model.Rule{UserID: "u1"}, cfg, now)
	require.NoError(t, err)
	require.True(t, res.ShouldFire)
}

func TestReaderFallsBackToStaleBalanceWhenPotMissingFromLiveListing(t *testing.T) {
	store := &fakeStore{pots: map[string]model.Pot{"pot1": {BankPotID: "pot1", AccountID: "acc1", BalanceMinor: 777}}}
	bank := &fakeBank{balErr: nil, pots: nil}
	r := newTestReader(store, bank)

	bal, stale, err := r.PotBalance(context.Background(), "u1", "pot1")
	require.NoError(t, err)
	require.True(t, stale)
	require.Equal(t, int64(777), bal)
}

func TestComputeTopupAmountClampsToZeroAndSourceBalance(t *testing.T) {
	require.Equal(t, int64(4500), ComputeTopupAmount(5000, 500, 10000, 100000))
	require.Equal(t, int64(0), ComputeTopupAmount(500, 500, 10000, 100000))
	require.Equal(t, int64(50), ComputeTopupAmount(5000, 0, 10000, 50))
}

// 2024-01-07 is a Sunday: Go's time.Weekday is 0, the sweep family's
// isoweekday convention is 7, and the auto_topup family's Python-weekday
// convention is 6 — the three disagree, which is exactly what each
// conversion helper exists to reconcile.
func TestEvaluateSweepWeeklyUsesISOWeekday(t *testing.T) {
	sunday := time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC)
	cfg := &rules.SweepConfig{TriggerType: rules.SweepTriggerWeekly, TriggerDay: 7}
	r := newTestReader(&fakeStore{}, &fakeBank{})

	res, err := r.Evaluate(context.Background(), model.Rule{UserID: "u1"}, cfg, sunday)
	require.NoError(t, err)
	require.True(t, res.ShouldFire)
}

func TestEvaluateSweepWeeklyGoSundayIsNotTriggerDayZero(t *testing.T) {
	sunday := time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC)
	cfg := &rules.SweepConfig{TriggerType: rules.SweepTriggerWeekly, TriggerDay: 0}
	r := newTestReader(&fakeStore{}, &fakeBank{})

	res, err := r.Evaluate(context.Background(), model.Rule{UserID: "u1"}, cfg, sunday)
	require.NoError(t, err)
	require.False(t, res.ShouldFire)
}

func TestEvaluateAutoTopupWeeklyUsesMondayZeroWeekday(t *testing.T) {
	sunday := time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC)
	cfg := &rules.AutoTopupConfig{TargetPotID: "pot1", TriggerType: rules.AutoTopupTriggerWeekly, TriggerDay: 6}
	store := &fakeStore{pots: map[string]model.Pot{"pot1": {BankPotID: "pot1", AccountID: "acc1"}}}
	bank := &fakeBank{pots: map[string][]model.Pot{"acc1": {{BankPotID: "pot1"}}}}
	r := newTestReader(store, bank)

	res, err := r.Evaluate(context.Background(), model.Rule{UserID: "u1"}, cfg, sunday)
	require.NoError(t, err)
	require.True(t, res.ShouldFire)
}

func TestEvaluateAutoTopupWeeklyMondayIsDayZero(t *testing.T) {
	monday := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cfg := &rules.AutoTopupConfig{TargetPotID: "pot1", TriggerType: rules.AutoTopupTriggerWeekly, TriggerDay: 0}
	store := &fakeStore{pots: map[string]model.Pot{"pot1": {BankPotID: "pot1", AccountID: "acc1"}}}
	bank := &fakeBank{pots: map[string][]model.Pot{"acc1": {{BankPotID: "pot1"}}}}
	r := newTestReader(store, bank)

	res, err := r.Evaluate(context.Background(), model.Rule{UserID: "u1"}, cfg, monday)
	require.NoError(t, err)
	require.True(t, res.ShouldFire)
}

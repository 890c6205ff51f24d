// Package executor implements the three Rule Executors (spec.md §4.6):
// sweep, autosorter, and auto-topup. Every money-moving call reads live
// balances through internal/trigger.Reader (never trusting a possibly
// stale Local Store row) and writes through a narrow BankClient seam.
package executor

import (
	"context"
	"time"

	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
	"github.com/r3vrt/monzo-auto-sub000/internal/trigger"
)

// Outcome is what a rule executor reports after attempting to run; it is
// the shape internal/queue.Outcome mirrors so a closure built in
// internal/automation can pass one straight through to the other.
type Outcome struct {
	Success     bool
	AmountMoved int64
	Reason      string
}

// SourceResult records one source/pot's contribution to a multi-leg run
// (sweep sources, autosorter allocations), surfaced for logging.
type SourceResult struct {
	PotName     string
	AmountMoved int64
	Err         string
}

// Store is the slice of internal/store.Store the executors need.
type Store interface {
	GetPotByID(potID string) (model.Pot, bool, error)
	FindPotByName(userID, name string) (model.Pot, bool, error)
	ListPotsForUser(userID string) ([]model.Pot, error)
	PrimaryAccountForUser(userID string) (model.Account, bool, error)
	PutTransferIntent(model.TransferIntent) error
	DeleteTransferIntent(userID, id string) error
	ListBillsPotTransactionsSince(userID, potID string, since time.Time) ([]model.BillsPotTransaction, error)
}

// BankClient is the slice of internal/bank.Client the executors need.
type BankClient interface {
	DepositToPot(ctx context.Context, userID, potID, fromAccountID string, amountMinor int64, dedupeID string) error
	WithdrawFromPot(ctx context.Context, userID, potID, toAccountID string, amountMinor int64, dedupeID string) error
}

// Executor runs the three rule families' money-moving algorithms.
type Executor struct {
	store   Store
	bank    BankClient
	trigger *trigger.Reader
	log     logging.Logger
}

func New(store Store, bank BankClient, tr *trigger.Reader, log logging.Logger) *Executor {
	return &Executor{store: store, bank: bank, trigger: tr, log: log.With("component", "executor")}
}

func minInt64(xs ...int64) int64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Package sync is the Sync Engine: incremental replication of accounts,
// pots, and transactions from the Bank Client into Local Store (spec.md
// §4.2).
package sync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/r3vrt/monzo-auto-sub000/internal/coreerr"
	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/metrics"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

// historyWindow is the bank API's hard history limit (spec.md §4.2).
const historyWindow = 89 * 24 * time.Hour

// maxCommitBatch caps the number of transactions committed per account per
// run (spec.md §4.2 step 3).
const maxCommitBatch = 1000

// accountTimeout and paginatedTimeout bound every Bank Client call
// (spec.md §4.2 "Timeout and cancellation").
const (
	accountTimeout   = 30 * time.Second
	paginatedTimeout = 120 * time.Second
)

// Store is the slice of internal/store.Store the sync engine needs.
type Store interface {
	ListActiveAccounts() ([]model.Account, error)
	PutAccountBatch(b *pebble.Batch, a model.Account) error
	PutPotBatch(b *pebble.Batch, p model.Pot) error
	LatestTransaction(userID, accountID string) (model.Transaction, bool, error)
	PutTransactionBatch(b *pebble.Batch, t model.Transaction) error
	LatestBillsPotTransaction(userID, potID string) (model.BillsPotTransaction, bool, error)
	PutBillsPotTransactionBatch(b *pebble.Batch, t model.BillsPotTransaction) error
	PotsWithCategory(userID string, category model.PotCategory) ([]model.Pot, error)
	MarkNeedsReauth(userID string, needs bool) error
	ListOpenIntentsAllUsers() ([]model.TransferIntent, error)
	NewBatch() *pebble.Batch
	CommitBatch(b *pebble.Batch) error
}

// BankClient is the slice of internal/bank.Client the sync engine needs.
type BankClient interface {
	GetAccounts(ctx context.Context, userID string) ([]model.Account, error)
	GetPots(ctx context.Context, userID, accountID string) ([]model.Pot, error)
	GetTransactions(ctx context.Context, userID, accountID string, since, before *time.Time, autoPaginate bool) ([]model.Transaction, error)
}

// PostSyncHook is invoked once a user's accounts have synced, so automation
// can react without internal/sync importing internal/automation or
// internal/scheduler (Design Note "Cyclic Module References"). Declared
// here, at the consumer, rather than at a producer package: any type that
// implements OnSyncComplete satisfies it structurally, so the wiring layer
// (cmd/potautomation) can hand in internal/automation's integration point
// without either package importing the other.
type PostSyncHook interface {
	OnSyncComplete(ctx context.Context, userID string) error
}

type noopHook struct{}

func (noopHook) OnSyncComplete(context.Context, string) error { return nil }

// Engine is the Sync Engine (spec.md §4.2).
type Engine struct {
	store   Store
	bank    BankClient
	hook    PostSyncHook
	log     logging.Logger
	metrics *metrics.Registry

	subscriptionMerchants []string

	running atomic.Bool
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithSubscriptionMerchants overrides the default merchant-name substrings
// used to classify bills pot transactions as subscription spend.
func WithSubscriptionMerchants(merchants []string) Option {
	return func(e *Engine) { e.subscriptionMerchants = merchants }
}

// WithPostSyncHook overrides the no-op default hook.
func WithPostSyncHook(hook PostSyncHook) Option {
	return func(e *Engine) { e.hook = hook }
}

// defaultSubscriptionMerchants is a starter set of recurring-payment
// merchant name fragments; real deployments override this via
// WithSubscriptionMerchants against their own bills pot history.
var defaultSubscriptionMerchants = []string{"netflix", "spotify", "amazon prime", "disney+", "gym"}

func New(store Store, bank BankClient, log logging.Logger, reg *metrics.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:                 store,
		bank:                  bank,
		hook:                  noopHook{},
		log:                   log.With("component", "sync"),
		metrics:               reg,
		subscriptionMerchants: defaultSubscriptionMerchants,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one full sync pass across every active account (spec.md
// §4.2 "Concurrency": only one invocation may be in flight globally). A
// concurrent call while one is already running is a no-op, not an error —
// the scheduler's sync ticker simply skips a tick it can't keep up with.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		e.log.Warn("sync: run already in progress, skipping tick")
		return nil
	}
	defer e.running.Store(false)

	if e.metrics != nil {
		e.metrics.SyncRuns.Inc()
	}

	accounts, err := e.store.ListActiveAccounts()
	if err != nil {
		return fmt.Errorf("sync: list active accounts: %w", err)
	}

	syncedUsers := make(map[string]bool)
	for _, acct := range accounts {
		if err := e.syncAccount(ctx, acct); err != nil {
			e.log.Error("sync: account sync failed", "user_id", acct.UserID, "account_id", acct.BankAccountID, "error", err)
			if e.metrics != nil {
				e.metrics.SyncErrors.WithLabelValues(classifyError(err)).Inc()
			}
			continue
		}
		syncedUsers[acct.UserID] = true
	}

	for userID := range syncedUsers {
		if err := e.hook.OnSyncComplete(ctx, userID); err != nil {
			e.log.Error("sync: post-sync hook failed", "user_id", userID, "error", err)
		}
	}
	return nil
}

func classifyError(err error) string {
	switch {
	case isErr(err, coreerr.ErrReauthRequired):
		return "reauth"
	case isErr(err, coreerr.ErrBankTransient), isErr(err, coreerr.ErrAuthTransient):
		return "transient"
	default:
		return "other"
	}
}

func isErr(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

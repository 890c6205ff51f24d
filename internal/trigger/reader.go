// Package trigger is the Trigger Evaluator: given a rule's typed config
// and the current instant, decides whether the rule should fire (spec.md
// §4.4). Evaluation reads through a narrow Store/BankClient seam so it
// can be exercised with fakes in tests.
package trigger

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

// Store is the slice of internal/store.Store the evaluator reads.
type Store interface {
	GetPotByID(potID string) (model.Pot, bool, error)
	FindPotByName(userID, name string) (model.Pot, bool, error)
	PrimaryAccountForUser(userID string) (model.Account, bool, error)
	ListTransactionsSince(userID string, since time.Time) ([]model.Transaction, error)
}

// BankClient is the slice of internal/bank.Client the evaluator reads.
type BankClient interface {
	GetBalance(ctx context.Context, userID, accountID string) (int64, error)
	GetPots(ctx context.Context, userID, accountID string) ([]model.Pot, error)
}

const accountBalanceCacheSize = 256

// Reader resolves live balances for accounts and pots, falling back to
// the last persisted value on transient failure (spec.md §4.4 "Live
// balance reads"). Account balances have no Local Store row of their own
// (spec.md §3's Account record carries no balance field), so the reader
// keeps a small in-process cache of the last live read per account as its
// fallback source.
type Reader struct {
	store       Store
	bank        BankClient
	log         logging.Logger
	acctBalance *lru.Cache[string, int64]
}

func NewReader(store Store, bank BankClient, log logging.Logger) *Reader {
	cache, _ := lru.New[string, int64](accountBalanceCacheSize)
	return &Reader{store: store, bank: bank, log: log.With("component", "trigger_reader"), acctBalance: cache}
}

// AccountBalance returns accountID's live balance, falling back to the
// last cached live read (stale=true) if the bank call fails.
func (r *Reader) AccountBalance(ctx context.Context, userID, accountID string) (amountMinor int64, stale bool, err error) {
	bal, callErr := r.bank.GetBalance(ctx, userID, accountID)
	if callErr == nil {
		r.acctBalance.Add(accountID, bal)
		return bal, false, nil
	}
	if cached, ok := r.acctBalance.Get(accountID); ok {
		r.log.Warn("trigger: live account balance read failed, using cached value", "account_id", accountID, "error", callErr)
		return cached, true, nil
	}
	return 0, false, callErr
}

// PrimaryAccountBalance resolves model.MainAccountSentinel to a live
// balance for userID.
func (r *Reader) PrimaryAccountBalance(ctx context.Context, userID string) (amountMinor int64, stale bool, err error) {
	acct, ok, err := r.store.PrimaryAccountForUser(userID)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, errNoPrimaryAccount(userID)
	}
	return r.AccountBalance(ctx, userID, acct.BankAccountID)
}

// PotBalance returns potID's live balance via the bank's pots listing for
// its owning account, falling back to the persisted Pot row (stale=true)
// when the listing call fails or does not include potID.
func (r *Reader) PotBalance(ctx context.Context, userID, potID string) (amountMinor int64, stale bool, err error) {
	local, ok, err := r.store.GetPotByID(potID)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, errUnknownPot(potID)
	}
	pots, callErr := r.bank.GetPots(ctx, userID, local.AccountID)
	if callErr == nil {
		for _, p := range pots {
			if p.BankPotID == potID {
				return p.BalanceMinor, false, nil
			}
		}
	}
	r.log.Warn("trigger: live pot balance read failed, using persisted value", "pot_id", potID, "error", callErr)
	return local.BalanceMinor, true, nil
}

// BalanceByName resolves a sweep source's potName (which may be
// model.MainAccountSentinel) to a live balance.
func (r *Reader) BalanceByName(ctx context.Context, userID, potName string) (amountMinor int64, stale bool, err error) {
	if potName == model.MainAccountSentinel {
		return r.PrimaryAccountBalance(ctx, userID)
	}
	pot, ok, err := r.store.FindPotByName(userID, potName)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, errUnknownPotName(potName)
	}
	return r.PotBalance(ctx, userID, pot.BankPotID)
}

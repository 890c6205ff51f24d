// Package model holds the persisted record shapes described in spec.md §3.
// All timestamps are UTC; coercion from whatever the Bank Client receives
// happens exactly once, in internal/bank's response decoder, per the
// Timestamp Timezone design note.
package model

import "time"

// User is one authenticated bank identity (spec.md §3 "User").
type User struct {
	BankUserID        string    `json:"bank_user_id"`
	AccessToken       string    `json:"access_token"`
	RefreshToken      string    `json:"refresh_token"`
	TokenType         string    `json:"token_type"`
	ExpiresInSeconds  int64     `json:"expires_in_seconds"`
	AcquiredAt        time.Time `json:"acquired_at"`
	ClientID          string    `json:"client_id"`
	ClientSecret      string    `json:"client_secret"`
	RedirectURI       string    `json:"redirect_uri"`
	NeedsReauth       bool      `json:"needs_reauth"`
}

// Expiry returns the instant the access token becomes invalid.
func (u User) Expiry() time.Time {
	return u.AcquiredAt.Add(time.Duration(u.ExpiresInSeconds) * time.Second)
}

// Account mirrors one bank account for one User (spec.md §3 "Account").
type Account struct {
	BankAccountID string    `json:"bank_account_id"`
	UserID        string    `json:"user_id"`
	Description   string    `json:"description"`
	Type          string    `json:"type"`
	CreatedAt     time.Time `json:"created_at"`
	Closed        bool      `json:"closed"`
	ActiveForSync bool      `json:"active_for_sync"`
	LastSyncAt    time.Time `json:"last_sync_at"`
}

// ShouldSync reports whether the account is eligible for §4.2 sync.
func (a Account) ShouldSync() bool { return a.ActiveForSync && !a.Closed }

// PotCategory is the closed tag set from UserPotCategory (spec.md §3).
type PotCategory string

const (
	CategoryBills      PotCategory = "bills"
	CategorySavings    PotCategory = "savings"
	CategoryHolding    PotCategory = "holding"
	CategorySpending   PotCategory = "spending"
	CategoryEmergency  PotCategory = "emergency"
	CategoryInvestment PotCategory = "investment"
	CategoryCustom     PotCategory = "custom"
)

// Pot is a named sub-balance within an Account (spec.md §3 "Pot").
type Pot struct {
	BankPotID    string    `json:"bank_pot_id"`
	AccountID    string    `json:"account_id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	Style        string    `json:"style"`
	BalanceMinor int64     `json:"balance_minor"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Deleted      bool      `json:"deleted"`
	GoalMinor    int64     `json:"goal_minor"`
	// PotCurrentID is the account-like identifier the bank API uses to
	// list transactions posted against this pot (distinct from BankPotID).
	PotCurrentID string `json:"pot_current_id"`
}

// HasGoal reports whether the pot carries a nonzero savings goal.
func (p Pot) HasGoal() bool { return p.GoalMinor > 0 }

// UserPotCategory is a many-to-many Pot<->category assignment.
type UserPotCategory struct {
	UserID   string      `json:"user_id"`
	PotID    string      `json:"pot_id"`
	Category PotCategory `json:"category"`
}

// Transaction is one posted bank transaction (spec.md §3 "Transaction").
// Amount is signed minor units; negative is an outflow.
type Transaction struct {
	BankTransactionID string            `json:"bank_transaction_id"`
	AccountID         string            `json:"account_id"`
	UserID            string            `json:"user_id"`
	CreatedAt         time.Time         `json:"created_at"`
	SettledAt         *time.Time        `json:"settled_at,omitempty"`
	AmountMinor       int64             `json:"amount_minor"`
	Currency          string            `json:"currency"`
	Description       string            `json:"description"`
	Category          string            `json:"category"`
	Merchant          string            `json:"merchant"`
	Notes             string            `json:"notes"`
	IsLoad            bool              `json:"is_load"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	// PotCurrentID is extracted from Metadata when attributable to a pot.
	PotCurrentID string `json:"pot_current_id,omitempty"`
}

// TransactionType classifies a BillsPotTransaction.
type TransactionType string

const (
	TxTypeSubscription TransactionType = "subscription"
	TxTypePotTransfer  TransactionType = "pot_transfer"
	TxTypeOther        TransactionType = "other"
)

// BillsPotTransaction is the denormalized bills-pot mirror (spec.md §3).
type BillsPotTransaction struct {
	BankTransactionID string          `json:"bank_transaction_id"`
	UserID            string          `json:"user_id"`
	PotID             string          `json:"pot_id"`
	CreatedAt         time.Time       `json:"created_at"`
	AmountMinor       int64           `json:"amount_minor"`
	Description       string          `json:"description"`
	TransactionType   TransactionType `json:"transaction_type"`
	IsPotWithdrawal   bool            `json:"is_pot_withdrawal"`
}

// RuleFamily is the closed set of automation rule kinds.
type RuleFamily string

const (
	FamilyPotSweep   RuleFamily = "pot_sweep"
	FamilyAutosorter RuleFamily = "autosorter"
	FamilyAutoTopup  RuleFamily = "auto_topup"
)

// ExecutionOutcome is one entry in a Rule's rolling history (spec.md §7).
type ExecutionOutcome struct {
	Timestamp   time.Time `json:"timestamp"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	AmountMoved int64     `json:"amount_moved,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

// ExecutionMetadata is the Rule's running execution bookkeeping.
type ExecutionMetadata struct {
	ExecutionCount int                `json:"execution_count"`
	LastResult     *ExecutionOutcome  `json:"last_result,omitempty"`
	History        []ExecutionOutcome `json:"history,omitempty"` // bounded to 5, newest last
}

// RecordOutcome appends o to History (capped at 5) and sets LastResult.
func (m *ExecutionMetadata) RecordOutcome(o ExecutionOutcome) {
	m.ExecutionCount++
	m.LastResult = &o
	m.History = append(m.History, o)
	const cap = 5
	if len(m.History) > cap {
		m.History = m.History[len(m.History)-cap:]
	}
}

// Rule is a persisted automation rule (spec.md §3 "Rule"). ConfigJSON holds
// the family-specific, versioned configuration document described in
// internal/rules; it is validated lazily by that package, not here.
type Rule struct {
	ID                string             `json:"id"`
	UserID            string             `json:"user_id"`
	Family            RuleFamily         `json:"family"`
	Name              string             `json:"name"`
	Enabled           bool               `json:"enabled"`
	ConfigJSON        []byte             `json:"config_json"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
	LastExecuted      *time.Time         `json:"last_executed,omitempty"`
	ExecutionMetadata ExecutionMetadata  `json:"execution_metadata"`
}

// TransferIntent records a pot-to-pot transfer's first leg before it is
// attempted, so a crash between legs can be detected on restart (Design
// Note "Pot-to-pot Atomicity").
type TransferIntent struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RuleID       string    `json:"rule_id"`
	FromPotID    string    `json:"from_pot_id"`
	ToPotID      string    `json:"to_pot_id"`
	AmountMinor  int64     `json:"amount_minor"`
	WithdrawDone bool      `json:"withdraw_done"`
	DepositDone  bool      `json:"deposit_done"`
	CreatedAt    time.Time `json:"created_at"`
}

// MainAccountSentinel is the potName value meaning "the primary account
// balance" rather than a named pot, used by sweep sources.
const MainAccountSentinel = "main account"

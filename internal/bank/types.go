package bank

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

// The wire* types below are the raw JSON shapes returned by the bank API.
// Every timestamp is coerced to UTC exactly once, here, in toModel* —
// Design Note "Timestamp Timezone".

type wireAccount struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Created     time.Time `json:"created"`
	Closed      bool      `json:"closed"`
}

func (w wireAccount) toModel(userID string) model.Account {
	return model.Account{
		BankAccountID: w.ID,
		UserID:        userID,
		Description:   w.Description,
		Type:          w.Type,
		CreatedAt:     w.Created.UTC(),
	}
}

type wirePot struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Style       string `json:"style"`
	Balance     int64  `json:"balance"`
	Currency    string `json:"currency"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
	Deleted     bool   `json:"deleted"`
	GoalAmount  int64  `json:"goal_amount"`
	CurrentID   string `json:"current_account_id"`
}

func (w wirePot) toModel(userID, accountID string) model.Pot {
	return model.Pot{
		BankPotID:    w.ID,
		AccountID:    accountID,
		UserID:       userID,
		Name:         w.Name,
		Style:        w.Style,
		BalanceMinor: w.Balance,
		Currency:     w.Currency,
		CreatedAt:    w.Created.UTC(),
		UpdatedAt:    w.Updated.UTC(),
		Deleted:      w.Deleted,
		GoalMinor:    w.GoalAmount,
		PotCurrentID: w.CurrentID,
	}
}

type wireTransaction struct {
	ID          string            `json:"id"`
	Created     time.Time         `json:"created"`
	Settled     string            `json:"settled"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Merchant    string            `json:"merchant"`
	Notes       string            `json:"notes"`
	IsLoad      bool              `json:"is_load"`
	Metadata    map[string]string `json:"metadata"`
}

func (w wireTransaction) toModel(userID, accountID string) model.Transaction {
	t := model.Transaction{
		BankTransactionID: w.ID,
		AccountID:         accountID,
		UserID:            userID,
		CreatedAt:         w.Created.UTC(),
		AmountMinor:       w.Amount,
		Currency:          w.Currency,
		Description:       w.Description,
		Category:          w.Category,
		Merchant:          w.Merchant,
		Notes:             w.Notes,
		IsLoad:            w.IsLoad,
		Metadata:          w.Metadata,
	}
	if w.Settled != "" {
		if settled, err := time.Parse(time.RFC3339, w.Settled); err == nil {
			settled = settled.UTC()
			t.SettledAt = &settled
		}
	}
	if pc, ok := w.Metadata["pot_current_id"]; ok {
		t.PotCurrentID = pc
	} else if pc, ok := w.Metadata["pot_id"]; ok {
		t.PotCurrentID = pc
	}
	return t
}

type accountsResponse struct {
	Accounts []wireAccount `json:"accounts"`
}

type potsResponse struct {
	Pots []wirePot `json:"pots"`
}

type transactionsResponse struct {
	Transactions []wireTransaction `json:"transactions"`
	// Paginate carries an opaque cursor the bank API uses for
	// autoPaginate=true requests; empty when exhausted.
	Paginate string `json:"pagination_cursor"`
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

type whoamiResponse struct {
	UserID string `json:"user_id"`
}

// isAuthError reports whether msg looks like an expired/invalid access
// token per spec.md §4.1's trigger condition for the refresh+retry path.
func isAuthError(statusCode int, msg string) bool {
	if statusCode == 401 {
		return true
	}
	lower := strings.ToLower(msg)
	for _, needle := range []string{"unauthorized", "token", "expired", "invalid"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

// isReauthError reports whether a refresh failure message indicates the
// refresh token itself is dead, per spec.md §4.1.
func isReauthError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, needle := range []string{"invalid_grant", "refresh_token", "expired"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

func mustMarshal(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

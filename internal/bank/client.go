// Package bank is a thin typed wrapper over the bank's REST API: accounts,
// pots, balances, transactions, pot deposits/withdrawals (spec.md §4.1).
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/r3vrt/monzo-auto-sub000/internal/coreerr"
	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

// Client is the Bank Client contract from spec.md §4.1.
type Client interface {
	GetAccounts(ctx context.Context, userID string) ([]model.Account, error)
	GetPots(ctx context.Context, userID, accountID string) ([]model.Pot, error)
	GetBalance(ctx context.Context, userID, accountID string) (int64, error)
	GetTransactions(ctx context.Context, userID, accountID string, since, before *time.Time, autoPaginate bool) ([]model.Transaction, error)
	DepositToPot(ctx context.Context, userID, potID, fromAccountID string, amountMinor int64, dedupeID string) error
	WithdrawFromPot(ctx context.Context, userID, potID, toAccountID string, amountMinor int64, dedupeID string) error
	AnnotateTransaction(ctx context.Context, userID, txnID, notes string) error
	Whoami(ctx context.Context, userID string) (string, error)
}

// defaultTimeout and paginatedTimeout are the bounded deadlines from
// spec.md §4.2 "Timeout and cancellation".
const (
	defaultTimeout   = 30 * time.Second
	paginatedTimeout = 120 * time.Second
)

// HTTPClient implements Client over the bank's REST API, with a single
// refresh+retry on auth failure and bounded backoff on transient errors
// (spec.md §4.1).
type HTTPClient struct {
	baseURL string
	http    *http.Client
	tokens  *TokenStore
	log     logging.Logger
}

// NewHTTPClient builds a Bank Client against baseURL, using tokens for
// credential lookup and refresh.
func NewHTTPClient(baseURL string, tokens *TokenStore, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{},
		tokens:  tokens,
		log:     log.With("component", "bank_client"),
	}
}

type apiResult struct {
	status int
	body   []byte
}

// requestOnce issues one logical request: a bare attempt, and — on an
// auth failure only — one refresh-and-retry. It never retries on a
// transient (ErrBankTransient) classification; that policy is layered on
// top by do(), and deliberately left off by doOnce() for money-moving
// calls (spec.md §4.1: "The client never retries a money-moving call
// automatically after non-auth errors — those propagate to executors who
// decide").
func (c *HTTPClient) requestOnce(ctx context.Context, userID, method, path string, body any, timeout time.Duration) (apiResult, error) {
	user, ok, err := c.tokens.Get(userID)
	if err != nil {
		return apiResult{}, backoff.Permanent(err)
	}
	if !ok {
		return apiResult{}, backoff.Permanent(fmt.Errorf("bank: unknown user %s", userID))
	}
	res, authErr, transientErr := c.attempt(ctx, user.AccessToken, method, path, body, timeout)
	if authErr {
		if _, err := c.tokens.Refresh(ctx, userID); err != nil {
			return apiResult{}, backoff.Permanent(err)
		}
		user, _, err = c.tokens.Get(userID)
		if err != nil {
			return apiResult{}, backoff.Permanent(err)
		}
		res, authErr, transientErr = c.attempt(ctx, user.AccessToken, method, path, body, timeout)
		if authErr {
			return apiResult{}, backoff.Permanent(fmt.Errorf("bank: %s after refresh: %w", path, coreerr.ErrAuthTransient))
		}
	}
	if transientErr {
		return apiResult{}, fmt.Errorf("bank: %s: %w", path, coreerr.ErrBankTransient)
	}
	return res, nil
}

// do issues one request with a bounded exponential backoff on transient
// (ErrBankTransient) failures, for every read-only and non-money-moving
// call.
func (c *HTTPClient) do(ctx context.Context, userID, method, path string, body any, timeout time.Duration) (apiResult, error) {
	op := func() (apiResult, error) {
		return c.requestOnce(ctx, userID, method, path, body, timeout)
	}
	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	if err != nil {
		return apiResult{}, err
	}
	return result, nil
}

// doOnce issues a money-moving request with no transient-error retry of
// its own: a bank 5xx/network failure on a deposit/withdraw surfaces
// immediately to the caller rather than being silently retried, since
// only the executor that issued the call can judge whether it's safe to
// try again (spec.md §4.1).
func (c *HTTPClient) doOnce(ctx context.Context, userID, method, path string, body any, timeout time.Duration) (apiResult, error) {
	return c.requestOnce(ctx, userID, method, path, body, timeout)
}

// attempt issues one bare HTTP round trip and classifies its outcome.
// It never retries by itself — do() owns the retry policy.
func (c *HTTPClient) attempt(ctx context.Context, accessToken, method, path string, body any, timeout time.Duration) (res apiResult, authErr, transientErr bool) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(mustMarshal(body))
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return apiResult{}, false, true
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apiResult{}, false, true
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResult{}, false, true
	}
	if isAuthError(resp.StatusCode, string(data)) {
		return apiResult{status: resp.StatusCode, body: data}, true, false
	}
	if resp.StatusCode >= 500 {
		return apiResult{status: resp.StatusCode, body: data}, false, true
	}
	if resp.StatusCode >= 400 {
		// 4xx other than auth is a caller/precondition error, not
		// transient: surface it directly rather than retrying.
		return apiResult{status: resp.StatusCode, body: data}, false, false
	}
	return apiResult{status: resp.StatusCode, body: data}, false, false
}

func (c *HTTPClient) GetAccounts(ctx context.Context, userID string) ([]model.Account, error) {
	res, err := c.do(ctx, userID, http.MethodGet, "/accounts", nil, defaultTimeout)
	if err != nil {
		return nil, err
	}
	var parsed accountsResponse
	if err := json.Unmarshal(res.body, &parsed); err != nil {
		return nil, fmt.Errorf("bank: decode accounts: %w", err)
	}
	out := make([]model.Account, 0, len(parsed.Accounts))
	for _, a := range parsed.Accounts {
		out = append(out, a.toModel(userID))
	}
	return out, nil
}

func (c *HTTPClient) GetPots(ctx context.Context, userID, accountID string) ([]model.Pot, error) {
	path := "/pots?" + url.Values{"current_account_id": {accountID}}.Encode()
	res, err := c.do(ctx, userID, http.MethodGet, path, nil, defaultTimeout)
	if err != nil {
		return nil, err
	}
	var parsed potsResponse
	if err := json.Unmarshal(res.body, &parsed); err != nil {
		return nil, fmt.Errorf("bank: decode pots: %w", err)
	}
	out := make([]model.Pot, 0, len(parsed.Pots))
	for _, p := range parsed.Pots {
		out = append(out, p.toModel(userID, accountID))
	}
	return out, nil
}

func (c *HTTPClient) GetBalance(ctx context.Context, userID, accountID string) (int64, error) {
	path := "/balance?" + url.Values{"account_id": {accountID}}.Encode()
	res, err := c.do(ctx, userID, http.MethodGet, path, nil, defaultTimeout)
	if err != nil {
		return 0, err
	}
	var parsed balanceResponse
	if err := json.Unmarshal(res.body, &parsed); err != nil {
		return 0, fmt.Errorf("bank: decode balance: %w", err)
	}
	return parsed.Balance, nil
}

// GetTransactions implements spec.md §4.2's since/before/autoPaginate
// contract, using the 120s paginated timeout when autoPaginate is set.
func (c *HTTPClient) GetTransactions(ctx context.Context, userID, accountID string, since, before *time.Time, autoPaginate bool) ([]model.Transaction, error) {
	timeout := defaultTimeout
	if autoPaginate {
		timeout = paginatedTimeout
	}
	var all []model.Transaction
	cursor := ""
	for {
		v := url.Values{"account_id": {accountID}}
		if since != nil {
			v.Set("since", since.UTC().Format(time.RFC3339))
		}
		if before != nil {
			v.Set("before", before.UTC().Format(time.RFC3339))
		}
		if cursor != "" {
			v.Set("pagination_cursor", cursor)
		}
		res, err := c.do(ctx, userID, http.MethodGet, "/transactions?"+v.Encode(), nil, timeout)
		if err != nil {
			return nil, err
		}
		var parsed transactionsResponse
		if err := json.Unmarshal(res.body, &parsed); err != nil {
			return nil, fmt.Errorf("bank: decode transactions: %w", err)
		}
		for _, w := range parsed.Transactions {
			all = append(all, w.toModel(userID, accountID))
		}
		if !autoPaginate || parsed.Paginate == "" {
			break
		}
		cursor = parsed.Paginate
	}
	return all, nil
}

type moveRequest struct {
	PotID         string `json:"pot_id"`
	AccountID     string `json:"account_id"`
	AmountMinor   int64  `json:"amount"`
	DedupeID      string `json:"dedupe_id"`
}

// DepositToPot moves money from an account into a pot. dedupeID must be
// non-empty and deterministic per logical transfer (spec.md §4.1) — the
// client does not invent or retry-vary it.
func (c *HTTPClient) DepositToPot(ctx context.Context, userID, potID, fromAccountID string, amountMinor int64, dedupeID string) error {
	if dedupeID == "" {
		return fmt.Errorf("bank: deposit to pot %s: %w", potID, coreerr.ErrConfigInvalid)
	}
	path := fmt.Sprintf("/pots/%s/deposit", url.PathEscape(potID))
	_, err := c.doOnce(ctx, userID, http.MethodPut, path, moveRequest{
		PotID: potID, AccountID: fromAccountID, AmountMinor: amountMinor, DedupeID: dedupeID,
	}, defaultTimeout)
	return err
}

// WithdrawFromPot moves money from a pot into an account.
func (c *HTTPClient) WithdrawFromPot(ctx context.Context, userID, potID, toAccountID string, amountMinor int64, dedupeID string) error {
	if dedupeID == "" {
		return fmt.Errorf("bank: withdraw from pot %s: %w", potID, coreerr.ErrConfigInvalid)
	}
	path := fmt.Sprintf("/pots/%s/withdraw", url.PathEscape(potID))
	_, err := c.doOnce(ctx, userID, http.MethodPut, path, moveRequest{
		PotID: potID, AccountID: toAccountID, AmountMinor: amountMinor, DedupeID: dedupeID,
	}, defaultTimeout)
	return err
}

func (c *HTTPClient) AnnotateTransaction(ctx context.Context, userID, txnID, notes string) error {
	path := fmt.Sprintf("/transactions/%s/annotate", url.PathEscape(txnID))
	_, err := c.do(ctx, userID, http.MethodPatch, path, map[string]string{"notes": notes}, defaultTimeout)
	return err
}

func (c *HTTPClient) Whoami(ctx context.Context, userID string) (string, error) {
	res, err := c.do(ctx, userID, http.MethodGet, "/whoami", nil, defaultTimeout)
	if err != nil {
		return "", err
	}
	var parsed whoamiResponse
	if err := json.Unmarshal(res.body, &parsed); err != nil {
		return "", fmt.Errorf("bank: decode whoami: %w", err)
	}
	return parsed.UserID, nil
}

// FormatDedupeID builds the recommended shape from spec.md §4.1 /§6:
// "<module>_<timestampISO>_<source>_<target>".
func FormatDedupeID(module string, ts time.Time, source, target string) string {
	if source == "" && target == "" {
		return module + "_" + ts.UTC().Format(time.RFC3339)
	}
	return module + "_" + ts.UTC().Format(time.RFC3339) + "_" + source + "_" + target
}

package bank

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

type fakeUserStore struct {
	user model.User
}

func (f *fakeUserStore) GetUser(userID string) (model.User, bool, error) { return f.user, true, nil }
func (f *fakeUserStore) PutUser(u model.User) error                      { f.user = u; return nil }
func (f *fakeUserStore) MarkNeedsReauth(userID string, needs bool) error { return nil }

func newTestClient(srv *httptest.Server) *HTTPClient {
	users := &fakeUserStore{user: model.User{BankUserID: "u1", AccessToken: "tok"}}
	tokens := NewTokenStore(users, Endpoint{}, logging.Noop())
	return NewHTTPClient(srv.URL, tokens, logging.Noop())
}

// TestDoRetriesTransientErrors covers a read-only call: a 500 that clears
// up within the retry budget still succeeds.
func TestDoRetriesTransientErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"balance": 500}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	bal, err := c.GetBalance(context.Background(), "u1", "acc1")
	require.NoError(t, err)
	require.Equal(t, int64(500), bal)
	require.Equal(t, int32(3), attempts.Load())
}

// TestDepositToPotDoesNotRetryTransientErrors is the review fix under
// test: a money-moving call must surface a transient bank failure to its
// caller on the first attempt rather than retrying it automatically
// (spec.md §4.1).
func TestDepositToPotDoesNotRetryTransientErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	err := c.DepositToPot(context.Background(), "u1", "pot1", "acc1", 100, "dedupe-1")
	require.Error(t, err)
	require.Equal(t, int32(1), attempts.Load())
}

func TestWithdrawFromPotDoesNotRetryTransientErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	err := c.WithdrawFromPot(context.Background(), "u1", "pot1", "acc1", 100, "dedupe-1")
	require.Error(t, err)
	require.Equal(t, int32(1), attempts.Load())
}

// Package coreerr holds the error taxonomy from spec.md §7: one sentinel
// per kind, shared across internal/bank, internal/executor, and
// internal/queue so callers use errors.Is instead of matching strings.
package coreerr

import "errors"

var (
	// ErrReauthRequired: refresh token expired or invalid_grant. The user
	// is marked needs-reauth and their accounts are skipped on future
	// sync ticks until corrected.
	ErrReauthRequired = errors.New("bank: reauthorization required")

	// ErrAuthTransient: 401 or token-like error recoverable by one
	// refresh. Handled inside the Bank Client; surfaces only if the
	// refresh+retry itself fails for a reason other than reauth.
	ErrAuthTransient = errors.New("bank: transient auth error")

	// ErrBankTransient: 5xx, network, or timeout. Executors abort the
	// current rule and record the failure; the scheduler retries on the
	// next tick.
	ErrBankTransient = errors.New("bank: transient error")

	// ErrInsufficientFunds: precondition failure for money movement,
	// recorded as a normal non-success outcome, not a system alert.
	ErrInsufficientFunds = errors.New("executor: insufficient funds")

	// ErrConfigInvalid: rule config validation failure. The rule is
	// skipped and an alert emitted; the rule is not disabled
	// automatically.
	ErrConfigInvalid = errors.New("rule: invalid configuration")

	// ErrDuplicateSuppressed: cooldown trip, a non-error informational
	// outcome.
	ErrDuplicateSuppressed = errors.New("executor: duplicate suppressed by cooldown")

	// ErrDependencyUnmet: dependency gating in the execution queue,
	// causing re-enqueue rather than failure.
	ErrDependencyUnmet = errors.New("queue: dependency not yet satisfied")

	// ErrFatal: database corruption or programming bugs. Propagates to
	// the scheduler, logged with full context; the current tick aborts
	// and the next tick resumes.
	ErrFatal = errors.New("core: fatal error")
)

// Package queue is the Execution Queue: a single process-wide,
// priority-ordered worker pool that serializes money-moving operations
// against the bank (spec.md §4.5).
package queue

import (
	"context"
	"time"

	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

// Priority is the queue's strict ordering key; lower values pop first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityBackground
)

// DefaultPriority maps a rule's trigger/family shape to its default queue
// priority (spec.md §4.5 "Priority mapping").
func DefaultPriority(family model.RuleFamily, isPaydayDetection, isBalanceThreshold, isManualOnly bool) Priority {
	switch {
	case isBalanceThreshold:
		return PriorityCritical
	case isPaydayDetection:
		return PriorityHigh
	case isManualOnly:
		return PriorityBackground
	case family == model.FamilyAutoTopup:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// Outcome is what an enqueued item's Execute closure returns.
type Outcome struct {
	Success     bool
	AmountMoved int64
	Reason      string
}

// Item is one unit of queued work (spec.md §4.5).
type Item struct {
	RuleID    string
	UserID    string
	AccountID string
	Family    model.RuleFamily
	Priority  Priority
	Reason    string
	Manual    bool
	DependsOn []string

	// Execute performs the rule's actual executor invocation.
	Execute func(ctx context.Context) (Outcome, error)

	enqueuedAt time.Time
	reenqueues int
}

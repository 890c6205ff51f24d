package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/metrics"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []model.ExecutionOutcome
}

func (f *fakeRecorder) RecordOutcome(userID, ruleID string, ts time.Time, outcome model.ExecutionOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

func newTestQueue(workers, capacity int, rec RuleRecorder) *Queue {
	return New(workers, capacity, rec, metrics.Noop(), logging.Noop())
}

func TestQueueOrdersByPriorityThenEnqueueTime(t *testing.T) {
	q := newTestQueue(1, 10, nil)

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})

	enqueue := func(ruleID string, p Priority) {
		q.Enqueue(Item{
			RuleID: ruleID, UserID: "u1", Priority: p,
			Execute: func(ctx context.Context) (Outcome, error) {
				mu.Lock()
				order = append(order, ruleID)
				n := len(order)
				mu.Unlock()
				if n == 3 {
					close(done)
				}
				return Outcome{Success: true}, nil
			},
		})
	}

	enqueue("low", PriorityLow)
	enqueue("critical", PriorityCritical)
	enqueue("normal", PriorityNormal)

	q.Start(context.Background())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for all items to run")
	}
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"critical", "normal", "low"}, order)
}

func TestQueueDropsWhenAtCapacity(t *testing.T) {
	q := newTestQueue(1, 1, nil)
	block := make(chan struct{})
	q.Enqueue(Item{RuleID: "blocker", Execute: func(ctx context.Context) (Outcome, error) {
		<-block
		return Outcome{Success: true}, nil
	}})
	q.Start(context.Background())
	time.Sleep(20 * time.Millisecond) // let the worker pop the blocker

	q.Enqueue(Item{RuleID: "a", Execute: func(ctx context.Context) (Outcome, error) { return Outcome{}, nil }})
	q.Enqueue(Item{RuleID: "b", Execute: func(ctx context.Context) (Outcome, error) { return Outcome{}, nil }})
	require.LessOrEqual(t, q.Depth(), 1)

	close(block)
	q.Stop()
}

func TestQueueDependencyGatingDemotesAndWaits(t *testing.T) {
	q := newTestQueue(2, 10, nil)
	var depRan, dependentRan atomic.Bool
	depDone := make(chan struct{})

	q.Enqueue(Item{
		RuleID: "dependent", Priority: PriorityNormal, DependsOn: []string{"dep"},
		Execute: func(ctx context.Context) (Outcome, error) {
			dependentRan.Store(true)
			return Outcome{Success: true}, nil
		},
	})
	time.Sleep(10 * time.Millisecond)
	q.Enqueue(Item{
		RuleID: "dep", Priority: PriorityCritical,
		Execute: func(ctx context.Context) (Outcome, error) {
			depRan.Store(true)
			close(depDone)
			return Outcome{Success: true}, nil
		},
	})

	q.Start(context.Background())
	select {
	case <-depDone:
	case <-time.After(2 * time.Second):
		t.Fatal("dependency never ran")
	}
	require.Eventually(t, func() bool { return dependentRan.Load() }, 2*time.Second, 10*time.Millisecond)
	require.True(t, depRan.Load())
	q.Stop()
}

func TestQueueFailsAfterMaxReenqueues(t *testing.T) {
	q := newTestQueue(1, 10, nil)
	q.Enqueue(Item{
		RuleID: "stuck", DependsOn: []string{"never-completes"},
		Execute: func(ctx context.Context) (Outcome, error) { return Outcome{Success: true}, nil },
	})
	q.Start(context.Background())
	require.Eventually(t, func() bool {
		return q.Stats().TotalProcessed >= 1
	}, 3*time.Second, 20*time.Millisecond)
	q.Stop()
}

func TestCancelRuleDropsQueuedNotYetPoppedItems(t *testing.T) {
	q := newTestQueue(0, 10, nil)
	var ran atomic.Bool
	q.Enqueue(Item{RuleID: "keep", Execute: func(ctx context.Context) (Outcome, error) {
		ran.Store(true)
		return Outcome{Success: true}, nil
	}})
	q.Enqueue(Item{RuleID: "cancel-me", Execute: func(ctx context.Context) (Outcome, error) {
		t.Fatal("cancelled item must not run")
		return Outcome{}, nil
	}})
	q.Enqueue(Item{RuleID: "cancel-me", Execute: func(ctx context.Context) (Outcome, error) {
		t.Fatal("cancelled item must not run")
		return Outcome{}, nil
	}})

	dropped := q.CancelRule("cancel-me")
	require.Equal(t, 2, dropped)
	require.Equal(t, 1, q.Depth())

	q.Start(context.Background())
	require.Eventually(t, func() bool { return ran.Load() }, 2*time.Second, 10*time.Millisecond)
	q.Stop()
}

func TestQueuePersistsOutcomesThroughRecorder(t *testing.T) {
	rec := &fakeRecorder{}
	q := newTestQueue(1, 10, rec)
	done := make(chan struct{})
	q.Enqueue(Item{
		RuleID: "r1", UserID: "u1",
		Execute: func(ctx context.Context) (Outcome, error) {
			defer close(done)
			return Outcome{Success: true, AmountMoved: 500}, nil
		},
	})
	q.Start(context.Background())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("item never ran")
	}
	q.Stop()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.outcomes, 1)
	require.True(t, rec.outcomes[0].Success)
	require.Equal(t, int64(500), rec.outcomes[0].AmountMoved)
}

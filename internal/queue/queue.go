package queue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/r3vrt/monzo-auto-sub000/internal/coreerr"
	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/metrics"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

const (
	// defaultCapacity is spec.md §4.5's default bounded queue size.
	defaultCapacity = 100
	// defaultWorkers is spec.md §4.5's default fixed worker pool size.
	defaultWorkers = 3
	// maxReenqueues resolves the "Queue Worker Resumption" open question:
	// an item whose dependencies never settle fails rather than
	// re-enqueuing forever.
	maxReenqueues = 10
	// interJobPause prevents burst-calling the bank API (spec.md §4.5).
	interJobPause = 100 * time.Millisecond
	// popTimeout bounds how long a worker waits for a new item before
	// re-checking the stop signal.
	popTimeout = time.Second
	// historySize bounds the queue's own per-rule run-history cache
	// (Design Note "Queue Worker Resumption" / SPEC_FULL.md §4.5 "added").
	historySize = 500
)

// RuleRecorder persists an execution outcome back onto its owning rule.
// Implemented by internal/rules.Manager.
type RuleRecorder interface {
	RecordOutcome(userID, ruleID string, ts time.Time, outcome model.ExecutionOutcome) error
}

type runRecord struct {
	At      time.Time
	Outcome Outcome
	Err     error
}

// Queue is the Execution Queue: a bounded, priority-ordered, dependency
// aware worker pool (spec.md §4.5).
type Queue struct {
	mu       sync.Mutex
	items    itemHeap
	capacity int
	workers  int

	running   bool
	stopCh    chan struct{}
	notifyCh  chan struct{}
	wg        sync.WaitGroup
	completed map[string]bool

	recorder RuleRecorder
	log      logging.Logger
	metrics  *metrics.Registry

	history      *lru.Cache[string, []runRecord]
	totalDone    int64
	perRuleCount map[string]int64
}

// New builds a Queue with the given worker pool size and capacity; zero
// values fall back to spec.md §4.5's defaults.
func New(workers, capacity int, recorder RuleRecorder, reg *metrics.Registry, log logging.Logger) *Queue {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	hist, _ := lru.New[string, []runRecord](historySize)
	return &Queue{
		capacity:     capacity,
		workers:      workers,
		completed:    make(map[string]bool),
		notifyCh:     make(chan struct{}, 1),
		recorder:     recorder,
		log:          log.With("component", "queue"),
		metrics:      reg,
		history:      hist,
		perRuleCount: make(map[string]int64),
	}
}

// Start launches the worker pool. Safe to call once; call Stop before a
// second Start.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.stopCh = make(chan struct{})
	q.mu.Unlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.workerLoop(ctx, i)
	}
}

// Stop sets the running flag false and waits for in-flight items to
// finish; no in-flight bank call is forcibly cancelled (spec.md §4.5
// "Cancellation").
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stopCh)
	q.mu.Unlock()
	q.wg.Wait()
}

// ResetCycle clears the "completed this cycle" set, called by
// internal/automation once per automation pass before enqueueing that
// pass's rules and their automation_trigger dependents.
func (q *Queue) ResetCycle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = make(map[string]bool)
}

// Enqueue adds item to the queue, dropping and logging it if the queue is
// at capacity (spec.md §4.5 "Capacity").
func (q *Queue) Enqueue(item Item) {
	item.enqueuedAt = time.Now().UTC()
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		q.log.Warn("queue: dropping item, at capacity", "rule_id", item.RuleID, "capacity", q.capacity)
		if q.metrics != nil {
			q.metrics.QueueDropped.Inc()
		}
		return
	}
	heap.Push(&q.items, &item)
	if q.metrics != nil {
		q.metrics.QueueDepth.Set(float64(len(q.items)))
	}
	select {
	case q.notifyCh <- struct{}{}:
	default:
	}
}

// Depth returns the current number of queued (not yet popped) items.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// CancelRule drops every not-yet-popped item for ruleID from the queue
// (spec.md line 60: "deletion removes ... all queued executions of that
// rule"). An item a worker has already popped is mid-run and, per Stop's
// "no in-flight bank call is forcibly cancelled" policy, runs to
// completion — CancelRule only prevents future pops, it does not reach
// into a worker goroutine. Returns the number of items dropped.
func (q *Queue) CancelRule(ruleID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	dropped := 0
	for _, item := range q.items {
		if item.RuleID == ruleID {
			dropped++
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
	heap.Init(&q.items)
	if q.metrics != nil {
		q.metrics.QueueDepth.Set(float64(len(q.items)))
	}
	return dropped
}

// pop waits up to timeout for an item, returning ok=false on timeout or
// once the queue has been stopped with nothing left to drain.
func (q *Queue) pop(timeout time.Duration) (*Item, bool) {
	if item, ok := q.tryPop(); ok {
		return item, true
	}
	select {
	case <-q.notifyCh:
	case <-time.After(timeout):
		return nil, false
	case <-q.stopCh:
	}
	return q.tryPop()
}

func (q *Queue) tryPop() (*Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	item := heap.Pop(&q.items).(*Item)
	if q.metrics != nil {
		q.metrics.QueueDepth.Set(float64(len(q.items)))
	}
	return item, true
}

func (q *Queue) workerLoop(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		default:
		}
		item, ok := q.pop(popTimeout)
		if !ok {
			continue
		}
		if !q.dependenciesSatisfied(item) {
			q.requeueDemoted(item)
			continue
		}
		q.runItem(ctx, item)
		time.Sleep(interJobPause)
	}
}

func (q *Queue) dependenciesSatisfied(item *Item) bool {
	if len(item.DependsOn) == 0 {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, dep := range item.DependsOn {
		if !q.completed[dep] {
			return false
		}
	}
	return true
}

// requeueDemoted implements the "re-enqueued with priority demoted to
// LOW" path, failing the item with ErrDependencyUnmet once it has been
// re-enqueued maxReenqueues times (Design Note "Queue Worker Resumption").
func (q *Queue) requeueDemoted(item *Item) {
	item.reenqueues++
	if item.reenqueues > maxReenqueues {
		err := fmt.Errorf("queue: rule %s: dependencies never settled: %w", item.RuleID, coreerr.ErrDependencyUnmet)
		q.recordFailure(item, err)
		return
	}
	item.Priority = PriorityLow
	q.mu.Lock()
	heap.Push(&q.items, item)
	q.mu.Unlock()
	select {
	case q.notifyCh <- struct{}{}:
	default:
	}
}

func (q *Queue) runItem(ctx context.Context, item *Item) {
	if q.metrics != nil {
		q.metrics.WorkersBusy.Inc()
		defer q.metrics.WorkersBusy.Dec()
	}
	outcome, err := item.Execute(ctx)
	now := time.Now().UTC()
	if err != nil {
		q.recordFailure(item, err)
		return
	}
	q.markCompleted(item, now, outcome, nil)
	if q.recorder != nil {
		recErr := q.recorder.RecordOutcome(item.UserID, item.RuleID, now, model.ExecutionOutcome{
			Timestamp: now, Success: outcome.Success, AmountMoved: outcome.AmountMoved, Reason: outcome.Reason,
		})
		if recErr != nil {
			q.log.Error("queue: failed to persist execution outcome", "rule_id", item.RuleID, "error", recErr)
		}
	}
	if q.metrics != nil {
		result := "fired"
		if !outcome.Success {
			result = "skipped"
		}
		q.metrics.RuleExecutions.WithLabelValues(string(item.Family), result).Inc()
	}
}

func (q *Queue) recordFailure(item *Item, err error) {
	now := time.Now().UTC()
	q.markCompleted(item, now, Outcome{Success: false, Reason: err.Error()}, err)
	if q.recorder != nil {
		recErr := q.recorder.RecordOutcome(item.UserID, item.RuleID, now, model.ExecutionOutcome{
			Timestamp: now, Success: false, Error: err.Error(),
		})
		if recErr != nil {
			q.log.Error("queue: failed to persist failed execution outcome", "rule_id", item.RuleID, "error", recErr)
		}
	}
	if q.metrics != nil {
		q.metrics.RuleExecutions.WithLabelValues(string(item.Family), "error").Inc()
	}
	q.log.Error("queue: item execution failed", "rule_id", item.RuleID, "error", err)
}

func (q *Queue) markCompleted(item *Item, at time.Time, outcome Outcome, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed[item.RuleID] = true
	q.totalDone++
	q.perRuleCount[item.RuleID]++

	records, _ := q.history.Get(item.RuleID)
	records = append(records, runRecord{At: at, Outcome: outcome, Err: err})
	const cap = 10
	if len(records) > cap {
		records = records[len(records)-cap:]
	}
	q.history.Add(item.RuleID, records)
}

// Stats is a snapshot of the queue's in-memory run statistics.
type Stats struct {
	TotalProcessed int64
	PerRule        map[string]int64
}

// Stats returns the queue's running totals (spec.md §4.5 "update
// statistics").
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	perRule := make(map[string]int64, len(q.perRuleCount))
	for k, v := range q.perRuleCount {
		perRule[k] = v
	}
	return Stats{TotalProcessed: q.totalDone, PerRule: perRule}
}

// Package scheduler drives the three ticker families from spec.md §4.8:
// a global sync ticker, a global automation ticker, and per-rule tickers
// for rule configurations whose trigger can't be caught reliably by the
// global automation cadence alone.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
	"github.com/r3vrt/monzo-auto-sub000/internal/rules"
)

// perRuleTickInterval is the granularity per-rule tickers poll at. Minute
// precision is enough to catch every trigger type that needs its own
// ticker (hourly/daily exact-minute matches, arbitrary minute intervals),
// without each rule needing a differently-tuned ticker.
const perRuleTickInterval = time.Minute

const (
	defaultSyncInterval       = 10 * time.Minute
	defaultAutomationInterval = 5 * time.Minute
)

// Store is the slice of internal/store.Store this package reads at
// startup to discover rules already needing a per-rule ticker.
type Store interface {
	ListAllEnabledRules() ([]model.Rule, error)
}

// SyncRunner is the slice of internal/sync.Engine this package drives.
type SyncRunner interface {
	Run(ctx context.Context) error
}

// AutomationRunner is the slice of internal/automation.Engine this
// package drives for the global tick and per-rule re-evaluation.
type AutomationRunner interface {
	RunCycle(ctx context.Context) error
	EvaluateRuleNow(ctx context.Context, userID, ruleID string) error
}

// Scheduler owns the sync ticker, automation ticker, and the dynamic set
// of per-rule tickers (spec.md §4.8). It implements rules.Manager's
// SchedulerHook so rule CRUD keeps per-rule tickers in sync automatically.
type Scheduler struct {
	store      Store
	syncEngine SyncRunner
	automation AutomationRunner
	log        logging.Logger

	syncInterval       time.Duration
	automationInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	perRule map[string]context.CancelFunc
}

var _ rules.SchedulerHook = (*Scheduler)(nil)

// New builds a Scheduler; a zero interval falls back to spec.md §4.8's
// default cadence.
func New(store Store, syncEngine SyncRunner, automation AutomationRunner, syncInterval, automationInterval time.Duration, log logging.Logger) *Scheduler {
	if syncInterval <= 0 {
		syncInterval = defaultSyncInterval
	}
	if automationInterval <= 0 {
		automationInterval = defaultAutomationInterval
	}
	return &Scheduler{
		store:              store,
		syncEngine:         syncEngine,
		automation:         automation,
		log:                log.With("component", "scheduler"),
		syncInterval:       syncInterval,
		automationInterval: automationInterval,
		perRule:            make(map[string]context.CancelFunc),
	}
}

// Start registers a ticker for every already-enabled rule that needs one,
// then launches the two global tickers. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	enabled, err := s.store.ListAllEnabledRules()
	if err != nil {
		return err
	}
	for _, r := range enabled {
		s.RuleCreated(r)
	}

	s.wg.Add(2)
	go s.tickLoop(runCtx, s.syncInterval, "sync", func(c context.Context) {
		if err := s.syncEngine.Run(c); err != nil {
			s.log.Error("scheduler: sync run failed", "error", err)
		}
	})
	go s.tickLoop(runCtx, s.automationInterval, "automation", func(c context.Context) {
		if err := s.automation.RunCycle(c); err != nil {
			s.log.Error("scheduler: automation cycle failed", "error", err)
		}
	})
	return nil
}

// Stop cancels every ticker goroutine (global and per-rule) and waits for
// them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	for id, cancel := range s.perRule {
		cancel()
		delete(s.perRule, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) tickLoop(ctx context.Context, interval time.Duration, name string, fn func(context.Context)) {
	defer s.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.log.Debug("scheduler: tick", "ticker", name)
			fn(ctx)
		}
	}
}

// RuleCreated registers a per-rule ticker for r if its trigger type needs
// one (spec.md §4.8: "When a rule is created, its scheduler is added").
func (s *Scheduler) RuleCreated(r model.Rule) {
	cfg, err := rules.Decode(r.ConfigJSON, s.log)
	if err != nil {
		s.log.Warn("scheduler: skipping per-rule ticker, config failed to decode", "rule_id", r.ID, "error", err)
		return
	}
	if !needsOwnTicker(cfg) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if _, exists := s.perRule[r.ID]; exists {
		return
	}
	ruleCtx, cancel := context.WithCancel(context.Background())
	s.perRule[r.ID] = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(perRuleTickInterval)
		defer t.Stop()
		for {
			select {
			case <-ruleCtx.Done():
				return
			case <-t.C:
				if err := s.automation.EvaluateRuleNow(ruleCtx, r.UserID, r.ID); err != nil {
					s.log.Error("scheduler: per-rule evaluation failed", "rule_id", r.ID, "error", err)
				}
			}
		}
	}()
}

// RuleUpdated replaces r's per-rule ticker registration, since its config
// (and therefore whether it needs one at all) may have changed.
func (s *Scheduler) RuleUpdated(r model.Rule) {
	s.RuleDeleted(r.ID)
	s.RuleCreated(r)
}

// RuleDeleted removes ruleID's per-rule ticker, if any.
func (s *Scheduler) RuleDeleted(ruleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.perRule[ruleID]; ok {
		cancel()
		delete(s.perRule, ruleID)
	}
}

// needsOwnTicker reports whether cfg's trigger can be missed by the
// global automation cadence: exact-minute matches (hourly/daily trigger
// times, arbitrary minute intervals) need their own finer-grained
// ticker, since a 5-minute global tick will rarely land on the exact
// minute the trigger checks for.
func needsOwnTicker(cfg rules.RuleConfig) bool {
	topup, ok := cfg.(*rules.AutoTopupConfig)
	if !ok {
		return false
	}
	switch topup.TriggerType {
	case rules.AutoTopupTriggerHourly, rules.AutoTopupTriggerDaily, rules.AutoTopupTriggerMinute:
		return true
	default:
		return false
	}
}

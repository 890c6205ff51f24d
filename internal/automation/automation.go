// Package automation is the Sync-Automation Integration layer (spec.md
// §4.7): on each automation tick (or immediately after a sync completes,
// via internal/sync's PostSyncHook seam), it evaluates every enabled
// rule's trigger and enqueues the ones that should fire.
package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/r3vrt/monzo-auto-sub000/internal/executor"
	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
	"github.com/r3vrt/monzo-auto-sub000/internal/queue"
	"github.com/r3vrt/monzo-auto-sub000/internal/rules"
	"github.com/r3vrt/monzo-auto-sub000/internal/trigger"
)

// Store is the slice of internal/store.Store this package reads.
type Store interface {
	ListUsers() ([]model.User, error)
	ListEnabledRulesForUser(userID string) ([]model.Rule, error)
	GetRule(userID, ruleID string) (model.Rule, bool, error)
	PrimaryAccountForUser(userID string) (model.Account, bool, error)
}

// Executor is the slice of internal/executor.Executor this package calls.
type Executor interface {
	RunSweep(ctx context.Context, rule model.Rule, cfg *rules.SweepConfig) (executor.Outcome, error)
	RunAutosorter(ctx context.Context, rule model.Rule, cfg *rules.AutosorterConfig) (executor.Outcome, error)
	RunAutoTopup(ctx context.Context, rule model.Rule, cfg *rules.AutoTopupConfig) (executor.Outcome, error)
}

// TriggerEvaluator is the slice of internal/trigger.Reader this package
// calls.
type TriggerEvaluator interface {
	Evaluate(ctx context.Context, rule model.Rule, cfg rules.RuleConfig, now time.Time) (trigger.Result, error)
}

// Queue is the slice of internal/queue.Queue this package drives.
type Queue interface {
	ResetCycle()
	Enqueue(item queue.Item)
}

// AlertSink is notified of evaluation failures a human should know about
// (a rule whose config no longer decodes, a trigger evaluation error).
// The default implementation only logs; a real deployment can wire this
// to email/push notifications without this package needing to know how.
type AlertSink interface {
	Alert(ctx context.Context, userID, ruleID, message string)
}

type logAlertSink struct{ log logging.Logger }

func (s logAlertSink) Alert(_ context.Context, userID, ruleID, message string) {
	s.log.Warn("automation: alert", "user_id", userID, "rule_id", ruleID, "message", message)
}

// Engine is the Sync-Automation Integration layer (spec.md §4.7).
type Engine struct {
	store    Store
	executor Executor
	trigger  TriggerEvaluator
	queue    Queue
	alerts   AlertSink
	log      logging.Logger
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithAlertSink overrides the default logging-only AlertSink.
func WithAlertSink(sink AlertSink) Option {
	return func(e *Engine) { e.alerts = sink }
}

func New(store Store, exec Executor, tr TriggerEvaluator, q Queue, log logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		executor: exec,
		trigger:  tr,
		queue:    q,
		log:      log.With("component", "automation"),
	}
	e.alerts = logAlertSink{log: e.log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnSyncComplete implements internal/sync.PostSyncHook: a completed sync
// for one user immediately re-evaluates that user's rules, rather than
// waiting for the next automation tick.
func (e *Engine) OnSyncComplete(ctx context.Context, userID string) error {
	return e.runForUser(ctx, userID, time.Now().UTC())
}

// RunCycle is the global automation tick (spec.md §4.8): evaluate every
// enabled rule for every user and enqueue the ones that should fire.
func (e *Engine) RunCycle(ctx context.Context) error {
	users, err := e.store.ListUsers()
	if err != nil {
		return fmt.Errorf("automation: list users: %w", err)
	}
	now := time.Now().UTC()
	e.queue.ResetCycle()
	for _, u := range users {
		if u.NeedsReauth {
			continue
		}
		if err := e.runForUser(ctx, u.BankUserID, now); err != nil {
			e.log.Error("automation: run cycle failed for user", "user_id", u.BankUserID, "error", err)
		}
	}
	return nil
}

// runForUser evaluates one user's enabled rules, enqueueing the primary
// batch first and any automation_trigger autosorters second with
// dependsOn populated from that batch (spec.md §4.7's two-pass
// ordering: an autosorter gated on "after this sweep ran" must not be
// considered for firing until its dependencies have settled).
func (e *Engine) runForUser(ctx context.Context, userID string, now time.Time) error {
	enabled, err := e.store.ListEnabledRulesForUser(userID)
	if err != nil {
		return fmt.Errorf("automation: list enabled rules: %w", err)
	}

	var primaryBatchIDs []string
	var deferred []model.Rule
	var deferredCfg []*rules.AutosorterConfig

	for _, r := range enabled {
		cfg, err := rules.Decode(r.ConfigJSON, e.log)
		if err != nil {
			e.alerts.Alert(ctx, userID, r.ID, "rule config failed to decode: "+err.Error())
			continue
		}

		if asCfg, ok := cfg.(*rules.AutosorterConfig); ok && asCfg.TriggerType == rules.AutosorterTriggerAutomationTrigger {
			deferred = append(deferred, r)
			deferredCfg = append(deferredCfg, asCfg)
			continue
		}

		result, err := e.trigger.Evaluate(ctx, r, cfg, now)
		if err != nil {
			e.alerts.Alert(ctx, userID, r.ID, "trigger evaluation failed: "+err.Error())
			continue
		}
		if !result.ShouldFire {
			continue
		}

		e.queue.Enqueue(e.buildItem(r, cfg, result.Reason, nil, false))
		primaryBatchIDs = append(primaryBatchIDs, r.ID)
	}

	for i, r := range deferred {
		e.queue.Enqueue(e.buildItem(r, deferredCfg[i], "automation_trigger: depends on this cycle's primary batch", primaryBatchIDs, false))
	}
	return nil
}

// EvaluateRuleNow evaluates a single rule's trigger immediately and
// enqueues it if it fires, independent of the global automation cycle
// (used by internal/scheduler's per-rule tickers for trigger types a
// coarser global tick could miss).
func (e *Engine) EvaluateRuleNow(ctx context.Context, userID, ruleID string) error {
	r, ok, err := e.store.GetRule(userID, ruleID)
	if err != nil {
		return fmt.Errorf("automation: get rule: %w", err)
	}
	if !ok || !r.Enabled {
		return nil
	}
	cfg, err := rules.Decode(r.ConfigJSON, e.log)
	if err != nil {
		e.alerts.Alert(ctx, userID, ruleID, "rule config failed to decode: "+err.Error())
		return nil
	}
	result, err := e.trigger.Evaluate(ctx, r, cfg, time.Now().UTC())
	if err != nil {
		e.alerts.Alert(ctx, userID, ruleID, "trigger evaluation failed: "+err.Error())
		return nil
	}
	if !result.ShouldFire {
		return nil
	}
	e.queue.Enqueue(e.buildItem(r, cfg, result.Reason, nil, false))
	return nil
}

// ExecuteManual enqueues ruleID for immediate execution, bypassing its
// trigger evaluator entirely (spec.md §4.7 "Manual execution").
func (e *Engine) ExecuteManual(ctx context.Context, userID, ruleID string) error {
	r, ok, err := e.store.GetRule(userID, ruleID)
	if err != nil {
		return fmt.Errorf("automation: get rule: %w", err)
	}
	if !ok {
		return fmt.Errorf("automation: rule %s not found", ruleID)
	}
	cfg, err := rules.Decode(r.ConfigJSON, e.log)
	if err != nil {
		return fmt.Errorf("automation: decode rule config: %w", err)
	}
	item := e.buildItem(r, cfg, "manual execution", nil, true)
	item.Priority = queue.PriorityNormal
	e.queue.Enqueue(item)
	return nil
}

func (e *Engine) buildItem(r model.Rule, cfg rules.RuleConfig, reason string, dependsOn []string, manual bool) queue.Item {
	isPayday, isBalanceThreshold, isManualOnly := classifyTrigger(cfg)
	accountID := e.resolveAccountID(r.UserID, cfg)
	return queue.Item{
		RuleID:    r.ID,
		UserID:    r.UserID,
		AccountID: accountID,
		Family:    r.Family,
		Priority:  queue.DefaultPriority(r.Family, isPayday, isBalanceThreshold, isManualOnly),
		Reason:    reason,
		Manual:    manual,
		DependsOn: dependsOn,
		Execute:   e.executeClosure(r, cfg),
	}
}

func (e *Engine) executeClosure(r model.Rule, cfg rules.RuleConfig) func(context.Context) (queue.Outcome, error) {
	return func(ctx context.Context) (queue.Outcome, error) {
		var out executor.Outcome
		var err error
		switch c := cfg.(type) {
		case *rules.SweepConfig:
			out, err = e.executor.RunSweep(ctx, r, c)
		case *rules.AutosorterConfig:
			out, err = e.executor.RunAutosorter(ctx, r, c)
		case *rules.AutoTopupConfig:
			out, err = e.executor.RunAutoTopup(ctx, r, c)
		default:
			return queue.Outcome{}, fmt.Errorf("automation: unsupported config type %T", cfg)
		}
		return queue.Outcome{Success: out.Success, AmountMoved: out.AmountMoved, Reason: out.Reason}, err
	}
}

// resolveAccountID stamps the queue item with the account the rule
// principally moves money through: auto_topup names its source account
// directly, while sweep and autosorter rules move between pots on the
// user's primary account.
func (e *Engine) resolveAccountID(userID string, cfg rules.RuleConfig) string {
	if topup, ok := cfg.(*rules.AutoTopupConfig); ok {
		return topup.SourceAccountID
	}
	acct, ok, err := e.store.PrimaryAccountForUser(userID)
	if err != nil || !ok {
		return ""
	}
	return acct.BankAccountID
}

// classifyTrigger maps a decoded rule config to the three boolean facets
// queue.DefaultPriority needs.
func classifyTrigger(cfg rules.RuleConfig) (isPaydayDetection, isBalanceThreshold, isManualOnly bool) {
	switch c := cfg.(type) {
	case *rules.SweepConfig:
		return c.TriggerType == rules.SweepTriggerPaydayDetection,
			c.TriggerType == rules.SweepTriggerBalanceThreshold,
			c.TriggerType == rules.SweepTriggerManual
	case *rules.AutosorterConfig:
		return c.TriggerType == rules.AutosorterTriggerPaydayDate,
			false,
			c.TriggerType == rules.AutosorterTriggerManualOnly
	case *rules.AutoTopupConfig:
		return false, c.TriggerType == rules.AutoTopupTriggerBalanceThreshold, false
	default:
		return false, false, false
	}
}

package trigger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/r3vrt/monzo-auto-sub000/internal/model"
	"github.com/r3vrt/monzo-auto-sub000/internal/rules"
)

// Result is the Trigger Evaluator's verdict: whether the rule should fire
// and a human-readable reason, surfaced in logs and execution history.
type Result struct {
	ShouldFire bool
	Reason     string
}

func notTriggered(reason string) Result { return Result{ShouldFire: false, Reason: reason} }
func triggered(reason string) Result    { return Result{ShouldFire: true, Reason: reason} }

// defaultTransactionLookback bounds a transaction_based trigger's lookback
// window when the rule config leaves LookbackMinutes unset.
const defaultTransactionLookback = 24 * time.Hour

// Evaluate is the Trigger Evaluator's single entry point (spec.md §4.4):
// given a rule, its decoded configuration, and the current instant,
// decides whether the rule should fire. Evaluation is pure with respect
// to (rule, cfg, now, reads) — no side effects beyond the live balance
// reads routed through r.
func (r *Reader) Evaluate(ctx context.Context, rule model.Rule, cfg rules.RuleConfig, now time.Time) (Result, error) {
	now = now.UTC()
	switch c := cfg.(type) {
	case *rules.SweepConfig:
		return r.evaluateSweep(ctx, rule, c, now)
	case *rules.AutosorterConfig:
		return r.evaluateAutosorter(ctx, rule, c, now)
	case *rules.AutoTopupConfig:
		return r.evaluateAutoTopup(ctx, rule, c, now)
	default:
		return Result{}, fmt.Errorf("trigger: unsupported config type %T", cfg)
	}
}

func (r *Reader) evaluateSweep(ctx context.Context, rule model.Rule, c *rules.SweepConfig, now time.Time) (Result, error) {
	switch c.TriggerType {
	case rules.SweepTriggerManual:
		return notTriggered("manual trigger only"), nil
	case rules.SweepTriggerMonthly:
		if now.Day() == c.TriggerDay {
			return triggered("monthly trigger day matched"), nil
		}
		return notTriggered("monthly trigger day not matched"), nil
	case rules.SweepTriggerWeekly:
		if isoWeekday(now) == c.TriggerDay {
			return triggered("weekly trigger day matched"), nil
		}
		return notTriggered("weekly trigger day not matched"), nil
	case rules.SweepTriggerBalanceThreshold:
		return r.evaluateSweepBalanceThreshold(ctx, rule, c)
	case rules.SweepTriggerPaydayDetection:
		return r.evaluatePaydayDetection(rule, c, now)
	default:
		return Result{}, fmt.Errorf("trigger: unknown sweep trigger type %q", c.TriggerType)
	}
}

// evaluateSweepBalanceThreshold reads the first configured source's live
// balance: sweep's balance_threshold has no single named "the source" in
// spec.md §4.3, so the highest-priority (first) source stands in for it
// (Open Question resolution, see DESIGN.md).
func (r *Reader) evaluateSweepBalanceThreshold(ctx context.Context, rule model.Rule, c *rules.SweepConfig) (Result, error) {
	if len(c.Sources) == 0 {
		return notTriggered("no sources configured"), nil
	}
	bal, stale, err := r.BalanceByName(ctx, rule.UserID, c.Sources[0].PotName)
	if err != nil {
		return Result{}, err
	}
	fired := bal >= c.TriggerThresholdMinor
	reason := fmt.Sprintf("source balance %d vs threshold %d", bal, c.TriggerThresholdMinor)
	if stale {
		reason += " (stale balance)"
	}
	return Result{ShouldFire: fired, Reason: reason}, nil
}

func (r *Reader) evaluatePaydayDetection(rule model.Rule, c *rules.SweepConfig, now time.Time) (Result, error) {
	if rule.LastExecuted != nil && now.Sub(rule.LastExecuted.UTC()) < 7*24*time.Hour {
		return notTriggered("executed within the last 7 days"), nil
	}
	since := now.Add(-3 * 24 * time.Hour)
	txns, err := r.store.ListTransactionsSince(rule.UserID, since)
	if err != nil {
		return Result{}, err
	}
	pattern := strings.ToLower(c.PaydayDescriptionPattern)
	for _, t := range txns {
		if t.AmountMinor <= c.PaydayThresholdMinor {
			continue
		}
		if pattern != "" && !strings.Contains(strings.ToLower(t.Description), pattern) {
			continue
		}
		return triggered(fmt.Sprintf("payday transaction detected: %s", t.BankTransactionID)), nil
	}
	return notTriggered("no payday transaction detected in the last 3 days"), nil
}

func (r *Reader) evaluateAutosorter(ctx context.Context, rule model.Rule, c *rules.AutosorterConfig, now time.Time) (Result, error) {
	switch c.TriggerType {
	case rules.AutosorterTriggerManualOnly, rules.AutosorterTriggerAutomationTrigger:
		return notTriggered("never fires automatically"), nil
	case rules.AutosorterTriggerPaydayDate:
		if now.Day() == c.PaydayDate {
			return triggered("payday date matched"), nil
		}
		return notTriggered("payday date not matched"), nil
	case rules.AutosorterTriggerTimeOfDay:
		if now.Day() != c.PaydayDate {
			return notTriggered("day of month not matched"), nil
		}
		configured := time.Date(now.Year(), now.Month(), now.Day(), c.TimeOfDayHour, c.TimeOfDayMin, 0, 0, time.UTC)
		if absDuration(now.Sub(configured)) <= 60*time.Minute {
			return triggered("within time-of-day window"), nil
		}
		return notTriggered("outside time-of-day window"), nil
	case rules.AutosorterTriggerDateRange:
		if inDateRangeWrap(now.Day(), c.DateRangeStart, c.DateRangeEnd) {
			return triggered("within configured date range"), nil
		}
		return notTriggered("outside configured date range"), nil
	case rules.AutosorterTriggerTransactionBased:
		return r.evaluateTransactionBased(rule.UserID, c.TransactionFilter, now)
	default:
		return Result{}, fmt.Errorf("trigger: unknown autosorter trigger type %q", c.TriggerType)
	}
}

func (r *Reader) evaluateAutoTopup(ctx context.Context, rule model.Rule, c *rules.AutoTopupConfig, now time.Time) (Result, error) {
	switch c.TriggerType {
	case rules.AutoTopupTriggerMonthly:
		if now.Day() != c.TriggerDay {
			return notTriggered("monthly trigger day not matched"), nil
		}
		return r.gateMinBalance(ctx, rule, c, "monthly trigger day matched")
	case rules.AutoTopupTriggerWeekly:
		if mondayZeroWeekday(now) != c.TriggerDay {
			return notTriggered("weekly trigger day not matched"), nil
		}
		return r.gateMinBalance(ctx, rule, c, "weekly trigger day matched")
	case rules.AutoTopupTriggerDaily:
		if now.Hour() != c.TriggerHour || now.Minute() != c.TriggerMin {
			return notTriggered("daily trigger time not matched"), nil
		}
		return r.gateMinBalance(ctx, rule, c, "daily trigger time matched")
	case rules.AutoTopupTriggerHourly:
		if now.Minute() != c.TriggerMin {
			return notTriggered("hourly trigger minute not matched"), nil
		}
		return r.gateMinBalance(ctx, rule, c, "hourly trigger minute matched")
	case rules.AutoTopupTriggerMinute:
		if rule.LastExecuted == nil || now.Sub(rule.LastExecuted.UTC()) >= time.Duration(c.IntervalMinutes)*time.Minute {
			return r.gateMinBalance(ctx, rule, c, "minute interval elapsed")
		}
		return notTriggered("minute interval not yet elapsed"), nil
	case rules.AutoTopupTriggerBalanceThreshold:
		return r.evaluateAutoTopupBalanceThreshold(ctx, rule, c)
	case rules.AutoTopupTriggerTransactionBased:
		return r.evaluateTransactionBased(rule.UserID, c.TransactionFilter, now)
	default:
		return Result{}, fmt.Errorf("trigger: unknown auto_topup trigger type %q", c.TriggerType)
	}
}

func (r *Reader) evaluateAutoTopupBalanceThreshold(ctx context.Context, rule model.Rule, c *rules.AutoTopupConfig) (Result, error) {
	if c.MinBalanceMinor == nil {
		return Result{}, fmt.Errorf("trigger: auto_topup balance_threshold requires min_balance_minor")
	}
	bal, stale, err := r.PotBalance(ctx, rule.UserID, c.TargetPotID)
	if err != nil {
		return Result{}, err
	}
	fired := bal <= *c.MinBalanceMinor
	reason := fmt.Sprintf("target balance %d vs min_balance_minor %d", bal, *c.MinBalanceMinor)
	if stale {
		reason += " (stale balance)"
	}
	return Result{ShouldFire: fired, Reason: reason}, nil
}

// gateMinBalance applies spec.md §4.4's conjunction: "For auto-topup time
// triggers whose minBalance is also set, both the time condition and the
// balance condition must hold."
func (r *Reader) gateMinBalance(ctx context.Context, rule model.Rule, c *rules.AutoTopupConfig, timeReason string) (Result, error) {
	if c.MinBalanceMinor == nil {
		return triggered(timeReason), nil
	}
	bal, stale, err := r.PotBalance(ctx, rule.UserID, c.TargetPotID)
	if err != nil {
		return Result{}, err
	}
	staleSuffix := ""
	if stale {
		staleSuffix = " (stale balance)"
	}
	if bal > *c.MinBalanceMinor {
		return notTriggered(timeReason + ", but target balance above min_balance_minor" + staleSuffix), nil
	}
	return triggered(timeReason + " and target balance below min_balance_minor" + staleSuffix), nil
}

func (r *Reader) evaluateTransactionBased(userID string, filter rules.TransactionFilter, now time.Time) (Result, error) {
	lookback := defaultTransactionLookback
	if filter.LookbackMinutes > 0 {
		lookback = time.Duration(filter.LookbackMinutes) * time.Minute
	}
	txns, err := r.store.ListTransactionsSince(userID, now.Add(-lookback))
	if err != nil {
		return Result{}, err
	}
	for _, t := range txns {
		if matchesFilter(t, filter) {
			return triggered(fmt.Sprintf("matching transaction %s", t.BankTransactionID)), nil
		}
	}
	return notTriggered("no matching transaction in lookback window"), nil
}

func matchesFilter(t model.Transaction, f rules.TransactionFilter) bool {
	if f.DescriptionContains != "" && !strings.Contains(strings.ToLower(t.Description), strings.ToLower(f.DescriptionContains)) {
		return false
	}
	if f.AmountMinMinor != nil && t.AmountMinor < *f.AmountMinMinor {
		return false
	}
	if f.AmountMaxMinor != nil && t.AmountMinor > *f.AmountMaxMinor {
		return false
	}
	if f.Category != "" && !strings.EqualFold(t.Category, f.Category) {
		return false
	}
	if f.Merchant != "" && !strings.EqualFold(t.Merchant, f.Merchant) {
		return false
	}
	return true
}

func inDateRangeWrap(day, start, end int) bool {
	if start <= end {
		return day >= start && day <= end
	}
	return day >= start || day <= end
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// isoWeekday converts now to the ISO-8601 weekday pot_sweeps.py's
// trigger_day compares against (Monday=1..Sunday=7), the scheme the
// original sweep rules were authored under (see DESIGN.md).
func isoWeekday(now time.Time) int {
	wd := int(now.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// mondayZeroWeekday converts now to the weekday auto_topup.py's trigger_day
// compares against (Python's date.weekday(): Monday=0..Sunday=6) — a
// different convention than the sweep family's isoweekday (see DESIGN.md).
func mondayZeroWeekday(now time.Time) int {
	return (int(now.Weekday()) + 6) % 7
}

// Package rules defines the three automation rule families from spec.md
// §4.3 as strongly typed, versioned configuration variants, plus CRUD
// against Local Store (Design Note "Dynamic Rule Config").
package rules

// CadenceTrigger is the trigger-kind enum shared across families for
// plain wall-clock cadences (Design Note "Trigger Type Enumeration").
type CadenceTrigger string

const (
	CadenceMonthly          CadenceTrigger = "monthly"
	CadenceWeekly           CadenceTrigger = "weekly"
	CadenceDaily            CadenceTrigger = "daily"
	CadenceHourly           CadenceTrigger = "hourly"
	CadenceMinute           CadenceTrigger = "minute"
	CadenceBalanceThreshold CadenceTrigger = "balance_threshold"
)

// SweepTriggerType is the closed trigger enum for pot_sweep rules.
type SweepTriggerType string

const (
	SweepTriggerManual           SweepTriggerType = "manual"
	SweepTriggerMonthly          SweepTriggerType = "monthly"
	SweepTriggerWeekly           SweepTriggerType = "weekly"
	SweepTriggerPaydayDetection  SweepTriggerType = "payday_detection"
	SweepTriggerBalanceThreshold SweepTriggerType = "balance_threshold"
)

// SweepStrategy is the per-source allocation strategy for pot_sweep rules.
type SweepStrategy string

const (
	StrategyFixedAmount      SweepStrategy = "fixed_amount"
	StrategyPercentage       SweepStrategy = "percentage"
	StrategyRemainingBalance SweepStrategy = "remaining_balance"
	StrategyAllAvailable     SweepStrategy = "all_available"
)

// AutosorterTriggerType is the closed trigger enum for autosorter rules.
type AutosorterTriggerType string

const (
	AutosorterTriggerPaydayDate        AutosorterTriggerType = "payday_date"
	AutosorterTriggerTimeOfDay         AutosorterTriggerType = "time_of_day"
	AutosorterTriggerTransactionBased  AutosorterTriggerType = "transaction_based"
	AutosorterTriggerDateRange         AutosorterTriggerType = "date_range"
	AutosorterTriggerManualOnly        AutosorterTriggerType = "manual_only"
	AutosorterTriggerAutomationTrigger AutosorterTriggerType = "automation_trigger"
)

// AllocationType is how an autosorter pot allocation computes its amount.
type AllocationType string

const (
	AllocationFixedAmount AllocationType = "fixed_amount"
	AllocationPercentage  AllocationType = "percentage"
	AllocationEqualShare  AllocationType = "equal_share"
)

// AutoTopupTriggerType is the closed trigger enum for auto_topup rules.
type AutoTopupTriggerType string

const (
	AutoTopupTriggerMonthly          AutoTopupTriggerType = "monthly"
	AutoTopupTriggerWeekly           AutoTopupTriggerType = "weekly"
	AutoTopupTriggerDaily            AutoTopupTriggerType = "daily"
	AutoTopupTriggerHourly           AutoTopupTriggerType = "hourly"
	AutoTopupTriggerMinute           AutoTopupTriggerType = "minute"
	AutoTopupTriggerBalanceThreshold AutoTopupTriggerType = "balance_threshold"
	AutoTopupTriggerTransactionBased AutoTopupTriggerType = "transaction_based"
)

// TransactionFilter is the shared transaction_based predicate (spec.md
// §4.4): fires iff at least one transaction in the lookback window
// matches every configured, non-empty field.
type TransactionFilter struct {
	DescriptionContains string `json:"description_contains,omitempty"`
	AmountMinMinor      *int64 `json:"amount_min_minor,omitempty"`
	AmountMaxMinor      *int64 `json:"amount_max_minor,omitempty"`
	Category            string `json:"category,omitempty"`
	Merchant            string `json:"merchant,omitempty"`
	// LookbackMinutes bounds how far back transactions are considered.
	LookbackMinutes int `json:"lookback_minutes,omitempty"`
}

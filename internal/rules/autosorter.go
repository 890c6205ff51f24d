package rules

import (
	"fmt"

	"github.com/r3vrt/monzo-auto-sub000/internal/coreerr"
	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

const autosorterConfigVersion = 1

// defaultMinHoldingBalanceMinor is spec.md §4.3's default of 10,000 pence.
const defaultMinHoldingBalanceMinor = 10_000

// AutosorterAllocation is one pot entry in a priority/goal/investment list
// (spec.md §4.3 "Autosorter").
type AutosorterAllocation struct {
	PotID              string         `json:"pot_id"`
	PotName            string         `json:"pot_name"`
	AllocationType     AllocationType `json:"allocation_type"`
	AmountMinor        *int64         `json:"amount_minor,omitempty"`
	Percentage         *float64       `json:"percentage,omitempty"`
	GoalAmountMinor    *int64         `json:"goal_amount_minor,omitempty"`
	MaxAllocationMinor *int64         `json:"max_allocation_minor,omitempty"`
	Priority           int            `json:"priority"`
	UseAllRemaining    bool           `json:"use_all_remaining,omitempty"`
}

// AutosorterConfig is the autosorter rule family's configuration.
type AutosorterConfig struct {
	HoldingPotID  string `json:"holding_pot_id"`
	BillsPotID    string `json:"bills_pot_id"`

	PriorityPots   []AutosorterAllocation `json:"priority_pots,omitempty"`
	GoalPots       []AutosorterAllocation `json:"goal_pots,omitempty"`
	InvestmentPots []AutosorterAllocation `json:"investment_pots,omitempty"`

	HoldingReserveAmountMinor *int64   `json:"holding_reserve_amount_minor,omitempty"`
	HoldingReservePercentage  *float64 `json:"holding_reserve_percentage,omitempty"`
	MinHoldingBalanceMinor    int64    `json:"min_holding_balance_minor,omitempty"`
	// IncludeGoalPots defaults to true (spec.md §4.3) when omitted; a
	// pointer distinguishes "omitted" from an explicit false.
	IncludeGoalPots *bool `json:"include_goal_pots,omitempty"`

	TriggerType AutosorterTriggerType `json:"trigger_type"`
	// PaydayDate is the day-of-month used both for time_of_day/payday_date
	// cadence and for the bills-replenishment cycle boundary (§4.6.2).
	PaydayDate     int `json:"payday_date,omitempty"`
	TimeOfDayHour  int `json:"time_of_day_hour,omitempty"`
	TimeOfDayMin   int `json:"time_of_day_minute,omitempty"`
	DateRangeStart int `json:"date_range_start,omitempty"`
	DateRangeEnd   int `json:"date_range_end,omitempty"`

	TransactionFilter TransactionFilter `json:"transaction_filter,omitempty"`
}

var autosorterKnownFields = map[string]bool{
	"holding_pot_id": true, "bills_pot_id": true, "priority_pots": true,
	"goal_pots": true, "investment_pots": true,
	"holding_reserve_amount_minor": true, "holding_reserve_percentage": true,
	"min_holding_balance_minor": true, "include_goal_pots": true,
	"trigger_type": true, "payday_date": true, "time_of_day_hour": true,
	"time_of_day_minute": true, "date_range_start": true, "date_range_end": true,
	"transaction_filter": true,
}

func (c *AutosorterConfig) Family() model.RuleFamily { return model.FamilyAutosorter }
func (c *AutosorterConfig) Version() int             { return autosorterConfigVersion }

// IncludeGoalPotsOrDefault resolves the default-true semantics for the
// goal-pots allocation step (spec.md §4.6.2 step 3).
func (c *AutosorterConfig) IncludeGoalPotsOrDefault() bool {
	return c.IncludeGoalPots == nil || *c.IncludeGoalPots
}

func (c *AutosorterConfig) Normalize(log logging.Logger) error {
	if c.HoldingPotID == "" {
		return fmt.Errorf("rules: autosorter config missing holding_pot_id: %w", coreerr.ErrConfigInvalid)
	}
	if c.MinHoldingBalanceMinor == 0 {
		c.MinHoldingBalanceMinor = defaultMinHoldingBalanceMinor
	}
	normalizePercentage(c.HoldingReservePercentage, log, "autosorter.holding_reserve_percentage")
	for name, group := range map[string][]AutosorterAllocation{
		"priority_pots": c.PriorityPots, "goal_pots": c.GoalPots, "investment_pots": c.InvestmentPots,
	} {
		for i := range group {
			a := &group[i]
			if a.PotID == "" {
				return fmt.Errorf("rules: autosorter %s[%d] missing pot_id: %w", name, i, coreerr.ErrConfigInvalid)
			}
			normalizePercentage(a.Percentage, log, fmt.Sprintf("autosorter.%s[%d]", name, i))
		}
	}
	switch c.TriggerType {
	case AutosorterTriggerPaydayDate, AutosorterTriggerTimeOfDay, AutosorterTriggerTransactionBased,
		AutosorterTriggerDateRange, AutosorterTriggerManualOnly, AutosorterTriggerAutomationTrigger:
	default:
		return fmt.Errorf("rules: autosorter config invalid trigger_type %q: %w", c.TriggerType, coreerr.ErrConfigInvalid)
	}
	return nil
}

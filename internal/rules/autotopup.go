package rules

import (
	"fmt"

	"github.com/r3vrt/monzo-auto-sub000/internal/coreerr"
	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

const autoTopupConfigVersion = 1

// AutoTopupConfig is the auto_topup rule family's configuration (spec.md
// §4.3 "Auto-topup").
type AutoTopupConfig struct {
	SourceAccountID  string `json:"source_account_id"`
	TargetPotID      string `json:"target_pot_id"`
	AmountMinor      int64  `json:"amount_minor"`
	TargetBalanceMinor *int64 `json:"target_balance_minor,omitempty"`

	TriggerType AutoTopupTriggerType `json:"trigger_type"`
	TriggerDay  int                  `json:"trigger_day,omitempty"`
	TriggerHour int                  `json:"trigger_hour,omitempty"`
	TriggerMin  int                  `json:"trigger_minute,omitempty"`
	// IntervalMinutes is the cadence for trigger_type=minute.
	IntervalMinutes int `json:"interval_minutes,omitempty"`

	// MinBalanceMinor gates balance_threshold firing and, when set on a
	// time-triggered rule, additionally gates on the target's current
	// balance (spec.md §4.4).
	MinBalanceMinor *int64 `json:"min_balance_minor,omitempty"`

	TransactionFilter TransactionFilter `json:"transaction_filter,omitempty"`
}

var autoTopupKnownFields = map[string]bool{
	"source_account_id": true, "target_pot_id": true, "amount_minor": true,
	"target_balance_minor": true, "trigger_type": true, "trigger_day": true,
	"trigger_hour": true, "trigger_minute": true, "interval_minutes": true,
	"min_balance_minor": true, "transaction_filter": true,
}

func (c *AutoTopupConfig) Family() model.RuleFamily { return model.FamilyAutoTopup }
func (c *AutoTopupConfig) Version() int             { return autoTopupConfigVersion }

func (c *AutoTopupConfig) Normalize(_ logging.Logger) error {
	if c.TargetPotID == "" {
		return fmt.Errorf("rules: auto_topup config missing target_pot_id: %w", coreerr.ErrConfigInvalid)
	}
	if c.AmountMinor <= 0 {
		return fmt.Errorf("rules: auto_topup config amount_minor must be positive: %w", coreerr.ErrConfigInvalid)
	}
	switch c.TriggerType {
	case AutoTopupTriggerMonthly, AutoTopupTriggerWeekly, AutoTopupTriggerDaily, AutoTopupTriggerHourly,
		AutoTopupTriggerMinute, AutoTopupTriggerBalanceThreshold, AutoTopupTriggerTransactionBased:
	default:
		return fmt.Errorf("rules: auto_topup config invalid trigger_type %q: %w", c.TriggerType, coreerr.ErrConfigInvalid)
	}
	if c.TriggerType == AutoTopupTriggerMinute && c.IntervalMinutes <= 0 {
		return fmt.Errorf("rules: auto_topup minute trigger requires interval_minutes > 0: %w", coreerr.ErrConfigInvalid)
	}
	return nil
}

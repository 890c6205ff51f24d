package rules

import (
	"fmt"

	"github.com/r3vrt/monzo-auto-sub000/internal/coreerr"
	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

const sweepConfigVersion = 1

// defaultPaydayThresholdMinor is spec.md §4.3's default of 50,000 pence.
const defaultPaydayThresholdMinor = 50_000

// SweepSource is one ordered source in a pot_sweep rule (spec.md §4.3).
// PotName may be model.MainAccountSentinel to mean the primary account.
type SweepSource struct {
	PotName         string        `json:"pot_name"`
	Strategy        SweepStrategy `json:"strategy"`
	AmountMinor     *int64        `json:"amount_minor,omitempty"`
	Percentage      *float64      `json:"percentage,omitempty"`
	MinBalanceMinor *int64        `json:"min_balance_minor,omitempty"`
	Priority        int           `json:"priority"`
}

// SweepConfig is the pot_sweep rule family's configuration (spec.md
// §4.3 "Sweep").
type SweepConfig struct {
	Sources                  []SweepSource    `json:"sources"`
	TargetPotName            string           `json:"target_pot_name"`
	TriggerType              SweepTriggerType `json:"trigger_type"`
	TriggerDay               int              `json:"trigger_day,omitempty"`
	TriggerThresholdMinor    int64            `json:"trigger_threshold_minor,omitempty"`
	PaydayThresholdMinor     int64            `json:"payday_threshold_minor,omitempty"`
	PaydayDescriptionPattern string           `json:"payday_description_pattern,omitempty"`
}

var sweepKnownFields = map[string]bool{
	"sources": true, "target_pot_name": true, "trigger_type": true,
	"trigger_day": true, "trigger_threshold_minor": true,
	"payday_threshold_minor": true, "payday_description_pattern": true,
}

func (c *SweepConfig) Family() model.RuleFamily { return model.FamilyPotSweep }
func (c *SweepConfig) Version() int             { return sweepConfigVersion }

// Normalize fills in defaults and coerces legacy percentage values
// (spec.md §8), and rejects structurally invalid configuration.
func (c *SweepConfig) Normalize(log logging.Logger) error {
	if c.PaydayThresholdMinor == 0 {
		c.PaydayThresholdMinor = defaultPaydayThresholdMinor
	}
	if c.TargetPotName == "" {
		return fmt.Errorf("rules: sweep config missing target_pot_name: %w", coreerr.ErrConfigInvalid)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("rules: sweep config has no sources: %w", coreerr.ErrConfigInvalid)
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		if s.PotName == "" {
			return fmt.Errorf("rules: sweep source %d missing pot_name: %w", i, coreerr.ErrConfigInvalid)
		}
		switch s.Strategy {
		case StrategyFixedAmount, StrategyPercentage, StrategyRemainingBalance, StrategyAllAvailable:
		default:
			return fmt.Errorf("rules: sweep source %d invalid strategy %q: %w", i, s.Strategy, coreerr.ErrConfigInvalid)
		}
		normalizePercentage(s.Percentage, log, fmt.Sprintf("sweep.sources[%d]", i))
	}
	switch c.TriggerType {
	case SweepTriggerManual, SweepTriggerMonthly, SweepTriggerWeekly, SweepTriggerPaydayDetection, SweepTriggerBalanceThreshold:
	default:
		return fmt.Errorf("rules: sweep config invalid trigger_type %q: %w", c.TriggerType, coreerr.ErrConfigInvalid)
	}
	return nil
}

package rules

import (
	"encoding/json"
	"fmt"

	"github.com/r3vrt/monzo-auto-sub000/internal/coreerr"
	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

// RuleConfig is the tagged-variant interface every family's configuration
// implements (Design Note "Dynamic Rule Config").
type RuleConfig interface {
	Family() model.RuleFamily
	Version() int
	// Normalize applies in-place legacy-value coercions (e.g. a
	// percentage stored as 75 instead of 0.75) and returns an error
	// wrapping coreerr.ErrConfigInvalid if the configuration cannot be
	// made valid.
	Normalize(log logging.Logger) error
}

// envelope is the persisted JSON document shape: {"version":N,"family":
// "...","data":{...}}. Unknown fields directly under "data" are logged, not
// rejected, to permit forward compatibility; unknown fields elsewhere
// (envelope level, or nested inside a data entry) are ignored without a log.
type envelope struct {
	Version int             `json:"version"`
	Family  model.RuleFamily `json:"family"`
	Data    json.RawMessage `json:"data"`
}

// Encode serializes cfg into the persisted envelope form stored on
// model.Rule.ConfigJSON.
func Encode(cfg RuleConfig) ([]byte, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("rules: encode: %w", err)
	}
	env := envelope{Version: cfg.Version(), Family: cfg.Family(), Data: data}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("rules: encode envelope: %w", err)
	}
	return out, nil
}

// Decode parses and normalizes a persisted rule configuration. It always
// validates before returning, per spec.md §8's "validate on read"
// requirement.
func Decode(raw []byte, log logging.Logger) (RuleConfig, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("rules: decode envelope: %w: %w", coreerr.ErrConfigInvalid, err)
	}
	logUnknownFields(env.Data, knownFieldsFor(env.Family), log.With("family", env.Family))

	var cfg RuleConfig
	switch env.Family {
	case model.FamilyPotSweep:
		var c SweepConfig
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, fmt.Errorf("rules: decode sweep config: %w: %w", coreerr.ErrConfigInvalid, err)
		}
		cfg = &c
	case model.FamilyAutosorter:
		var c AutosorterConfig
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, fmt.Errorf("rules: decode autosorter config: %w: %w", coreerr.ErrConfigInvalid, err)
		}
		cfg = &c
	case model.FamilyAutoTopup:
		var c AutoTopupConfig
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return nil, fmt.Errorf("rules: decode auto_topup config: %w: %w", coreerr.ErrConfigInvalid, err)
		}
		cfg = &c
	default:
		return nil, fmt.Errorf("rules: unknown family %q: %w", env.Family, coreerr.ErrConfigInvalid)
	}
	if err := cfg.Normalize(log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func logUnknownFields(data json.RawMessage, known map[string]bool, log logging.Logger) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return
	}
	for key := range m {
		if !known[key] {
			log.Warn("rules: unknown config field, ignoring for forward compatibility", "field", key)
		}
	}
}

func knownFieldsFor(family model.RuleFamily) map[string]bool {
	switch family {
	case model.FamilyPotSweep:
		return sweepKnownFields
	case model.FamilyAutosorter:
		return autosorterKnownFields
	case model.FamilyAutoTopup:
		return autoTopupKnownFields
	default:
		return nil
	}
}

// normalizePercentage applies the legacy-percentage normalization from
// spec.md §8: values above 1.0 are divided by 100 (1.0 itself is kept as
// 100%), logging a warning when it fires.
func normalizePercentage(p *float64, log logging.Logger, context string) {
	if p == nil {
		return
	}
	if *p > 1.0 {
		log.Warn("rules: percentage normalized from legacy >1.0 form", "context", context, "original", *p)
		*p = *p / 100
	}
}

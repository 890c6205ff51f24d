package rules

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
)

// Store is the slice of internal/store.Store the rule model needs.
type Store interface {
	PutRule(model.Rule) error
	GetRule(userID, ruleID string) (model.Rule, bool, error)
	DeleteRule(userID, ruleID string) error
	ListRulesForUser(userID string) ([]model.Rule, error)
	ListEnabledRulesForUser(userID string) ([]model.Rule, error)
}

// SchedulerHook is notified of rule lifecycle events so per-rule tickers
// stay in sync (spec.md §4.8: "When a rule is created, its scheduler is
// added; when toggled off, removed; when edited, replaced").
type SchedulerHook interface {
	RuleCreated(model.Rule)
	RuleUpdated(model.Rule)
	RuleDeleted(ruleID string)
}

// QueueHook lets Delete drop a rule's not-yet-run queued executions
// (spec.md line 60: "deletion removes ... all queued executions of that
// rule"). Implemented by *internal/queue.Queue.
type QueueHook interface {
	CancelRule(ruleID string) int
}

// Manager is the Rule Model: typed rule definitions plus CRUD against
// Local Store (spec.md §4.3).
type Manager struct {
	store     Store
	scheduler SchedulerHook
	queue     QueueHook
	log       logging.Logger
}

// NoopScheduler is used where no scheduler is wired yet (e.g. unit tests).
type NoopScheduler struct{}

func (NoopScheduler) RuleCreated(model.Rule) {}
func (NoopScheduler) RuleUpdated(model.Rule) {}
func (NoopScheduler) RuleDeleted(string)     {}

// NoopQueue is used where no queue is wired yet (e.g. unit tests).
type NoopQueue struct{}

func (NoopQueue) CancelRule(string) int { return 0 }

func NewManager(store Store, scheduler SchedulerHook, log logging.Logger) *Manager {
	if scheduler == nil {
		scheduler = NoopScheduler{}
	}
	return &Manager{store: store, scheduler: scheduler, queue: NoopQueue{}, log: log.With("component", "rules")}
}

// SetQueueHook wires the Execution Queue into Delete after construction,
// avoiding a construction-order cycle (the queue is built with the
// manager as its RuleRecorder, so it can't yet exist when NewManager
// runs).
func (m *Manager) SetQueueHook(q QueueHook) {
	if q == nil {
		q = NoopQueue{}
	}
	m.queue = q
}

// Create persists a new rule, validating and normalizing its config.
func (m *Manager) Create(userID, name string, cfg RuleConfig, enabled bool) (model.Rule, error) {
	if err := cfg.Normalize(m.log); err != nil {
		return model.Rule{}, err
	}
	configJSON, err := Encode(cfg)
	if err != nil {
		return model.Rule{}, err
	}
	now := time.Now().UTC()
	r := model.Rule{
		ID:         uuid.NewString(),
		UserID:     userID,
		Family:     cfg.Family(),
		Name:       name,
		Enabled:    enabled,
		ConfigJSON: configJSON,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.store.PutRule(r); err != nil {
		return model.Rule{}, err
	}
	if r.Enabled {
		m.scheduler.RuleCreated(r)
	}
	return r, nil
}

// Get fetches and decodes a rule's configuration, returning the rule and
// its typed config (spec.md §8's round-trip property).
func (m *Manager) Get(userID, ruleID string) (model.Rule, RuleConfig, error) {
	r, ok, err := m.store.GetRule(userID, ruleID)
	if err != nil {
		return model.Rule{}, nil, err
	}
	if !ok {
		return model.Rule{}, nil, fmt.Errorf("rules: rule %s not found", ruleID)
	}
	cfg, err := Decode(r.ConfigJSON, m.log)
	if err != nil {
		return r, nil, err
	}
	return r, cfg, nil
}

// Update replaces a rule's name/config, bumping UpdatedAt, and replaces its
// scheduler registration.
func (m *Manager) Update(userID, ruleID, name string, cfg RuleConfig) (model.Rule, error) {
	existing, ok, err := m.store.GetRule(userID, ruleID)
	if err != nil {
		return model.Rule{}, err
	}
	if !ok {
		return model.Rule{}, fmt.Errorf("rules: rule %s not found", ruleID)
	}
	if err := cfg.Normalize(m.log); err != nil {
		return model.Rule{}, err
	}
	configJSON, err := Encode(cfg)
	if err != nil {
		return model.Rule{}, err
	}
	existing.Name = name
	existing.Family = cfg.Family()
	existing.ConfigJSON = configJSON
	existing.UpdatedAt = time.Now().UTC()
	if err := m.store.PutRule(existing); err != nil {
		return model.Rule{}, err
	}
	m.scheduler.RuleUpdated(existing)
	return existing, nil
}

// SetEnabled toggles a rule on/off, adding or removing its scheduler
// registration accordingly.
func (m *Manager) SetEnabled(userID, ruleID string, enabled bool) (model.Rule, error) {
	existing, ok, err := m.store.GetRule(userID, ruleID)
	if err != nil {
		return model.Rule{}, err
	}
	if !ok {
		return model.Rule{}, fmt.Errorf("rules: rule %s not found", ruleID)
	}
	existing.Enabled = enabled
	existing.UpdatedAt = time.Now().UTC()
	if err := m.store.PutRule(existing); err != nil {
		return model.Rule{}, err
	}
	if enabled {
		m.scheduler.RuleCreated(existing)
	} else {
		m.scheduler.RuleDeleted(existing.ID)
	}
	return existing, nil
}

// Delete hard-deletes a rule, removing its scheduler registration and
// dropping its not-yet-run queued executions (spec.md §3: "deletion
// removes the scheduling side-effect ... and all queued executions of
// that rule"). An execution already popped by a worker is mid-run and
// still completes — see Queue.CancelRule.
func (m *Manager) Delete(userID, ruleID string) error {
	if err := m.store.DeleteRule(userID, ruleID); err != nil {
		return err
	}
	m.scheduler.RuleDeleted(ruleID)
	m.queue.CancelRule(ruleID)
	return nil
}

// List returns every rule owned by userID.
func (m *Manager) List(userID string) ([]model.Rule, error) {
	return m.store.ListRulesForUser(userID)
}

// RecordOutcome appends an execution outcome to the rule's rolling history
// and stamps LastExecuted, persisting the change (spec.md §7).
func (m *Manager) RecordOutcome(userID, ruleID string, ts time.Time, outcome model.ExecutionOutcome) error {
	r, ok, err := m.store.GetRule(userID, ruleID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rules: rule %s not found", ruleID)
	}
	r.LastExecuted = &ts
	r.ExecutionMetadata.RecordOutcome(outcome)
	r.UpdatedAt = time.Now().UTC()
	return m.store.PutRule(r)
}

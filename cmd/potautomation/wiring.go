package main

import (
	"github.com/urfave/cli/v2"

	"github.com/r3vrt/monzo-auto-sub000/internal/automation"
	"github.com/r3vrt/monzo-auto-sub000/internal/bank"
	"github.com/r3vrt/monzo-auto-sub000/internal/config"
	"github.com/r3vrt/monzo-auto-sub000/internal/executor"
	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
	"github.com/r3vrt/monzo-auto-sub000/internal/metrics"
	"github.com/r3vrt/monzo-auto-sub000/internal/model"
	"github.com/r3vrt/monzo-auto-sub000/internal/queue"
	"github.com/r3vrt/monzo-auto-sub000/internal/rules"
	"github.com/r3vrt/monzo-auto-sub000/internal/scheduler"
	"github.com/r3vrt/monzo-auto-sub000/internal/store"
	"github.com/r3vrt/monzo-auto-sub000/internal/sync"
	"github.com/r3vrt/monzo-auto-sub000/internal/trigger"
)

// wiring is the fully assembled dependency graph for one process
// invocation, built leaves-first: storage, then the bank client, then the
// domain layers that depend on both, then the scheduler that ties
// everything together.
type wiring struct {
	cfg        config.Config
	log        logging.Logger
	localStore *store.Store
	ruleMgr    *rules.Manager
	queue      *queue.Queue
	syncEng    *sync.Engine
	autoEng    *automation.Engine
	sched      *scheduler.Scheduler
}

// schedulerProxy breaks the construction cycle between rules.Manager (which
// needs a SchedulerHook at construction time) and scheduler.Scheduler
// (which needs the automation engine, itself built after the rule
// manager). It forwards every call to the real scheduler once assigned.
type schedulerProxy struct {
	sched *scheduler.Scheduler
}

func (p *schedulerProxy) RuleCreated(r model.Rule) {
	if p.sched != nil {
		p.sched.RuleCreated(r)
	}
}

func (p *schedulerProxy) RuleUpdated(r model.Rule) {
	if p.sched != nil {
		p.sched.RuleUpdated(r)
	}
}

func (p *schedulerProxy) RuleDeleted(ruleID string) {
	if p.sched != nil {
		p.sched.RuleDeleted(ruleID)
	}
}

// buildWiring assembles every layer for cfgPath, the path given to the
// --config flag (empty reads defaults and environment only).
func buildWiring(cfgPath string) (*wiring, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	log := logging.Root()
	reg := metrics.New()

	localStore, err := store.Open(cfg.DatabasePath, log)
	if err != nil {
		return nil, err
	}

	tokens := bank.NewTokenStore(localStore, bank.Endpoint{AuthURL: cfg.BankAuthURL, TokenURL: cfg.BankTokenURL}, log)
	bankClient := bank.NewHTTPClient(cfg.BankBaseURL, tokens, log)

	proxy := &schedulerProxy{}
	ruleMgr := rules.NewManager(localStore, proxy, log)

	reader := trigger.NewReader(localStore, bankClient, log)
	q := queue.New(cfg.QueueWorkers, cfg.QueueCapacity, ruleMgr, reg, log)
	ruleMgr.SetQueueHook(q)
	exec := executor.New(localStore, bankClient, reader, log)

	autoEng := automation.New(localStore, exec, reader, q, log)
	syncEng := sync.New(localStore, bankClient, log, reg, sync.WithPostSyncHook(autoEng))

	sched := scheduler.New(localStore, syncEng, autoEng, cfg.SyncInterval, cfg.AutomationInterval, log)
	proxy.sched = sched

	return &wiring{
		cfg:        cfg,
		log:        log,
		localStore: localStore,
		ruleMgr:    ruleMgr,
		queue:      q,
		syncEng:    syncEng,
		autoEng:    autoEng,
		sched:      sched,
	}, nil
}

func buildWiringFromContext(c *cli.Context) (*wiring, error) {
	return buildWiring(c.String(flagConfig))
}

package main

import (
	"github.com/urfave/cli/v2"
)

var syncCommand = &cli.Command{
	Name:   "sync",
	Usage:  "run one sync pass over every active account, without starting the schedulers",
	Flags:  commonFlags,
	Action: runSync,
}

func runSync(c *cli.Context) error {
	w, err := buildWiringFromContext(c)
	if err != nil {
		return err
	}
	if err := w.syncEng.CheckOrphanedIntents(c.Context); err != nil {
		w.log.Warn("potautomation: orphaned intent scan failed", "error", err)
	}
	return w.syncEng.Run(c.Context)
}

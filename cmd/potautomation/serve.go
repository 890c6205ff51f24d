package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "start the queue, schedulers, and sync/automation loop",
	Flags:  commonFlags,
	Action: runServe,
}

func runServe(c *cli.Context) error {
	w, err := buildWiringFromContext(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w.queue.Start(ctx)
	if err := w.sched.Start(ctx); err != nil {
		w.queue.Stop()
		return err
	}

	w.log.Info("potautomation: serving", "database_path", w.cfg.DatabasePath)
	<-ctx.Done()
	w.log.Info("potautomation: shutting down")
	w.sched.Stop()
	w.queue.Stop()
	return nil
}

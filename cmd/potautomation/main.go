// Command potautomation runs the personal finance automation core: syncing
// bank state into Local Store, evaluating rule triggers, and executing the
// resulting queue (spec.md §§4.2, 4.7, 4.8).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/r3vrt/monzo-auto-sub000/internal/logging"
)

const clientIdentifier = "potautomation"

var app = &cli.App{
	Name:    clientIdentifier,
	Usage:   "personal finance automation engine",
	Version: "1.0.0",
}

func init() {
	app.Action = runServe
	app.Commands = []*cli.Command{
		serveCommand,
		syncCommand,
		rulesCommand,
	}
	app.Flags = commonFlags

	app.Before = func(c *cli.Context) error {
		level := logging.LevelFromString(c.String(flagLogLevel))
		logging.SetDefault(logging.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

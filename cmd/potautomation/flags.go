package main

import "github.com/urfave/cli/v2"

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
)

var commonFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  flagConfig,
		Usage: "path to a config file (POTAUTO_-prefixed env vars always take precedence)",
	},
	&cli.StringFlag{
		Name:  flagLogLevel,
		Usage: "log level (debug, info, warn, error)",
		Value: "info",
	},
}

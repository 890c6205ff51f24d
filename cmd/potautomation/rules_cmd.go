package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var rulesCommand = &cli.Command{
	Name:  "rules",
	Usage: "inspect and manage stored rules",
	Subcommands: []*cli.Command{
		rulesListCommand,
		rulesEnableCommand,
		rulesDisableCommand,
		rulesDeleteCommand,
	},
}

var rulesListCommand = &cli.Command{
	Name:      "list",
	Usage:     "list every rule owned by a user",
	ArgsUsage: "<user_id>",
	Flags:     commonFlags,
	Action:    runRulesList,
}

var rulesEnableCommand = &cli.Command{
	Name:      "enable",
	Usage:     "enable a rule",
	ArgsUsage: "<user_id> <rule_id>",
	Flags:     commonFlags,
	Action:    runRulesEnable,
}

var rulesDisableCommand = &cli.Command{
	Name:      "disable",
	Usage:     "disable a rule",
	ArgsUsage: "<user_id> <rule_id>",
	Flags:     commonFlags,
	Action:    runRulesDisable,
}

var rulesDeleteCommand = &cli.Command{
	Name:      "delete",
	Usage:     "permanently delete a rule",
	ArgsUsage: "<user_id> <rule_id>",
	Flags:     commonFlags,
	Action:    runRulesDelete,
}

func runRulesList(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: rules list <user_id>")
	}
	w, err := buildWiringFromContext(c)
	if err != nil {
		return err
	}
	rs, err := w.ruleMgr.List(c.Args().Get(0))
	if err != nil {
		return err
	}
	for _, r := range rs {
		fmt.Printf("%s\t%s\t%s\tenabled=%t\n", r.ID, r.Family, r.Name, r.Enabled)
	}
	return nil
}

func runRulesEnable(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: rules enable <user_id> <rule_id>")
	}
	w, err := buildWiringFromContext(c)
	if err != nil {
		return err
	}
	r, err := w.ruleMgr.SetEnabled(c.Args().Get(0), c.Args().Get(1), true)
	if err != nil {
		return err
	}
	fmt.Printf("%s enabled=%t\n", r.ID, r.Enabled)
	return nil
}

func runRulesDisable(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: rules disable <user_id> <rule_id>")
	}
	w, err := buildWiringFromContext(c)
	if err != nil {
		return err
	}
	r, err := w.ruleMgr.SetEnabled(c.Args().Get(0), c.Args().Get(1), false)
	if err != nil {
		return err
	}
	fmt.Printf("%s enabled=%t\n", r.ID, r.Enabled)
	return nil
}

func runRulesDelete(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: rules delete <user_id> <rule_id>")
	}
	w, err := buildWiringFromContext(c)
	if err != nil {
		return err
	}
	if err := w.ruleMgr.Delete(c.Args().Get(0), c.Args().Get(1)); err != nil {
		return err
	}
	fmt.Printf("%s deleted\n", c.Args().Get(1))
	return nil
}

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func createScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Start (or retime) periodic reconciliation of an address",
		ArgsUsage: "ADDRESS",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Pass interval (server default when omitted)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("address is required")
			}
			address := c.Args().Get(0)

			if err := newAPIClient(c).CreateSchedule(c.Context, address, c.Duration("interval")); err != nil {
				return fmt.Errorf("failed to create schedule: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "✓ Reconciliation scheduled for %s\n", address)
			return nil
		},
	}
}

func deleteScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Stop periodic reconciliation of an address",
		ArgsUsage: "ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("address is required")
			}
			address := c.Args().Get(0)

			if err := newAPIClient(c).DeleteSchedule(c.Context, address); err != nil {
				return fmt.Errorf("failed to delete schedule: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "✓ Reconciliation schedule deleted for %s\n", address)
			return nil
		},
	}
}

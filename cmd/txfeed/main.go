package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "txfeed",
		Usage: "Wallet activity feed operator CLI",
		Description: `A command-line tool for inspecting and driving the txfeed service.

Use this CLI to read merged activity timelines, trigger reconciliation passes,
manage reconciliation schedules, classify single transactions, and watch
status change events.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			{
				Name:  "activities",
				Usage: "Activity timeline commands",
				Subcommands: []*cli.Command{
					listActivitiesCommand(),
					reconcileCommand(),
				},
			},
			classifyCommand(),
			{
				Name:  "schedule",
				Usage: "Reconciliation schedule commands",
				Subcommands: []*cli.Command{
					createScheduleCommand(),
					deleteScheduleCommand(),
				},
			},
			{
				Name:  "nats",
				Usage: "Status change streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
				},
			},
			streamCommand(),
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "txfeed API URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}

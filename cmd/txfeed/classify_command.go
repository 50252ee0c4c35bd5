package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/brojonat/txfeed/service/config"
	"github.com/brojonat/txfeed/service/solana"
	"github.com/urfave/cli/v2"
)

func classifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Fetch one transaction and show how it classifies for an address",
		ArgsUsage: "SIGNATURE",
		Description: `Fetches the parsed transaction straight from the RPC node and runs the
classifier on it, without touching the store or the backend.

Example:
  txfeed classify 5h6x...Qz --address 9WzD...WM --network devnet`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "address",
				Aliases:  []string{"a"},
				Usage:    "Address the activity is classified relative to",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC endpoint (comma-separated list picks one at random)",
				EnvVars: []string{"SOLANA_RPC_URL"},
				Value:   "https://api.mainnet-beta.solana.com",
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   "Network profile name",
				EnvVars: []string{"NETWORK"},
				Value:   "mainnet",
			},
			&cli.StringFlag{
				Name:    "networks-file",
				Usage:   "YAML file of network profiles",
				EnvVars: []string{"NETWORKS_FILE"},
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("signature is required")
			}
			signature := c.Args().Get(0)
			address := c.String("address")

			networks, err := config.LoadNetworks(c.String("networks-file"))
			if err != nil {
				return err
			}
			profile, ok := networks[c.String("network")]
			if !ok {
				return fmt.Errorf("unknown network %q", c.String("network"))
			}

			endpoint, err := solana.SelectRandomEndpoint(splitEndpoints(c.String("rpc-url")))
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
			sc := solana.NewClient(solana.NewRPCClient(endpoint), endpoint, nil, logger)

			if err := solana.ValidateAddress(address); err != nil {
				return err
			}

			tx, info, err := sc.GetTransactionWithInfo(c.Context, signature)
			if err != nil {
				return fmt.Errorf("failed to fetch transaction: %w", err)
			}

			a := activity.Classify(tx, info, profile.ClassifyContext(address))

			out := c.App.Writer
			if c.Bool("json") {
				return writeJSONLine(out, a)
			}
			data, err := json.MarshalIndent(a, "", "  ")
			if err != nil {
				return err
			}
			if tx == nil {
				fmt.Fprintln(out, "transaction not found; showing the unclassified record")
			}
			fmt.Fprintln(out, string(data))
			return nil
		},
	}
}

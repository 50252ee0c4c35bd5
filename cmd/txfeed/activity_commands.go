package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/txfeed/client"
	"github.com/brojonat/txfeed/service/activity"
	"github.com/urfave/cli/v2"
)

func newAPIClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	return client.NewClient(c.String("server-url"), nil, logger)
}

func listActivitiesCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "Show the merged activity timeline of an address",
		ArgsUsage: "ADDRESS",
		Description: `Lists the merged timeline, newest first.

--jq runs a jq filter against each activity and keeps those it selects:
  txfeed activities list ADDR --jq 'select(.status == "pending")'
--must-jq keeps activities for which every filter is truthy:
  txfeed activities list ADDR --must-jq '.action == "send"' --must-jq '.id != null'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq filter applied to each activity; its outputs are printed as JSON",
			},
			&cli.StringSliceFlag{
				Name:  "must-jq",
				Usage: "jq predicate every printed activity must satisfy (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("address is required")
			}
			address := c.Args().Get(0)

			var predicates []*jqPredicate
			for _, f := range c.StringSlice("must-jq") {
				code, err := compileJQ(f)
				if err != nil {
					return err
				}
				predicates = append(predicates, &jqPredicate{filter: f, code: code})
			}

			resp, err := newAPIClient(c).ListActivities(c.Context, address)
			if err != nil {
				return fmt.Errorf("failed to list activities: %w", err)
			}

			list, err := filterActivities(resp.Activities, predicates)
			if err != nil {
				return err
			}

			out := c.App.Writer
			if f := c.String("jq"); f != "" {
				code, err := compileJQ(f)
				if err != nil {
					return err
				}
				for _, a := range list {
					results, err := runJQ(code, a)
					if err != nil {
						return err
					}
					for _, r := range results {
						if err := writeJSONLine(out, r); err != nil {
							return err
						}
					}
				}
				return nil
			}

			if c.Bool("json") {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			printActivities(out, list)
			return nil
		},
	}
}

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:      "reconcile",
		Usage:     "Run a reconciliation pass for an address now",
		ArgsUsage: "ADDRESS",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("address is required")
			}
			address := c.Args().Get(0)

			res, err := newAPIClient(c).Reconcile(c.Context, address)
			if err != nil {
				return fmt.Errorf("reconciliation failed: %w", err)
			}

			out := c.App.Writer
			if c.Bool("json") {
				return writeJSONLine(out, res)
			}

			fmt.Fprintf(out, "Pass %s for %s\n", res.PassID, res.Address)
			fmt.Fprintf(out, "  Signatures listed:     %d\n", res.Listed)
			fmt.Fprintf(out, "  Transactions fetched:  %d\n", res.Fetched)
			fmt.Fprintf(out, "  Backend orders:        %d\n", res.Orders)
			fmt.Fprintf(out, "  Activities total:      %d\n", res.Total)
			fmt.Fprintf(out, "  Duration:              %s\n", time.Duration(res.DurationMS)*time.Millisecond)
			if res.PatchErrors > 0 {
				fmt.Fprintf(out, "  Backend patch errors:  %d\n", res.PatchErrors)
			}
			for _, ch := range res.Changes {
				fmt.Fprintf(out, "  %s -> %s (%s)\n", ch.ActivityID, ch.Status, ch.Signature)
			}
			return nil
		},
	}
}

func filterActivities(list []activity.Activity, predicates []*jqPredicate) ([]activity.Activity, error) {
	if len(predicates) == 0 {
		return list, nil
	}
	var out []activity.Activity
	for _, a := range list {
		ok, err := matchesAll(a, predicates)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func printActivities(w io.Writer, list []activity.Activity) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No activities found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSTATUS\tACTION\tTYPE\tAMOUNT\tCURRENCY\tORDER\tSIGNATURE")
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.RawDate, a.Status, a.Action, a.Type,
			deref(a.TotalAmountString), deref(a.CryptoCurrency), deref(a.ID), a.Signature)
	}
	tw.Flush()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func writeJSONLine(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

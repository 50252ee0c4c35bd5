package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brojonat/txfeed/client"
	natspkg "github.com/brojonat/txfeed/service/nats"
	"github.com/urfave/cli/v2"
)

// subscribeCommand consumes status change events straight from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to status change events",
		ArgsUsage: "[ADDRESS]",
		Description: `Streams status change events from NATS JetStream.

Events are published to activity.status.{address}; omit the address to see
every address.

Example:
  txfeed nats subscribe 9WzD...WM --json`,
		Action: func(c *cli.Context) error {
			address := c.Args().Get(0)
			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

			sub, err := natspkg.NewSubscriber(c.String("nats-url"), "txfeed-cli", logger)
			if err != nil {
				return err
			}
			defer sub.Close()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := c.App.Writer
			jsonOutput := c.Bool("json")
			if !jsonOutput {
				fmt.Fprintf(out, "📡 Subscribing to: %s\n", natspkg.Subject(address))
				fmt.Fprintf(out, "\nWaiting for status changes... (Ctrl-C to exit)\n\n")
			}

			return sub.Subscribe(ctx, address, func(e *natspkg.StatusChangeEvent) {
				printStatusEvent(out, jsonOutput, &client.StatusEvent{
					EventID:     e.EventID,
					Address:     e.Address,
					Network:     e.Network,
					ActivityID:  e.ActivityID,
					Signature:   e.Signature,
					Status:      e.Status,
					UpdatedAt:   e.UpdatedAt,
					PublishedAt: e.PublishedAt,
				})
			})
		},
	}
}

// streamCommand watches the server's SSE endpoint.
func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Watch status change events through the server's SSE endpoint",
		ArgsUsage: "[ADDRESS]",
		Action: func(c *cli.Context) error {
			address := c.Args().Get(0)
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchStream(ctx, newAPIClient(c), address, c.App.Writer, c.Bool("json"))
		},
	}
}

func watchStream(ctx context.Context, cl *client.Client, address string, out io.Writer, jsonOutput bool) error {
	err := cl.StreamStatus(ctx, address, func(e *client.StatusEvent) {
		printStatusEvent(out, jsonOutput, e)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream failed: %w", err)
	}
	return nil
}

func printStatusEvent(out io.Writer, jsonOutput bool, e *client.StatusEvent) {
	if jsonOutput {
		_ = writeJSONLine(out, e)
		return
	}
	fmt.Fprintf(out, "%s  %-9s  order=%s  sig=%s  address=%s\n",
		e.PublishedAt.Format("2006-01-02T15:04:05Z07:00"), e.Status, e.ActivityID, e.Signature, e.Address)
}

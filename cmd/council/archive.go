package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/council/internal/config"
	"github.com/fyrsmithlabs/council/internal/events"
	"github.com/fyrsmithlabs/council/internal/orchestrator"
)

func newArchiveCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage sessions archived in the server's session store",
		Long: `Manage finished sessions archived in JetStream KV.

Sessions are archived when started with --persist or when the server runs
with persist.always. Archived sessions stay readable with "council status"
after they are evicted from memory.`,
	}
	cmd.AddCommand(newArchiveListCmd(root), newArchiveDeleteCmd(root))
	return cmd
}

func newArchiveListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived session ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := root.client().archived(cmd.Context())
			if err != nil {
				return err
			}
			if root.json {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			if len(resp.SessionIDs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No archived sessions")
				return nil
			}
			for _, id := range resp.SessionIDs {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func newArchiveDeleteCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Remove a session from the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.client().deleteArchived(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted archived session %s\n", args[0])
			return nil
		},
	}
}

type watchOptions struct {
	natsURL string
	prefix  string
	timeout time.Duration
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow a session's events over NATS until it finishes",
		Long: `Follow a session's transitions as the server publishes them to NATS.

The server must run with nats.enabled. watch prints one line per event and
exits after the completed, failed or cancelled event.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, root, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.natsURL, "nats-url", "nats://localhost:4222", "NATS server URL")
	f.StringVar(&opts.prefix, "subject-prefix", events.DefaultPrefix, "Event subject prefix")
	f.DurationVar(&opts.timeout, "wait-timeout", 10*time.Minute, "Maximum time to watch")
	return cmd
}

func runWatch(cmd *cobra.Command, root *rootOptions, opts *watchOptions, id string) error {
	nc, err := events.Connect(config.NATSConfig{URL: opts.natsURL}, nil)
	if err != nil {
		return err
	}
	defer nc.Close()

	bus, err := events.NewPublisher(nc, opts.prefix, nil)
	if err != nil {
		return err
	}

	evCh := make(chan orchestrator.Event, 16)
	sub, err := bus.Subscribe(id, func(ev orchestrator.Event) {
		select {
		case evCh <- ev:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()
	if err := nc.Flush(); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	// The session may have finished before the subscription existed.
	snap, _, err := root.client().status(cmd.Context(), id)
	if err != nil {
		return err
	}
	if snap.Status.Terminal() {
		return printWatchDone(cmd, root, snap)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	for {
		select {
		case ev := <-evCh:
			if root.json {
				if err := writeJSON(cmd.OutOrStdout(), ev); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s status=%s phase=%s errors=%d\n",
					ev.Timestamp.Local().Format(time.TimeOnly), ev.Type, ev.Status, ev.Phase, ev.ErrorCount)
			}
			if ev.Type.Terminal() {
				return nil
			}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("watching session %s: gave up after %s", id, opts.timeout)
			}
			return ctx.Err()
		}
	}
}

func printWatchDone(cmd *cobra.Command, root *rootOptions, snap orchestrator.Session) error {
	if root.json {
		return writeJSON(cmd.OutOrStdout(), snap)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Session %s already %s\n", snap.ID, snap.Status)
	return nil
}

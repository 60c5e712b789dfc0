package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/council/internal/orchestrator"
	"github.com/fyrsmithlabs/council/internal/roles"
)

type startOptions struct {
	query         string
	industry      string
	budget        string
	timeline      string
	requirements  []string
	prompts       map[string]string
	skipSynthesis bool
	persist       bool
	wait          bool
	pollInterval  time.Duration
	waitTimeout   time.Duration
}

func (o *startOptions) request(args []string) (orchestrator.Request, error) {
	query := o.query
	if query == "" && len(args) > 0 {
		query = strings.Join(args, " ")
	}
	if strings.TrimSpace(query) == "" {
		return orchestrator.Request{}, errors.New("a query is required (--query or positional)")
	}

	req := orchestrator.Request{
		Query: query,
		Context: orchestrator.RequestContext{
			Industry:     o.industry,
			Budget:       o.budget,
			Timeline:     o.timeline,
			Requirements: o.requirements,
		},
		Options: orchestrator.RequestOptions{
			SkipSynthesis: o.skipSynthesis,
			Persist:       o.persist,
		},
	}
	if len(o.prompts) > 0 {
		req.Options.CustomPrompts = make(map[roles.ID]string, len(o.prompts))
		for id, prompt := range o.prompts {
			req.Options.CustomPrompts[roles.ID(id)] = prompt
		}
	}
	return req, nil
}

func newStartCmd(root *rootOptions) *cobra.Command {
	opts := &startOptions{}

	cmd := &cobra.Command{
		Use:   "start [query]",
		Short: "Start an analysis session",
		Long: `Start an analysis session on the council server.

Examples:
  # Start a session and return its id immediately
  council start "Build a scheduling app for small clinics"

  # Add context and wait for the result
  council start --query "Launch a meal kit service" \
    --industry food --budget "$50k" --timeline "6 months" \
    --requirement "Local sourcing" --requirement "Weekly delivery" \
    --wait

  # Override one role's prompt
  council start --prompt ux="Focus on elderly users" "Telehealth portal"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(args)
			if err != nil {
				return err
			}
			c := root.client()

			started, err := c.start(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !opts.wait {
				if root.json {
					return writeJSON(cmd.OutOrStdout(), started)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s started (%s)\n", started.SessionID, started.Status)
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.waitTimeout)
			defer cancel()
			snap, err := c.wait(ctx, started.SessionID, opts.pollInterval)
			if err != nil {
				return fmt.Errorf("waiting for session %s: %w", started.SessionID, err)
			}
			if root.json {
				return writeJSON(cmd.OutOrStdout(), snap)
			}
			printSession(cmd.OutOrStdout(), snap, "")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.query, "query", "q", "", "Query to analyze")
	f.StringVar(&opts.industry, "industry", "", "Industry context")
	f.StringVar(&opts.budget, "budget", "", "Budget context")
	f.StringVar(&opts.timeline, "timeline", "", "Timeline context")
	f.StringArrayVar(&opts.requirements, "requirement", nil, "Requirement (repeatable)")
	f.StringToStringVar(&opts.prompts, "prompt", nil, "Custom prompt per role, role=prompt (repeatable)")
	f.BoolVar(&opts.skipSynthesis, "skip-synthesis", false, "Skip the synthesis step")
	f.BoolVar(&opts.persist, "persist", false, "Archive the finished session")
	f.BoolVar(&opts.wait, "wait", false, "Wait for the session to finish and print the result")
	f.DurationVar(&opts.pollInterval, "poll-interval", time.Second, "Status poll interval with --wait")
	f.DurationVar(&opts.waitTimeout, "wait-timeout", 10*time.Minute, "Maximum time to wait with --wait")

	return cmd
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show a session snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, source, err := root.client().status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if root.json {
				return writeJSON(cmd.OutOrStdout(), snap)
			}
			printSession(cmd.OutOrStdout(), snap, source)
			return nil
		},
	}
}

func newCancelCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Request cancellation of a running session",
		Long: `Request cancellation of a running session.

Cancellation takes effect at the next phase boundary. A session that already
finished is left unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := root.client().cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if root.json {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			if res.Accepted {
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for %s\n", res.SessionID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s already %s\n", res.SessionID, res.Status)
			}
			return nil
		},
	}
}

func newListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions held by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := root.client().list(cmd.Context())
			if err != nil {
				return err
			}
			if root.json {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			if len(resp.Sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tPHASE\tERRORS\tSTARTED\tQUERY")
			for _, s := range resp.Sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					s.ID, s.Status, s.Phase, s.ErrorCount,
					s.StartedAt.Local().Format(time.DateTime), truncate(s.Query, 50))
			}
			return w.Flush()
		},
	}
}

func newRolesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List the council roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := root.client().roles(cmd.Context())
			if err != nil {
				return err
			}
			if root.json {
				return writeJSON(cmd.OutOrStdout(), resp)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPROVIDER\tSTRENGTHS")
			for _, r := range resp.Roles {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.PreferredProvider, strings.Join(r.Strengths, ", "))
			}
			return w.Flush()
		},
	}
}

func newHealthCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check councild server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := root.client().health(cmd.Context())
			if err != nil {
				return err
			}
			if root.json {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server Status: %s\n", resp.Status)
			if resp.Version != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", resp.Version)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server URL: %s\n", root.serverURL)
			return nil
		},
	}
}

// Package main implements the council CLI for driving a councild server.
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions are shared by every subcommand.
type rootOptions struct {
	serverURL string
	timeout   time.Duration
	json      bool
}

func (o *rootOptions) client() *client {
	return newClient(o.serverURL, o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "council",
		Short: "CLI for councild session operations",
		Long: `council starts and inspects multi-role analysis sessions on a councild server.

Six roles (requirements, technical, ux, data, planning, strategy) analyze a
query through the analysis, design and planning phases before the results are
synthesized into ranked recommendations.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.serverURL, "server", "http://localhost:9191", "councild server URL")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "HTTP request timeout")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Output results as JSON")

	cmd.AddCommand(
		newStartCmd(opts),
		newStatusCmd(opts),
		newCancelCmd(opts),
		newListCmd(opts),
		newRolesCmd(opts),
		newHealthCmd(opts),
		newArchiveCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

package commands

import (
	"github.com/openutm/bootstack/internal/launch"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Bootstrap the HTTP server container",
	Long: `Serve is the server-mode container entrypoint. It waits for the gated
dependency endpoints, applies pending schema migrations (a no-op when
nothing is pending), then execs the HTTP server so it becomes the
container's primary process and receives signals directly.

A migration failure aborts startup: the server never runs against an
unmigrated schema.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMode(cmd, launch.ModeServer)
	},
}

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Bootstrap the background worker container",
	Long: `Work is the worker-mode container entrypoint. It waits for the gated
dependency endpoints, optionally waits for the server's
migration-completion marker, then execs the task worker. Workers never
run migrations themselves.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMode(cmd, launch.ModeWorker)
	},
}

func runMode(cmd *cobra.Command, mode launch.Mode) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	endpoints, _, err := gatedEndpoints()
	if err != nil {
		return err
	}

	launcher := launch.New(m)
	launcher.Gate = newGate()
	return launcher.Run(cmd.Context(), mode, endpoints)
}

func init() {
	registerGateFlags(serveCmd)
	registerGateFlags(workCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workCmd)
}

package commands

import (
	"fmt"
	"os"

	"github.com/openutm/bootstack/internal/endpoint"
	"github.com/openutm/bootstack/internal/manifest"
	"github.com/openutm/bootstack/internal/proc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var manifestPath string

var rootCmd = &cobra.Command{
	Use:   "bootstack",
	Short: "Bootstrap and lifecycle orchestrator for a containerized web stack",
	Long: `Bootstack boots the containers of a web application stack and drives the
stack's host-level lifecycle:

  wait    Block until dependency endpoints accept connections
  serve   Gate on dependencies, migrate, then exec the HTTP server
  work    Gate on dependencies, then exec the background worker
  up      Provision config/network and (re)start the full stack
  down    Stop the stack, optionally destroying its volumes
  config  Print the resolved stack configuration`,
	SilenceUsage: false,
}

// Execute runs the command tree. Unknown flags and arguments surface
// cobra's usage output and exit status 1; child process failures propagate
// their own exit status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(proc.ExitCode(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "",
		fmt.Sprintf("stack manifest file (default %s)", manifest.DefaultPath))
}

func initConfig() {
	viper.AutomaticEnv()
	viper.SetDefault("BOOTSTACK_MANIFEST", manifest.DefaultPath)
}

// loadManifest resolves the manifest from --manifest, then
// BOOTSTACK_MANIFEST, then the default path.
func loadManifest() (manifest.Manifest, error) {
	path := manifestPath
	if path == "" {
		path = viper.GetString("BOOTSTACK_MANIFEST")
	}
	return manifest.Load(path)
}

// gatedEndpoints resolves the endpoint set for the current deployment
// topology from the environment.
func gatedEndpoints() ([]endpoint.Endpoint, endpoint.Topology, error) {
	return endpoint.FromEnv()
}

package commands

import (
	"github.com/openutm/bootstack/internal/manifest"
	"github.com/openutm/bootstack/internal/stack"
	"github.com/spf13/cobra"
)

var (
	upDev   bool
	upReset bool
)

// newController builds the lifecycle controller. Tests swap this to record
// container operations instead of performing them.
var newController = func(m manifest.Manifest) *stack.Controller {
	return stack.NewController(m)
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Provision and (re)start the full stack",
	Long: `Up brings the multi-container stack to a running state:

1. Seed the local configuration from its template if absent (never
   overwriting an existing file)
2. Mark entrypoint scripts executable (best effort)
3. Create the shared network if absent
4. Tear down any previous instance of the stack; with --reset, also
   destroy its named volumes
5. Rebuild images as needed and start the stack in the foreground

Each infrastructure failure propagates the underlying tool's exit status;
retries are an operator decision.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}
		return newController(m).Up(cmd.Context(), selectedProfile(), upReset)
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the stack, optionally destroying its volumes",
	Long: `Down stops and removes the selected stack's containers. Named volumes are
left intact unless --reset is given; volume destruction is only ever
reachable through that explicit flag.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}
		return newController(m).Down(cmd.Context(), selectedProfile(), upReset)
	},
}

func selectedProfile() stack.Profile {
	if upDev {
		return stack.ProfileDev
	}
	return stack.ProfileDefault
}

func init() {
	for _, cmd := range []*cobra.Command{upCmd, downCmd} {
		cmd.Flags().BoolVar(&upDev, "dev", false, "use the development compose profile")
		cmd.Flags().BoolVar(&upReset, "reset", false, "destroy the stack's named volumes (destructive)")
		rootCmd.AddCommand(cmd)
	}
}

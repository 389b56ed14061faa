package commands

import (
	"fmt"

	"github.com/openutm/bootstack/internal/endpoint"
	"github.com/openutm/bootstack/internal/manifest"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// resolvedConfig is the operator-facing view of what bootstack would do:
// the effective manifest, the endpoint set the gate would probe, and the
// seeded key-value configuration the stack runs with.
type resolvedConfig struct {
	Manifest manifest.Manifest   `yaml:"manifest"`
	Topology string              `yaml:"topology"`
	Gated    []endpoint.Endpoint `yaml:"gated"`
	Seeded   map[string]string   `yaml:"seeded,omitempty"`
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved stack configuration",
	Long: `Config resolves the stack manifest, the environment-derived dependency
topology, and the seeded configuration files, and prints them as YAML.
Useful for checking what a container would gate on before starting it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}

		endpoints, topology, err := gatedEndpoints()
		if err != nil {
			return err
		}

		seeded, err := newController(m).ReadConfig()
		if err != nil {
			return err
		}

		out, err := yaml.Marshal(resolvedConfig{
			Manifest: m,
			Topology: topology.String(),
			Gated:    endpoints,
			Seeded:   seeded,
		})
		if err != nil {
			return fmt.Errorf("failed to render configuration: %w", err)
		}

		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360studio/streamharness/component/builtin"
	"github.com/c360studio/streamharness/loader"
)

// newValidateCmd checks a manifest without running it: structure, factory
// references, and connection endpoints.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Validate a pipeline manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read manifest %s: %w", path, err)
			}

			m, err := loader.ParseManifest(data)
			if err != nil {
				return err
			}

			registry := loader.NewRegistry()
			if err := builtin.Register(registry); err != nil {
				return err
			}
			for _, e := range m.Components {
				if !e.IsEnabled() {
					continue
				}
				if _, ok := registry.Get(e.Factory); !ok {
					return fmt.Errorf("component %q uses unknown factory %q (registered: %v)",
						e.Name, e.Factory, registry.Names())
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d components, %d connections\n",
				path, len(m.Components), len(m.Connections))
			return nil
		},
	}
}

package utils

import (
	"fmt"

	"github.com/spf13/cobra"
)

// PropagatePersistentPreRun runs the parent's PersistentPreRun, so the global config options are ingested before a
// subcommand runs.
func PropagatePersistentPreRun(cmd *cobra.Command, args []string) {
	if parent := cmd.Parent(); parent != nil && parent.PersistentPreRun != nil {
		parent.PersistentPreRun(parent, args)
	}
}

// CallHelpCommand is used by the grouping commands that have no behavior of their own.
func CallHelpCommand(cmd *cobra.Command, _ []string) error {
	if err := cmd.Help(); err != nil {
		return fmt.Errorf("calling help command: %w", err)
	}
	return nil
}

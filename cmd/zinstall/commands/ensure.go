package commands

import (
	"github.com/spf13/cobra"
)

func newEnsureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ensure <command> [args]...",
		Short: "Install a command's recipe if missing, then run it",
		Long: `Check whether command resolves on PATH; if not, install the recipe
that provides it, then execute the command with the remaining arguments.
The exit code is the command's own.`,
		Example: `  # Run jq, installing it first if needed
  zinstall ensure jq -r .name data.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, _, err := setup()
			if err != nil {
				return err
			}
			return orch.EnsureAndExecute(cmd.Context(), args[0], args[1:]...)
		},
	}
	// Everything after the command name belongs to the wrapped command.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

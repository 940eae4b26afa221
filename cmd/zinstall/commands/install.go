package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newInstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <target>...",
		Short: "Install one or more targets with their dependencies",
		Long: `Resolve the targets (recipe ids or provided commands) into a
dependency-ordered stack and install everything not already present.

Installs are batched: all recipes resolving to the same package manager go
out in a single invocation.`,
		Example: `  # Install a single recipe
  zinstall install ripgrep

  # Install several targets in one resolved batch
  zinstall install neovim tmux fzf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, _, err := setup()
			if err != nil {
				return err
			}

			report, err := orch.Install(cmd.Context(), args...)
			for _, outcome := range report.Outcomes {
				line := fmt.Sprintf("%-30s %s", outcome.RecipeID, outcome.Status)
				if outcome.Backend != "" {
					line += fmt.Sprintf(" (%s)", outcome.Backend)
				}
				fmt.Println(line)
			}
			if err != nil {
				return err
			}

			log.Info().Int("installed", report.Installed()).Msg("Done")
			return nil
		},
	}
	return cmd
}

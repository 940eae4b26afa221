package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warpcode/zinstall/pkg/engine"
)

func newResolveCommand() *cobra.Command {
	var showStack bool

	cmd := &cobra.Command{
		Use:   "resolve <target>...",
		Short: "Resolve targets to recipe ids",
		Long: `Map each target (recipe id or provided command) to its recipe id.
With --stack, print the full dependency-ordered install stack instead.`,
		Example: `  # Which recipe provides the rg command?
  zinstall resolve rg

  # Show the ordered stack for a target
  zinstall resolve --stack neovim`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, store, err := setup()
			if err != nil {
				return err
			}

			if showStack {
				stack, err := engine.ResolveStack(store, args...)
				if err != nil {
					return err
				}
				for _, id := range stack {
					fmt.Println(id)
				}
				return nil
			}

			for _, target := range args {
				id, ok := orch.Resolve(target)
				if !ok {
					return fmt.Errorf("unknown target: %s", target)
				}
				fmt.Printf("%s -> %s\n", target, id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showStack, "stack", false, "print the dependency-ordered install stack")
	return cmd
}

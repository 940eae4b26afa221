package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available recipes",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := setup()
			if err != nil {
				return err
			}

			recipes, err := store.All()
			if err != nil {
				return err
			}
			for _, rec := range recipes {
				line := rec.ID
				if len(rec.Provides) > 0 {
					line += fmt.Sprintf(" (provides: %s)", strings.Join(rec.Provides, " "))
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	return cmd
}

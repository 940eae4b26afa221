package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	recipesDir string
	verbose    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zinstall",
		Short: "zinstall - recipe-driven package installer",
		Long: `zinstall installs software from declarative recipes, resolving
dependencies and picking the best available package manager per platform.

Features:
  - Recipe definitions with dependencies and provided commands
  - Backend precedence across brew, flatpak, snap, apt, dnf, pacman, pipx
  - Batched installs (one package-manager invocation per backend)
  - Idempotent repository and signing-key provisioning
  - GitHub release installs with version tracking`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&recipesDir, "recipes", "r", "", "recipe directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newEnsureCommand())

	return rootCmd
}

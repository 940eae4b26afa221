package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/warpcode/zinstall/pkg/backend"
	"github.com/warpcode/zinstall/pkg/config"
	"github.com/warpcode/zinstall/pkg/engine"
	"github.com/warpcode/zinstall/pkg/ghrelease"
	"github.com/warpcode/zinstall/pkg/recipe"
)

// setup wires the full pipeline from configuration: recipe store, platform
// facts, provisioner, release installer, orchestrator.
func setup() (*engine.Orchestrator, *recipe.Store, error) {
	cfg, err := config.NewLoader().Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	applyLogLevel(cfg.LogLevel)

	if recipesDir != "" {
		cfg.RecipesDir = recipesDir
	}

	store := recipe.NewStore(cfg.RecipesDir)
	if err := store.Load(); err != nil {
		return nil, nil, fmt.Errorf("failed to load recipes: %w", err)
	}

	facts := backend.CollectFacts()
	runner := engine.ExecRunner{}
	session := engine.NewSessionState()

	prov := engine.NewProvisioner(runner, facts, session)
	if cfg.AptSourcesDir != "" {
		prov.AptSourcesDir = cfg.AptSourcesDir
	}
	if cfg.AptKeyringDir != "" {
		prov.AptKeyringDir = cfg.AptKeyringDir
	}
	if cfg.YumReposDir != "" {
		prov.YumReposDir = cfg.YumReposDir
	}

	orch := engine.NewOrchestrator(engine.Options{
		Store:       store,
		Facts:       facts,
		Runner:      runner,
		Releases:    ghrelease.NewInstaller(ghrelease.NewClient(), cfg.InstallRoot, facts),
		Session:     session,
		Provisioner: prov,
	})
	return orch, store, nil
}

// applyLogLevel honors the configured level unless --verbose already forced
// debug output.
func applyLogLevel(level string) {
	if verbose {
		return
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		return
	}
	if parsed != zerolog.GlobalLevel() {
		log.Debug().Str("level", level).Msg("Applying configured log level")
		zerolog.SetGlobalLevel(parsed)
	}
}

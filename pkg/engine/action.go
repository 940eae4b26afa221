package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/warpcode/zinstall/pkg/recipe"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// CallbackFunc is a named hook supplied by the host application.
type CallbackFunc func(ctx context.Context, rec *recipe.Recipe) error

// CallbackRegistry maps callback names to their implementations. Recipes
// reference entries as "@name" in hook fields.
type CallbackRegistry map[string]CallbackFunc

// runAction dispatches an Action: named callbacks go through the registry,
// shell expressions are parsed and interpreted. A nil action is a no-op.
func runAction(ctx context.Context, registry CallbackRegistry, rec *recipe.Recipe, a *recipe.Action, phase string) error {
	if a == nil {
		return nil
	}

	log.Debug().Str("recipe", rec.ID).Str("phase", phase).Msg("Running action")

	switch a.Kind {
	case recipe.ActionNamed:
		fn, registered := registry[a.Name]
		if !registered {
			return NewPermanentError(
				fmt.Sprintf("%s references unregistered callback %q", phase, a.Name), nil).
				WithCode(CodeInstall).WithRecipe(rec.ID)
		}
		if err := fn(ctx, rec); err != nil {
			return NewPermanentError(
				fmt.Sprintf("%s callback %q failed", phase, a.Name), err).
				WithCode(CodeInstall).WithRecipe(rec.ID)
		}
		return nil

	case recipe.ActionShell:
		if err := runShell(ctx, a.Script); err != nil {
			return NewPermanentError(
				fmt.Sprintf("%s shell expression failed", phase), err).
				WithCode(CodeInstall).WithRecipe(rec.ID)
		}
		return nil

	default:
		return NewPermanentError(
			fmt.Sprintf("unknown action kind %q", a.Kind), nil).
			WithCode(CodeInstall).WithRecipe(rec.ID)
	}
}

// runShell evaluates a literal shell expression with inherited stdio.
func runShell(ctx context.Context, script string) error {
	file, err := syntax.NewParser().Parse(strings.NewReader(script), "action")
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	runner, err := interp.New(
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(os.Stdin, os.Stdout, os.Stderr),
	)
	if err != nil {
		return err
	}
	return runner.Run(ctx, file)
}

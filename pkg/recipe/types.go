// Package recipe loads and indexes the declarative recipe definitions that
// drive installation: one YAML file per recipe, describing what the recipe
// provides, what it depends on, and how each backend installs it.
package recipe

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/warpcode/zinstall/pkg/backend"
)

// ActionKind discriminates the Action variant.
type ActionKind string

const (
	// ActionNamed references a callback registered by the host application.
	ActionNamed ActionKind = "named"

	// ActionShell is a literal shell expression evaluated at execution time.
	ActionShell ActionKind = "shell"
)

// Action is a pre/post-install hook or custom install command. It is either
// a named callback reference or a literal shell expression; the variant is
// fixed at load time and never mutated.
type Action struct {
	Kind   ActionKind
	Name   string // set when Kind == ActionNamed
	Script string // set when Kind == ActionShell
}

// callbackPrefix marks a named-callback reference in a recipe field.
const callbackPrefix = "@"

// parseAction turns a raw recipe field into an Action. Empty input means no
// action (nil).
func parseAction(raw string) *Action {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if name, ok := strings.CutPrefix(raw, callbackPrefix); ok {
		return &Action{Kind: ActionNamed, Name: name}
	}
	return &Action{Kind: ActionShell, Script: raw}
}

// AptRepo describes a templated apt source plus optional signing key,
// authored as "key_url|keyring_name|repo_line_template".
type AptRepo struct {
	// KeyURL is where the ASCII-armored (or raw) signing key is fetched from.
	// Empty means the repo line needs no dedicated key.
	KeyURL string

	// KeyringName is the basename (without extension) of the keyring file
	// the key is converted into.
	KeyringName string

	// LineTemplate is the sources.list line with {codename}, {arch}, {id}
	// and {keyring} runtime tokens.
	LineTemplate string `validate:"required"`
}

// Recipe is one installable target. Immutable once loaded.
type Recipe struct {
	// ID is the stable identifier (the definition filename stem).
	ID string `validate:"required"`

	// Name is the human-readable name.
	Name string `validate:"required"`

	// Provides lists command names whose presence on PATH proves the recipe
	// is already satisfied. Empty means the recipe is always scheduled.
	Provides []string

	// Depends lists target references (recipe ids or provided commands) that
	// must install before this recipe.
	Depends []string

	// Methods maps each backend to its package spec string.
	Methods map[backend.Backend]string

	// AptRepo is the apt repository/key descriptor, if any.
	AptRepo *AptRepo

	// DnfRepoURL is the URL of a standalone .repo file, if any.
	DnfRepoURL string

	// BrewTaps lists Homebrew taps to add before installing.
	BrewTaps []string

	// PreInstall and PostInstall are the per-recipe hooks.
	PreInstall  *Action
	PostInstall *Action

	// InstallCmd is the fallback action for the custom backend.
	InstallCmd *Action
}

// validate is shared across loads; validator.Validate is safe for
// single-threaded reuse.
var validate = validator.New()

// Validate checks the structural invariants rejected at load time.
func (r *Recipe) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("recipe %s: %w", r.ID, err)
	}
	if r.AptRepo != nil {
		if err := validate.Struct(r.AptRepo); err != nil {
			return fmt.Errorf("recipe %s: apt_repo: %w", r.ID, err)
		}
	}
	if _, declared := r.Methods[backend.Custom]; declared && r.InstallCmd == nil {
		return fmt.Errorf("recipe %s: custom method declared without install_cmd", r.ID)
	}
	return nil
}

// splitList parses a space-separated field into its entries.
func splitList(raw string) []string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

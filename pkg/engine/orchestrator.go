package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/warpcode/zinstall/pkg/backend"
	"github.com/warpcode/zinstall/pkg/recipe"
)

// ReleaseInstaller fetches and installs a GitHub release asset for one app.
// The orchestrator treats it as a black box: only the error result matters.
type ReleaseInstaller interface {
	Install(ctx context.Context, app, spec string) error
}

// Options configures an Orchestrator. Store and Facts are required; every
// other field has a working default.
type Options struct {
	Store     *recipe.Store
	Facts     *backend.Facts
	Resolver  *backend.Resolver
	Runner    Runner
	Releases  ReleaseInstaller
	Callbacks CallbackRegistry

	// Session shares per-process state with an externally built Provisioner;
	// left nil, a fresh session is created.
	Session *SessionState

	// Provisioner overrides the default one; useful for redirecting the
	// repo/keyring directories.
	Provisioner *Provisioner
}

// Orchestrator owns the per-process installation state and exposes the
// public operations: Resolve, Install, EnsureAndExecute. Construct one per
// process and pass it by reference; there is no ambient global state.
// Execution is strictly sequential: OS package managers hold exclusive
// locks, so serialization is correct, not a limitation.
type Orchestrator struct {
	store     *recipe.Store
	facts     *backend.Facts
	resolver  *backend.Resolver
	runner    Runner
	releases  ReleaseInstaller
	callbacks CallbackRegistry
	session   *SessionState
	prov      *Provisioner
}

// NewOrchestrator wires an orchestrator from options.
func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		store:     opts.Store,
		facts:     opts.Facts,
		resolver:  opts.Resolver,
		runner:    opts.Runner,
		releases:  opts.Releases,
		callbacks: opts.Callbacks,
		session:   opts.Session,
	}
	if o.session == nil {
		o.session = NewSessionState()
	}
	if o.facts == nil {
		o.facts = backend.CollectFacts()
	}
	if o.resolver == nil {
		o.resolver = backend.NewResolver(o.facts)
	}
	if o.runner == nil {
		o.runner = ExecRunner{}
	}
	if o.callbacks == nil {
		o.callbacks = CallbackRegistry{}
	}
	o.prov = opts.Provisioner
	if o.prov == nil {
		o.prov = NewProvisioner(o.runner, o.facts, o.session)
	}
	return o
}

// Resolve maps a target reference to a recipe id.
func (o *Orchestrator) Resolve(target string) (string, bool) {
	return o.store.Resolve(target)
}

// planItem is one pending recipe with its resolved installation method.
type planItem struct {
	rec  *recipe.Recipe
	b    backend.Backend
	spec string
}

// Install resolves the targets into a dependency-ordered stack, filters
// already-satisfied recipes, provisions repositories, and installs the rest
// grouped per backend (one invocation per batchable backend). The report
// carries a per-recipe outcome even when an error aborts the invocation.
func (o *Orchestrator) Install(ctx context.Context, targets ...string) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}

	stack, err := ResolveStack(o.store, targets...)
	if err != nil {
		return report, err
	}
	log.Info().Str("run_id", report.RunID).Strs("stack", stack).Msg("Resolved dependency stack")

	pending := o.filterPending(stack, report)
	if len(pending) == 0 {
		log.Info().Str("run_id", report.RunID).Msg("Nothing to install")
		return report, nil
	}

	// Pre-install hooks run first, in stack (dependency) order.
	for _, item := range pending {
		if err := runAction(ctx, o.callbacks, item.rec, item.rec.PreInstall, "pre_install"); err != nil {
			report.add(Outcome{RecipeID: item.rec.ID, Backend: item.b, Status: StatusFailed, Error: err.Error()})
			return report, err
		}
	}

	// Repository/key provisioning; any real change forces that backend's
	// metadata refresh even if already refreshed this session.
	needsRefresh := make(map[backend.Backend]bool)
	for _, item := range pending {
		changed, err := o.prov.Provision(ctx, item.rec, item.b)
		if changed {
			needsRefresh[item.b] = true
		}
		if err != nil {
			report.add(Outcome{RecipeID: item.rec.ID, Backend: item.b, Status: StatusFailed, Error: err.Error()})
			return report, err
		}
	}

	for _, group := range groupByBackend(pending) {
		if err := o.runGroup(ctx, group, needsRefresh[group.b], report); err != nil {
			return report, err
		}
	}

	log.Info().Str("run_id", report.RunID).Int("installed", report.Installed()).Msg("Install complete")
	return report, nil
}

// filterPending applies the idempotency guard and method resolution, in
// stack order. Excluded recipes get their outcome recorded immediately.
func (o *Orchestrator) filterPending(stack []string, report *Report) []*planItem {
	var pending []*planItem
	for _, id := range stack {
		rec, ok := o.store.Get(id)
		if !ok {
			continue
		}

		if o.session.Processed(id) || o.satisfied(rec) {
			log.Info().Str("recipe", id).Msg("Already installed")
			report.add(Outcome{RecipeID: id, Status: StatusAlreadyInstalled})
			o.session.MarkProcessed(id)
			continue
		}

		b, spec, ok := o.resolver.Resolve(rec.Methods)
		if !ok {
			// Inapplicable on this platform: a reported no-op, never fatal.
			log.Info().Str("recipe", id).Msg("No applicable install method on this platform")
			report.add(Outcome{RecipeID: id, Status: StatusNoMethod})
			o.session.MarkProcessed(id)
			continue
		}

		pending = append(pending, &planItem{rec: rec, b: b, spec: spec})
	}
	return pending
}

// satisfied reports whether any provided command already resolves on PATH.
// Recipes with no provides are conservatively never assumed satisfied.
func (o *Orchestrator) satisfied(rec *recipe.Recipe) bool {
	for _, cmd := range rec.Provides {
		if _, err := o.runner.LookPath(cmd); err == nil {
			return true
		}
	}
	return false
}

// installGroup is a set of pending recipes sharing a resolved backend, in
// dependency order.
type installGroup struct {
	b     backend.Backend
	items []*planItem
}

// groupByBackend groups pending items per backend, ordering groups by the
// first appearance of any member in the stack.
func groupByBackend(pending []*planItem) []*installGroup {
	var groups []*installGroup
	index := make(map[backend.Backend]*installGroup)
	for _, item := range pending {
		g, exists := index[item.b]
		if !exists {
			g = &installGroup{b: item.b}
			index[item.b] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, item)
	}
	return groups
}

// runGroup refreshes the backend's metadata, issues the install
// invocation(s), then runs post-install hooks in dependency order. A failure
// marks every not-yet-complete member failed and aborts the invocation;
// groups that already finished stand (idempotent re-run is the recovery).
func (o *Orchestrator) runGroup(ctx context.Context, g *installGroup, forceRefresh bool, report *Report) error {
	if err := o.prov.Refresh(ctx, g.b, forceRefresh); err != nil {
		o.failGroup(g, report, err)
		return err
	}

	if g.b.Batchable() {
		specs := collectSpecs(g.items)
		name, args := installCommand(g.b, specs)
		log.Info().Str("backend", string(g.b)).Strs("packages", specs).Msg("Installing batch")
		if err := o.runner.Run(ctx, name, args...); err != nil {
			batchErr := NewPermanentError(
				fmt.Sprintf("%s batch install failed", g.b), err).
				WithCode(CodeBatchInstall).WithBackend(string(g.b))
			o.failGroup(g, report, batchErr)
			return batchErr
		}
		return o.finishGroup(ctx, g, report)
	}

	// Non-batchable backends install one recipe per invocation.
	for _, item := range g.items {
		log.Info().Str("recipe", item.rec.ID).Str("backend", string(g.b)).Msg("Installing")
		if err := o.installSingle(ctx, item); err != nil {
			report.add(Outcome{RecipeID: item.rec.ID, Backend: g.b, Status: StatusFailed, Error: err.Error()})
			return err
		}
		if err := o.completeItem(ctx, item, report); err != nil {
			return err
		}
	}
	return nil
}

// installSingle dispatches a non-batchable install.
func (o *Orchestrator) installSingle(ctx context.Context, item *planItem) error {
	switch item.b {
	case backend.GitHub:
		if o.releases == nil {
			return NewPermanentError("no release installer configured", nil).
				WithCode(CodeInstall).WithRecipe(item.rec.ID)
		}
		err := o.releases.Install(ctx, item.rec.ID, item.spec)
		if err == nil {
			return nil
		}
		var classified *InstallError
		if errors.As(err, &classified) {
			return err
		}
		return NewPermanentError("release install failed", err).
			WithCode(CodeInstall).WithRecipe(item.rec.ID).WithBackend(string(backend.GitHub))

	case backend.Custom:
		return runAction(ctx, o.callbacks, item.rec, item.rec.InstallCmd, "install_cmd")

	default:
		return NewPermanentError(
			fmt.Sprintf("backend %s is not single-install", item.b), nil).
			WithCode(CodeInstall).WithRecipe(item.rec.ID)
	}
}

// finishGroup runs post-install hooks and records success for every member
// of a batch, in dependency order.
func (o *Orchestrator) finishGroup(ctx context.Context, g *installGroup, report *Report) error {
	for _, item := range g.items {
		if err := o.completeItem(ctx, item, report); err != nil {
			return err
		}
	}
	return nil
}

// completeItem runs the post-install hook and records the outcome.
func (o *Orchestrator) completeItem(ctx context.Context, item *planItem, report *Report) error {
	if err := runAction(ctx, o.callbacks, item.rec, item.rec.PostInstall, "post_install"); err != nil {
		report.add(Outcome{RecipeID: item.rec.ID, Backend: item.b, Status: StatusFailed, Error: err.Error()})
		return err
	}
	report.add(Outcome{RecipeID: item.rec.ID, Backend: item.b, Status: StatusInstalled})
	o.session.MarkProcessed(item.rec.ID)
	return nil
}

// failGroup marks every member of a group failed.
func (o *Orchestrator) failGroup(g *installGroup, report *Report, err error) {
	for _, item := range g.items {
		report.add(Outcome{RecipeID: item.rec.ID, Backend: g.b, Status: StatusFailed, Error: err.Error()})
	}
}

// EnsureAndExecute installs the recipe owning command when it is missing
// from PATH, then executes the command with the given arguments.
func (o *Orchestrator) EnsureAndExecute(ctx context.Context, command string, args ...string) error {
	if _, err := o.runner.LookPath(command); err != nil {
		if _, err := o.Install(ctx, command); err != nil {
			return err
		}
		if _, err := o.runner.LookPath(command); err != nil {
			return NewPermanentError(
				fmt.Sprintf("command %q still missing after install", command), err).
				WithCode(CodeInstall)
		}
	}
	return o.runner.Run(ctx, command, args...)
}

// collectSpecs flattens every item's package spec into individual packages.
func collectSpecs(items []*planItem) []string {
	var specs []string
	for _, item := range items {
		specs = append(specs, strings.Fields(item.spec)...)
	}
	return specs
}

// installCommand builds the batched install invocation for a backend.
func installCommand(b backend.Backend, specs []string) (string, []string) {
	switch b {
	case backend.Brew:
		return "brew", append([]string{"install"}, specs...)
	case backend.Mas:
		return "mas", append([]string{"install"}, specs...)
	case backend.Flatpak:
		return "flatpak", append([]string{"install", "-y"}, specs...)
	case backend.Snap:
		return "snap", append([]string{"install"}, specs...)
	case backend.Apt:
		return "apt-get", append([]string{"install", "-y"}, specs...)
	case backend.Dnf:
		return "dnf", append([]string{"install", "-y"}, specs...)
	case backend.Pacman:
		return "pacman", append([]string{"-S", "--noconfirm", "--needed"}, specs...)
	case backend.Pipx:
		return "pipx", append([]string{"install"}, specs...)
	default:
		return string(b), append([]string{"install"}, specs...)
	}
}

package engine

import (
	"fmt"

	"github.com/warpcode/zinstall/pkg/recipe"
)

// color is the three-state DFS marker: white = unvisited, gray = on the
// current recursion path, black = fully resolved.
type color uint8

const (
	white color = iota
	gray
	black
)

// stackResolver builds the merged, duplicate-free, dependency-ordered stack
// of recipe ids for one or more root targets.
type stackResolver struct {
	store  *recipe.Store
	colors map[string]color
	stack  []string
}

// ResolveStack resolves the given root targets into a single dependency
// stack. Every recipe appears after all of its dependencies and exactly
// once; shared dependencies across roots are merged first-seen-wins. A
// revisit of a gray node is a cycle and aborts with the offending path.
func ResolveStack(store *recipe.Store, targets ...string) ([]string, error) {
	r := &stackResolver{
		store:  store,
		colors: make(map[string]color),
	}

	for _, target := range targets {
		id, ok := store.Resolve(target)
		if !ok {
			return nil, NewPermanentError(
				fmt.Sprintf("target %q matches no recipe or provided command", target), nil).
				WithCode(CodeUnknownTarget)
		}
		if err := r.visit(id, nil); err != nil {
			return nil, err
		}
	}

	return r.stack, nil
}

// visit performs post-order DFS. path holds the gray chain leading to id,
// used to reconstruct cycles.
func (r *stackResolver) visit(id string, path []string) error {
	switch r.colors[id] {
	case black:
		// Already placed by an earlier root; first-seen-wins.
		return nil
	case gray:
		return NewPermanentError("dependency cycle detected", nil).
			WithCode(CodeCycleDetected).
			WithRecipe(id).
			WithPath(cycleFrom(path, id))
	}

	rec, ok := r.store.Get(id)
	if !ok {
		return NewPermanentError(
			fmt.Sprintf("recipe %q disappeared during resolution", id), nil).
			WithCode(CodeUnknownTarget).WithRecipe(id)
	}

	r.colors[id] = gray
	path = append(path, id)

	for _, dep := range rec.Depends {
		depID, ok := r.store.Resolve(dep)
		if !ok {
			return NewPermanentError(
				fmt.Sprintf("recipe %s depends on unknown target %q", id, dep), nil).
				WithCode(CodeUnknownTarget).WithRecipe(id)
		}
		if err := r.visit(depID, path); err != nil {
			return err
		}
	}

	r.colors[id] = black
	r.stack = append(r.stack, id)
	return nil
}

// cycleFrom trims the gray path to start at the repeated node and closes
// the loop, e.g. [p q] + p -> [p q p].
func cycleFrom(path []string, repeat string) []string {
	start := 0
	for i, id := range path {
		if id == repeat {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(path)-start+1)
	cycle = append(cycle, path[start:]...)
	return append(cycle, repeat)
}

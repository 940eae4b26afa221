package engine

import (
	"time"

	"github.com/warpcode/zinstall/pkg/backend"
)

// OutcomeStatus is the per-recipe result of an install request.
type OutcomeStatus string

const (
	// StatusInstalled means the recipe's backend invocation succeeded.
	StatusInstalled OutcomeStatus = "installed"

	// StatusAlreadyInstalled means a provided command was already on PATH
	// (or the recipe was satisfied earlier this session); nothing ran.
	StatusAlreadyInstalled OutcomeStatus = "already_installed"

	// StatusNoMethod means no backend is applicable on this platform; a
	// reported no-op, not a failure.
	StatusNoMethod OutcomeStatus = "no_applicable_method"

	// StatusFailed means the recipe's install (or a hook) failed.
	StatusFailed OutcomeStatus = "failed"
)

// Outcome is the result for one recipe.
type Outcome struct {
	RecipeID string          `json:"recipe_id"`
	Backend  backend.Backend `json:"backend,omitempty"`
	Status   OutcomeStatus   `json:"status"`
	Error    string          `json:"error,omitempty"`
}

// Report collects per-recipe outcomes for one install invocation.
type Report struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Outcomes  []Outcome `json:"outcomes"`
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Outcome returns the recorded outcome for a recipe id.
func (r *Report) Outcome(id string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.RecipeID == id {
			return o, true
		}
	}
	return Outcome{}, false
}

// Installed counts recipes actually installed this invocation.
func (r *Report) Installed() int {
	return r.count(StatusInstalled)
}

// Failed counts failed recipes.
func (r *Report) Failed() int {
	return r.count(StatusFailed)
}

func (r *Report) count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

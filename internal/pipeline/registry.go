package pipeline

import (
	"context"

	"gantry/internal/account"
	"gantry/internal/pool"
)

// StepFunc runs one automation stage against a leased browser session and
// reports the stage outcome. A non-nil error means the step could not run at
// all; a failure the step observed is reported through the outcome instead.
type StepFunc func(ctx context.Context, snapshot account.Snapshot, session *pool.Session) (account.Outcome, error)

// Registry is the immutable stage-to-step binding table built at startup.
type Registry struct {
	steps map[account.Stage]StepFunc
}

// NewRegistry validates that every pipeline stage has a step bound and
// returns the registry. A missing binding is a configuration error: failing
// here beats discovering it mid-pipeline.
func NewRegistry(bindings map[account.Stage]StepFunc) (*Registry, error) {
	steps := make(map[account.Stage]StepFunc, len(bindings))
	for stage, step := range bindings {
		steps[stage] = step
	}
	for _, stage := range account.AllStages() {
		if steps[stage] == nil {
			return nil, Wrap(ErrConfiguration, string(stage), "registry", "no step bound", nil)
		}
	}
	return &Registry{steps: steps}, nil
}

// Step returns the step bound to a stage.
func (r *Registry) Step(stage account.Stage) (StepFunc, bool) {
	step, ok := r.steps[stage]
	return step, ok
}

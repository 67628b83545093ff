package steps

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/calimero-network/merobox/pkg/models"
)

// RunWorkflowStep executes a child workflow from a file. Inputs seed the
// child's variables; declared outputs copy back into the parent's global
// scope after the child succeeds.
type RunWorkflowStep struct {
	base
	config runWorkflowConfig
}

type runWorkflowConfig struct {
	WorkflowPath     string         `config:"workflow_path" validate:"required"`
	Inputs           map[string]any `config:"inputs"`
	InheritVariables bool           `config:"inherit_variables"`
	OnFailure        onFailure      `config:"on_failure"`
}

type onFailure struct {
	Continue     bool           `config:"continue"`
	SetVariables map[string]any `config:"set_variables"`
}

func NewRunWorkflowStep(spec models.StepSpec, env *Env) (*RunWorkflowStep, error) {
	s := &RunWorkflowStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *RunWorkflowStep) Execute(ctx context.Context, state *State) error {
	if s.env.Children == nil {
		return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: fmt.Errorf("no child workflow runner available")}
	}

	maxNesting := s.env.MaxNesting
	if maxNesting <= 0 {
		maxNesting = DefaultMaxNesting
	}

	if s.env.Nesting >= maxNesting {
		return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: ErrMaxNestingDepth}
	}

	path, err := filepath.Abs(s.resolveString(state, s.config.WorkflowPath))
	if err != nil {
		return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
	}

	seed := models.DynamicValues{}
	if s.config.InheritVariables {
		for k, v := range state.Scope.Global {
			seed[k] = v
		}
	}

	for name, value := range s.config.Inputs {
		// Strings go through the resolver; other types keep their YAML type.
		if str, ok := value.(string); ok {
			seed[name] = s.env.Template.ResolveString(str, state.Results, state.Values, state.Scope)
		} else {
			seed[name] = value
		}
	}

	s.logger().Info("running child workflow", "path", path, "nesting", s.env.Nesting+1)

	outcome, err := s.env.Children.RunChild(ctx, path, seed, s.env.Nesting+1)
	if err != nil || outcome == nil || outcome.Report == nil || !outcome.Report.Success {
		if err == nil {
			err = fmt.Errorf("child workflow failed: %s", path)
		}

		if s.config.OnFailure.Continue {
			s.logger().Warn("child workflow failed, continuing", "path", path, "error", err)

			for name, value := range s.config.OnFailure.SetVariables {
				state.Scope.Global[name] = value
				state.Values[name] = value
			}

			return nil
		}

		return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
	}

	s.copyOutputs(state, outcome)

	return nil
}

// copyOutputs applies the outputs mapping (parent name to child name) from
// the finished child. Outputs always land in the parent's global scope.
func (s *RunWorkflowStep) copyOutputs(state *State, outcome *ChildOutcome) {
	rawOutputs, ok := s.spec.Config["outputs"].(map[string]any)
	if !ok {
		return
	}

	for parentName, rawChildName := range rawOutputs {
		childName, ok := rawChildName.(string)
		if !ok {
			s.logger().Warn("invalid output mapping, expected child variable name", "output", parentName)

			continue
		}

		value, found := outcome.Values[childName]
		if !found {
			s.logger().Warn("child variable not found", "variable", childName)

			continue
		}

		name := strings.TrimPrefix(parentName, "global:")
		state.Scope.Global[name] = value
		state.Values[name] = value

		s.logger().Debug("copied child output", "child", childName, "parent", name)
	}
}

// RunWorkflowsStep executes several child workflows, in parallel or
// sequentially. Each entry takes the same configuration as run_workflow.
type RunWorkflowsStep struct {
	base
	config  runWorkflowsConfig
	entries []*RunWorkflowStep
}

type runWorkflowsConfig struct {
	Workflows []map[string]any `config:"workflows" validate:"required,min=1"`
	Mode      string           `config:"mode"      validate:"omitempty,oneof=parallel sequential"`
	FailFast  *bool            `config:"fail_fast"`
}

func NewRunWorkflowsStep(spec models.StepSpec, env *Env) (*RunWorkflowsStep, error) {
	s := &RunWorkflowsStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	if s.config.Mode == "" {
		s.config.Mode = "parallel"
	}

	for i, raw := range s.config.Workflows {
		entrySpec := models.StepSpec{
			Type:   "run_workflow",
			Name:   fmt.Sprintf("%s [workflow %d]", spec.DisplayName(), i+1),
			Config: raw,
		}

		entry, err := NewRunWorkflowStep(entrySpec, env)
		if err != nil {
			return nil, err
		}

		s.entries = append(s.entries, entry)
	}

	return s, nil
}

func (s *RunWorkflowsStep) Execute(ctx context.Context, state *State) error {
	failFast := s.config.FailFast == nil || *s.config.FailFast

	s.logger().Info("running child workflows", "count", len(s.entries), "mode", s.config.Mode, "fail_fast", failFast)

	var successes, failures int

	if s.config.Mode == "sequential" {
		for _, entry := range s.entries {
			if err := entry.Execute(ctx, state); err != nil {
				failures++

				if failFast {
					s.exportCounts(state, successes, failures)

					return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
				}

				continue
			}

			successes++
		}
	} else {
		successes, failures = s.runParallel(ctx, state)

		if failFast && failures > 0 {
			s.exportCounts(state, successes, failures)

			return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: fmt.Errorf("%d of %d workflows failed", failures, len(s.entries))}
		}
	}

	s.exportCounts(state, successes, failures)

	return nil
}

// runParallel launches every child workflow on a branched state and merges
// the branches back in declaration order.
func (s *RunWorkflowsStep) runParallel(ctx context.Context, state *State) (successes, failures int) {
	type outcome struct {
		index  int
		branch *State
		err    error
	}

	resultCh := make(chan outcome, len(s.entries))

	for i, entry := range s.entries {
		branch := state.Branch()

		go func(i int, entry *RunWorkflowStep, branch *State) {
			resultCh <- outcome{index: i, branch: branch, err: entry.Execute(ctx, branch)}
		}(i, entry, branch)
	}

	branches := make([]*State, len(s.entries))

	for range s.entries {
		r := <-resultCh
		if r.err != nil {
			s.logger().Warn("child workflow failed", "index", r.index+1, "error", r.err)

			failures++

			continue
		}

		branches[r.index] = r.branch
		successes++
	}

	for _, branch := range branches {
		if branch == nil {
			continue
		}

		for k, v := range branch.Scope.Global {
			state.Scope.Global[k] = v
		}

		for k, v := range branch.Values {
			state.Values[k] = v
		}
	}

	return successes, failures
}

func (s *RunWorkflowsStep) exportCounts(state *State, successes, failures int) {
	for key, value := range map[string]int{
		"workflows_success_count": successes,
		"workflows_failure_count": failures,
		"workflows_total_count":   len(s.entries),
	} {
		state.Scope.Global[key] = value
		state.Values[key] = value
	}
}

var (
	_ Step = (*RunWorkflowStep)(nil)
	_ Step = (*RunWorkflowsStep)(nil)
)

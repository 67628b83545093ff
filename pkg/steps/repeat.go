package steps

import (
	"context"
	"fmt"

	"github.com/calimero-network/merobox/pkg/models"
)

// RepeatStep executes a list of nested steps a fixed number of times.
// Iteration counters live in the local scope and vanish when the iteration
// ends; nested steps may write through with local: and global: prefixes.
type RepeatStep struct {
	base
	config repeatConfig
	steps  []models.StepSpec
}

type repeatConfig struct {
	Count int              `config:"count" validate:"required,gt=0"`
	Steps []map[string]any `config:"steps" validate:"required,min=1"`
}

func NewRepeatStep(spec models.StepSpec, env *Env) (*RepeatStep, error) {
	s := &RepeatStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	for _, raw := range s.config.Steps {
		nested := specFromMap(raw)
		if nested.Type == "" {
			return nil, &ValidationError{Step: spec.DisplayName(), Field: "steps", Constraint: "nested step has no type"}
		}

		// Construct eagerly so bad nested configs fail before any
		// iteration runs.
		if _, err := New(nested, env); err != nil {
			return nil, err
		}

		s.steps = append(s.steps, nested)
	}

	return s, nil
}

func (s *RepeatStep) Execute(ctx context.Context, state *State) error {
	total := s.config.Count

	state.Scope.Global["total_iterations"] = total
	state.Scope.Global["step_count"] = len(s.steps)
	state.Values["total_iterations"] = total
	state.Values["step_count"] = len(s.steps)

	s.logger().Info("repeating nested steps", "count", total, "steps", len(s.steps))

	savedLocal := state.Scope.Local
	defer func() { state.Scope.Local = savedLocal }()

	for iteration := range total {
		state.Scope.Local = savedLocal.Copy()
		state.Scope.Local["iteration"] = iteration + 1
		state.Scope.Local["iteration_index"] = iteration
		state.Scope.Local["iteration_zero_based"] = iteration
		state.Scope.Local["iteration_one_based"] = iteration + 1

		for idx, nested := range s.steps {
			state.Scope.Local["current_step"] = nested.DisplayName()
			state.Scope.Local["current_step_index"] = idx + 1

			if err := s.runNested(ctx, state, nested, iteration+1); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *RepeatStep) runNested(ctx context.Context, state *State, nested models.StepSpec, iteration int) error {
	applyInlineVariables(s.env, state, nested)

	step, err := New(nested, s.env)
	if err != nil {
		return err
	}

	s.logger().Debug("running nested step", "step", nested.DisplayName(), "iteration", iteration)

	if err := step.Execute(ctx, state); err != nil {
		return fmt.Errorf("iteration %d: %w", iteration, err)
	}

	return nil
}

// applyInlineVariables processes a nested step's variables mapping before it
// runs, resolving each value against the current state.
func applyInlineVariables(env *Env, state *State, spec models.StepSpec) {
	raw, ok := spec.Config["variables"].(map[string]any)
	if !ok {
		return
	}

	for name, value := range raw {
		resolved := env.Template.Resolve(value, state.Results, state.Values, state.Scope)
		setValue(state, name, resolved)
	}
}

// specFromMap converts a raw nested step mapping into a StepSpec.
func specFromMap(raw map[string]any) models.StepSpec {
	spec := models.StepSpec{Config: make(map[string]any, len(raw))}

	for k, v := range raw {
		switch k {
		case "type":
			spec.Type, _ = v.(string)
		case "name":
			spec.Name, _ = v.(string)
		default:
			spec.Config[k] = v
		}
	}

	return spec
}

var _ Step = (*RepeatStep)(nil)

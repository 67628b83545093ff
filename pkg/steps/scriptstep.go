package steps

import (
	"context"
	"fmt"
	"os"

	"github.com/calimero-network/merobox/pkg/models"
	"github.com/calimero-network/merobox/pkg/script"
)

// ScriptStep runs a JavaScript snippet against the current run state. The
// script reads exported values through the global `vars` object and writes
// back with `setOutput(name, value)`; exports land in the dynamic values table
// subject to the usual scope prefixes.
type ScriptStep struct {
	base
	config scriptConfig
}

type scriptConfig struct {
	Script string `config:"script"`
	File   string `config:"file"`
}

func NewScriptStep(spec models.StepSpec, env *Env) (*ScriptStep, error) {
	s := &ScriptStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	if s.config.Script == "" && s.config.File == "" {
		return nil, &ValidationError{Step: spec.DisplayName(), Field: "script", Constraint: "either script or file must be set"}
	}

	return s, nil
}

func (s *ScriptStep) Execute(ctx context.Context, state *State) error {
	source := s.config.Script
	if source == "" {
		raw, err := os.ReadFile(s.config.File)
		if err != nil {
			return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: fmt.Errorf("read script: %w", err)}
		}

		source = string(raw)
	}

	engine := script.New()

	vars := make(map[string]any, len(state.Values))
	for k, v := range state.Values {
		vars[k] = v
	}

	for k, v := range state.Scope.Global {
		vars[k] = v
	}

	for k, v := range state.Scope.Local {
		vars[k] = v
	}

	if err := engine.SetVariable("vars", vars); err != nil {
		return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
	}

	s.logger().Info("running script")

	if err := engine.Run(ctx, source); err != nil {
		return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
	}

	for name, value := range engine.Exports() {
		setValue(state, name, value)
		s.logger().Debug("script exported value", "key", name)
	}

	return nil
}

var _ Step = (*ScriptStep)(nil)

package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/calimero-network/merobox/pkg/models"
)

// CallStep executes an application method in a context. The normalized
// response is archived under call_<node>_<method>; a JSON-RPC error in the
// response fails the step.
type CallStep struct {
	base
	config callConfig
}

type callConfig struct {
	Node       string `config:"node"       validate:"required"`
	ContextID  string `config:"context_id" validate:"required"`
	Method     string `config:"method"     validate:"required"`
	Args       any    `config:"args"`
	ExecutorID string `config:"executor_public_key" validate:"required"`
}

func NewCallStep(spec models.StepSpec, env *Env) (*CallStep, error) {
	s := &CallStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *CallStep) Execute(ctx context.Context, state *State) error {
	client, node, err := s.clientFor(ctx, state, s.config.Node)
	if err != nil {
		return s.fail(ctx, state, err)
	}

	contextID := s.resolveString(state, s.config.ContextID)
	method := s.resolveString(state, s.config.Method)
	executorID := s.resolveString(state, s.config.ExecutorID)

	args, err := s.encodeArgs(state)
	if err != nil {
		return s.fail(ctx, state, err)
	}

	s.logger().Info("calling method", "node", node.StableName, "context_id", contextID, "method", method)

	payload, err := client.Execute(ctx, contextID, method, args, executorID)
	if err != nil {
		return s.fail(ctx, state, fmt.Errorf("call %s: %w", method, err))
	}

	if err := failed(payload); err != nil {
		return s.fail(ctx, state, err)
	}

	nodeName := s.resolveString(state, s.config.Node)
	state.Results.Store(fmt.Sprintf("call_%s_%s", nodeName, method), payload)
	s.exportOutputs(state, payload, nodeName, nil)

	return nil
}

// encodeArgs renders placeholders inside the args value and serializes it.
// String args are treated as already-encoded JSON.
func (s *CallStep) encodeArgs(state *State) ([]byte, error) {
	if s.config.Args == nil {
		return []byte("{}"), nil
	}

	resolved := s.resolve(state, s.config.Args)
	if str, ok := resolved.(string); ok {
		return []byte(str), nil
	}

	encoded, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("encode call args: %w", err)
	}

	return encoded, nil
}

func (s *CallStep) fail(ctx context.Context, state *State, err error) error {
	s.dumpNodeLogs(ctx, state, s.config.Node)

	return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
}

var _ Step = (*CallStep)(nil)

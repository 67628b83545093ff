package steps

import (
	"context"
	"fmt"

	"github.com/calimero-network/merobox/pkg/models"
)

// CreateContextStep creates an application context on one node. The raw
// response is archived under context_<node>.
type CreateContextStep struct {
	base
	config createContextConfig
}

type createContextConfig struct {
	Node          string `config:"node"           validate:"required"`
	ApplicationID string `config:"application_id" validate:"required"`
	Protocol      string `config:"protocol"`
	Params        string `config:"params"`
}

func NewCreateContextStep(spec models.StepSpec, env *Env) (*CreateContextStep, error) {
	s := &CreateContextStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	if s.config.Protocol == "" {
		s.config.Protocol = "near"
	}

	return s, nil
}

func (s *CreateContextStep) Execute(ctx context.Context, state *State) error {
	client, node, err := s.clientFor(ctx, state, s.config.Node)
	if err != nil {
		return s.fail(ctx, state, err)
	}

	appID := s.resolveString(state, s.config.ApplicationID)
	params := s.resolveString(state, s.config.Params)

	s.logger().Info("creating context", "node", node.StableName, "application_id", appID, "protocol", s.config.Protocol)

	payload, err := client.CreateContext(ctx, appID, s.config.Protocol, []byte(params))
	if err != nil {
		return s.fail(ctx, state, fmt.Errorf("create context: %w", err))
	}

	if err := failed(payload); err != nil {
		return s.fail(ctx, state, err)
	}

	nodeName := s.resolveString(state, s.config.Node)
	state.Results.Store("context_"+nodeName, payload)
	s.exportOutputs(state, payload, nodeName, nil)

	return nil
}

func (s *CreateContextStep) fail(ctx context.Context, state *State, err error) error {
	s.dumpNodeLogs(ctx, state, s.config.Node)

	return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
}

var _ Step = (*CreateContextStep)(nil)

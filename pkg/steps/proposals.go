package steps

import (
	"context"
	"fmt"

	"github.com/calimero-network/merobox/pkg/models"
	"github.com/calimero-network/merobox/pkg/template"
)

// GetProposalStep fetches one governance proposal, archived under
// proposal_<node>.
type GetProposalStep struct {
	base
	config proposalConfig
}

type proposalConfig struct {
	Node       string `config:"node"        validate:"required"`
	ContextID  string `config:"context_id"  validate:"required"`
	ProposalID string `config:"proposal_id" validate:"required"`
}

func NewGetProposalStep(spec models.StepSpec, env *Env) (*GetProposalStep, error) {
	s := &GetProposalStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *GetProposalStep) Execute(ctx context.Context, state *State) error {
	client, node, err := s.clientFor(ctx, state, s.config.Node)
	if err != nil {
		return s.fail(ctx, state, err)
	}

	contextID := s.resolveString(state, s.config.ContextID)
	proposalID := s.resolveString(state, s.config.ProposalID)

	s.logger().Info("fetching proposal", "node", node.StableName, "context_id", contextID, "proposal_id", proposalID)

	payload, err := client.GetProposal(ctx, contextID, proposalID)
	if err != nil {
		return s.fail(ctx, state, fmt.Errorf("get proposal: %w", err))
	}

	if err := failed(payload); err != nil {
		return s.fail(ctx, state, err)
	}

	nodeName := s.resolveString(state, s.config.Node)
	state.Results.Store("proposal_"+nodeName, payload)
	s.exportOutputs(state, payload, nodeName, nil)

	return nil
}

func (s *GetProposalStep) fail(ctx context.Context, state *State, err error) error {
	s.dumpNodeLogs(ctx, state, s.config.Node)

	return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
}

// ListProposalsStep lists proposals in a context, archived under
// proposals_<node>.
type ListProposalsStep struct {
	base
	config listProposalsConfig
}

type listProposalsConfig struct {
	Node      string `config:"node"       validate:"required"`
	ContextID string `config:"context_id" validate:"required"`
	Args      string `config:"args"`
}

func NewListProposalsStep(spec models.StepSpec, env *Env) (*ListProposalsStep, error) {
	s := &ListProposalsStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *ListProposalsStep) Execute(ctx context.Context, state *State) error {
	client, node, err := s.clientFor(ctx, state, s.config.Node)
	if err != nil {
		return s.fail(ctx, state, err)
	}

	contextID := s.resolveString(state, s.config.ContextID)

	var args map[string]any
	if s.config.Args != "" {
		parsed := template.ParseLoose(s.resolveString(state, s.config.Args))
		if m, ok := parsed.(map[string]any); ok {
			args = m
		} else {
			return s.fail(ctx, state, fmt.Errorf("list proposals args must be a JSON object, got %T", parsed))
		}
	}

	s.logger().Info("listing proposals", "node", node.StableName, "context_id", contextID)

	payload, err := client.ListProposals(ctx, contextID, args)
	if err != nil {
		return s.fail(ctx, state, fmt.Errorf("list proposals: %w", err))
	}

	if err := failed(payload); err != nil {
		return s.fail(ctx, state, err)
	}

	nodeName := s.resolveString(state, s.config.Node)
	state.Results.Store("proposals_"+nodeName, payload)
	s.exportOutputs(state, payload, nodeName, nil)

	return nil
}

func (s *ListProposalsStep) fail(ctx context.Context, state *State, err error) error {
	s.dumpNodeLogs(ctx, state, s.config.Node)

	return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
}

// GetProposalApproversStep lists the identities that approved a proposal,
// archived under proposal_approvers_<node>.
type GetProposalApproversStep struct {
	base
	config proposalConfig
}

func NewGetProposalApproversStep(spec models.StepSpec, env *Env) (*GetProposalApproversStep, error) {
	s := &GetProposalApproversStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *GetProposalApproversStep) Execute(ctx context.Context, state *State) error {
	client, node, err := s.clientFor(ctx, state, s.config.Node)
	if err != nil {
		return s.fail(ctx, state, err)
	}

	contextID := s.resolveString(state, s.config.ContextID)
	proposalID := s.resolveString(state, s.config.ProposalID)

	s.logger().Info("fetching proposal approvers", "node", node.StableName, "context_id", contextID, "proposal_id", proposalID)

	payload, err := client.GetProposalApprovers(ctx, contextID, proposalID)
	if err != nil {
		return s.fail(ctx, state, fmt.Errorf("get proposal approvers: %w", err))
	}

	if err := failed(payload); err != nil {
		return s.fail(ctx, state, err)
	}

	nodeName := s.resolveString(state, s.config.Node)
	state.Results.Store("proposal_approvers_"+nodeName, payload)
	s.exportOutputs(state, payload, nodeName, nil)

	return nil
}

func (s *GetProposalApproversStep) fail(ctx context.Context, state *State, err error) error {
	s.dumpNodeLogs(ctx, state, s.config.Node)

	return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
}

var (
	_ Step = (*GetProposalStep)(nil)
	_ Step = (*ListProposalsStep)(nil)
	_ Step = (*GetProposalApproversStep)(nil)
)

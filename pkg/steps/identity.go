package steps

import (
	"context"
	"fmt"

	"github.com/calimero-network/merobox/pkg/models"
)

// CreateIdentityStep generates a fresh identity keypair on one node,
// archived under identity_<node>.
type CreateIdentityStep struct {
	base
	config createIdentityConfig
}

type createIdentityConfig struct {
	Node string `config:"node" validate:"required"`
}

func NewCreateIdentityStep(spec models.StepSpec, env *Env) (*CreateIdentityStep, error) {
	s := &CreateIdentityStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *CreateIdentityStep) Execute(ctx context.Context, state *State) error {
	client, node, err := s.clientFor(ctx, state, s.config.Node)
	if err != nil {
		return s.fail(ctx, state, err)
	}

	s.logger().Info("creating identity", "node", node.StableName)

	payload, err := client.CreateIdentity(ctx)
	if err != nil {
		return s.fail(ctx, state, fmt.Errorf("create identity: %w", err))
	}

	if err := failed(payload); err != nil {
		return s.fail(ctx, state, err)
	}

	nodeName := s.resolveString(state, s.config.Node)
	state.Results.Store("identity_"+nodeName, payload)
	s.exportOutputs(state, payload, nodeName, nil)

	return nil
}

func (s *CreateIdentityStep) fail(ctx context.Context, state *State, err error) error {
	s.dumpNodeLogs(ctx, state, s.config.Node)

	return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
}

// InviteIdentityStep invites a grantee identity into a context. The raw
// invitation is archived under invite_<node>_<granteeID> so the
// invite.<node>_identity.<grantee> placeholder can find it.
type InviteIdentityStep struct {
	base
	config inviteIdentityConfig
}

type inviteIdentityConfig struct {
	Node      string `config:"node"       validate:"required"`
	ContextID string `config:"context_id" validate:"required"`
	GranterID string `config:"granter_id" validate:"required"`
	GranteeID string `config:"grantee_id" validate:"required"`
}

func NewInviteIdentityStep(spec models.StepSpec, env *Env) (*InviteIdentityStep, error) {
	s := &InviteIdentityStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *InviteIdentityStep) Execute(ctx context.Context, state *State) error {
	client, node, err := s.clientFor(ctx, state, s.config.Node)
	if err != nil {
		return s.fail(ctx, state, err)
	}

	contextID := s.resolveString(state, s.config.ContextID)
	granterID := s.resolveString(state, s.config.GranterID)
	granteeID := s.resolveString(state, s.config.GranteeID)

	s.logger().Info("inviting identity", "node", node.StableName, "context_id", contextID, "grantee_id", granteeID)

	payload, err := client.InviteIdentity(ctx, contextID, granterID, granteeID)
	if err != nil {
		return s.fail(ctx, state, fmt.Errorf("invite identity: %w", err))
	}

	if err := failed(payload); err != nil {
		return s.fail(ctx, state, err)
	}

	nodeName := s.resolveString(state, s.config.Node)
	state.Results.Store(fmt.Sprintf("invite_%s_%s", nodeName, granteeID), payload)
	s.exportOutputs(state, payload, nodeName, nil)

	return nil
}

func (s *InviteIdentityStep) fail(ctx context.Context, state *State, err error) error {
	s.dumpNodeLogs(ctx, state, s.config.Node)

	return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
}

var (
	_ Step = (*CreateIdentityStep)(nil)
	_ Step = (*InviteIdentityStep)(nil)
)

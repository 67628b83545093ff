package steps

import (
	"context"
	"fmt"

	"github.com/calimero-network/merobox/pkg/models"
)

// JoinContextStep redeems an invitation on the invitee's node, archived
// under join_<node>_<inviteeID>.
type JoinContextStep struct {
	base
	config joinContextConfig
}

type joinContextConfig struct {
	Node       string `config:"node"       validate:"required"`
	InviteeID  string `config:"invitee_id" validate:"required"`
	Invitation string `config:"invitation" validate:"required"`
}

func NewJoinContextStep(spec models.StepSpec, env *Env) (*JoinContextStep, error) {
	s := &JoinContextStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *JoinContextStep) Execute(ctx context.Context, state *State) error {
	client, node, err := s.clientFor(ctx, state, s.config.Node)
	if err != nil {
		return s.fail(ctx, state, err)
	}

	inviteeID := s.resolveString(state, s.config.InviteeID)
	invitation := s.resolveString(state, s.config.Invitation)

	s.logger().Info("joining context", "node", node.StableName, "invitee_id", inviteeID)

	payload, err := client.JoinContext(ctx, inviteeID, invitation)
	if err != nil {
		return s.fail(ctx, state, fmt.Errorf("join context: %w", err))
	}

	if err := failed(payload); err != nil {
		return s.fail(ctx, state, err)
	}

	nodeName := s.resolveString(state, s.config.Node)
	state.Results.Store(fmt.Sprintf("join_%s_%s", nodeName, inviteeID), payload)
	s.exportOutputs(state, payload, nodeName, nil)

	return nil
}

func (s *JoinContextStep) fail(ctx context.Context, state *State, err error) error {
	s.dumpNodeLogs(ctx, state, s.config.Node)

	return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
}

// InviteOpenStep creates an open invitation anyone can redeem, archived
// under invite_open_<node>_<contextID>.
type InviteOpenStep struct {
	base
	config inviteOpenConfig
}

type inviteOpenConfig struct {
	Node      string `config:"node"       validate:"required"`
	ContextID string `config:"context_id" validate:"required"`
	GranterID string `config:"granter_id" validate:"required"`
}

func NewInviteOpenStep(spec models.StepSpec, env *Env) (*InviteOpenStep, error) {
	s := &InviteOpenStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *InviteOpenStep) Execute(ctx context.Context, state *State) error {
	client, node, err := s.clientFor(ctx, state, s.config.Node)
	if err != nil {
		return s.fail(ctx, state, err)
	}

	contextID := s.resolveString(state, s.config.ContextID)
	granterID := s.resolveString(state, s.config.GranterID)

	s.logger().Info("creating open invitation", "node", node.StableName, "context_id", contextID)

	payload, err := client.InviteToContextOpen(ctx, contextID, granterID)
	if err != nil {
		return s.fail(ctx, state, fmt.Errorf("invite open: %w", err))
	}

	if err := failed(payload); err != nil {
		return s.fail(ctx, state, err)
	}

	nodeName := s.resolveString(state, s.config.Node)
	state.Results.Store(fmt.Sprintf("invite_open_%s_%s", nodeName, contextID), payload)
	s.exportOutputs(state, payload, nodeName, nil)

	return nil
}

func (s *InviteOpenStep) fail(ctx context.Context, state *State, err error) error {
	s.dumpNodeLogs(ctx, state, s.config.Node)

	return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
}

// JoinOpenStep redeems an open invitation, archived under
// join_open_<node>_<inviteeID>.
type JoinOpenStep struct {
	base
	config joinOpenConfig
}

type joinOpenConfig struct {
	Node       string `config:"node"       validate:"required"`
	ContextID  string `config:"context_id" validate:"required"`
	InviteeID  string `config:"invitee_id" validate:"required"`
	Invitation string `config:"invitation" validate:"required"`
}

func NewJoinOpenStep(spec models.StepSpec, env *Env) (*JoinOpenStep, error) {
	s := &JoinOpenStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *JoinOpenStep) Execute(ctx context.Context, state *State) error {
	client, node, err := s.clientFor(ctx, state, s.config.Node)
	if err != nil {
		return s.fail(ctx, state, err)
	}

	contextID := s.resolveString(state, s.config.ContextID)
	inviteeID := s.resolveString(state, s.config.InviteeID)
	invitation := s.resolveString(state, s.config.Invitation)

	s.logger().Info("joining context via open invitation", "node", node.StableName, "context_id", contextID)

	payload, err := client.JoinContextOpen(ctx, contextID, inviteeID, invitation)
	if err != nil {
		return s.fail(ctx, state, fmt.Errorf("join open: %w", err))
	}

	if err := failed(payload); err != nil {
		return s.fail(ctx, state, err)
	}

	nodeName := s.resolveString(state, s.config.Node)
	state.Results.Store(fmt.Sprintf("join_open_%s_%s", nodeName, inviteeID), payload)
	s.exportOutputs(state, payload, nodeName, nil)

	return nil
}

func (s *JoinOpenStep) fail(ctx context.Context, state *State, err error) error {
	s.dumpNodeLogs(ctx, state, s.config.Node)

	return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
}

var (
	_ Step = (*JoinContextStep)(nil)
	_ Step = (*InviteOpenStep)(nil)
	_ Step = (*JoinOpenStep)(nil)
)

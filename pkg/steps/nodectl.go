package steps

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/calimero-network/merobox/pkg/models"
)

// StartNodeStep provisions and starts nodes mid-workflow, using the
// workflow's node defaults for image, chain, and port assignment.
type StartNodeStep struct {
	base
	config startNodeConfig
}

type startNodeConfig struct {
	Nodes        []string `config:"nodes" validate:"required,min=1"`
	WaitForReady *bool    `config:"wait_for_ready"`
	WaitTimeout  int      `config:"wait_timeout" validate:"omitempty,gt=0"`
}

func NewStartNodeStep(spec models.StepSpec, env *Env) (*StartNodeStep, error) {
	s := &StartNodeStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	if s.config.WaitTimeout == 0 {
		s.config.WaitTimeout = 60
	}

	return s, nil
}

func (s *StartNodeStep) Execute(ctx context.Context, state *State) error {
	if s.env.Runtime == nil {
		return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: fmt.Errorf("no node runtime available")}
	}

	known := s.env.Defaults.NodeNames()

	for _, ref := range s.config.Nodes {
		name := s.resolveString(state, ref)

		index := slices.Index(known, name)
		if index < 0 {
			index = len(known)
		}

		s.logger().Info("starting node", "node", name)

		if err := s.env.Runtime.Provision(ctx, s.env.Defaults.NodeSpec(index, name)); err != nil {
			return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: fmt.Errorf("start node %s: %w", name, err)}
		}

		if s.config.WaitForReady == nil || *s.config.WaitForReady {
			if err := s.awaitReady(ctx, name); err != nil {
				return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
			}
		}
	}

	return nil
}

func (s *StartNodeStep) awaitReady(ctx context.Context, name string) error {
	deadline, cancel := context.WithTimeout(ctx, time.Duration(s.config.WaitTimeout)*time.Second)
	defer cancel()

	policy := backoff.WithContext(backoff.NewConstantBackOff(time.Second), deadline)

	err := backoff.Retry(func() error {
		return s.env.Runtime.VerifyAdminReachable(deadline, name)
	}, policy)
	if err != nil {
		return fmt.Errorf("node %s not ready after %ds: %w", name, s.config.WaitTimeout, err)
	}

	s.logger().Info("node ready", "node", name)

	return nil
}

// StopNodeStep stops nodes mid-workflow, for failure-recovery scenarios.
type StopNodeStep struct {
	base
	config stopNodeConfig
}

type stopNodeConfig struct {
	Nodes []string `config:"nodes" validate:"required,min=1"`
}

func NewStopNodeStep(spec models.StepSpec, env *Env) (*StopNodeStep, error) {
	s := &StopNodeStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *StopNodeStep) Execute(ctx context.Context, state *State) error {
	if s.env.Runtime == nil {
		return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: fmt.Errorf("no node runtime available")}
	}

	for _, ref := range s.config.Nodes {
		name := s.resolveString(state, ref)

		s.logger().Info("stopping node", "node", name)

		if err := s.env.Runtime.Stop(ctx, name); err != nil {
			return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: fmt.Errorf("stop node %s: %w", name, err)}
		}
	}

	return nil
}

var (
	_ Step = (*StartNodeStep)(nil)
	_ Step = (*StopNodeStep)(nil)
)

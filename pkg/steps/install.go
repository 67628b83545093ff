package steps

import (
	"context"
	"fmt"

	"github.com/calimero-network/merobox/pkg/models"
)

// InstallStep installs a WASM application on one node, from a local path or
// a URL. The raw response is archived under install_<node>.
type InstallStep struct {
	base
	config installConfig
}

type installConfig struct {
	Node     string `config:"node" validate:"required"`
	Path     string `config:"path"`
	URL      string `config:"url"`
	Metadata string `config:"metadata"`
}

func NewInstallStep(spec models.StepSpec, env *Env) (*InstallStep, error) {
	s := &InstallStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	if s.config.Path == "" && s.config.URL == "" {
		return nil, &ValidationError{Step: spec.DisplayName(), Field: "path", Constraint: "either path or url must be set"}
	}

	return s, nil
}

func (s *InstallStep) Execute(ctx context.Context, state *State) error {
	client, node, err := s.clientFor(ctx, state, s.config.Node)
	if err != nil {
		return s.fail(ctx, state, err)
	}

	path := s.resolveString(state, s.config.Path)
	url := s.resolveString(state, s.config.URL)

	s.logger().Info("installing application", "node", node.StableName, "path", path, "url", url)

	payload, err := client.InstallApplication(ctx, path, url, []byte(s.config.Metadata))
	if err != nil {
		return s.fail(ctx, state, fmt.Errorf("install application: %w", err))
	}

	if err := failed(payload); err != nil {
		return s.fail(ctx, state, err)
	}

	nodeName := s.resolveString(state, s.config.Node)
	state.Results.Store("install_"+nodeName, payload)
	s.exportOutputs(state, payload, nodeName, nil)

	return nil
}

func (s *InstallStep) fail(ctx context.Context, state *State, err error) error {
	s.dumpNodeLogs(ctx, state, s.config.Node)

	return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: err}
}

var _ Step = (*InstallStep)(nil)

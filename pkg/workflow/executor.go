// Package workflow drives the execution of one workflow document: node
// provisioning, readiness, the sequential step loop, and teardown.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/calimero-network/merobox/pkg/config"
	"github.com/calimero-network/merobox/pkg/log"
	"github.com/calimero-network/merobox/pkg/models"
	"github.com/calimero-network/merobox/pkg/protocol"
	"github.com/calimero-network/merobox/pkg/steps"
	"github.com/calimero-network/merobox/pkg/template"
)

// DefaultWaitTimeout is the per-node readiness budget, in seconds.
const DefaultWaitTimeout = 60

// DefaultWorkflowTimeout bounds child workflow runs, in seconds.
const DefaultWorkflowTimeout = 3600

// Executor runs workflows against a node runtime and resolver. One Executor
// may run many workflows; all per-run state lives on the stack of Execute.
type Executor struct {
	runtime    protocol.NodeRuntime
	resolver   protocol.NodeResolver
	clients    protocol.ClientFactory
	maxNesting int
	logger     *slog.Logger
}

func NewExecutor(runtime protocol.NodeRuntime, resolver protocol.NodeResolver, clients protocol.ClientFactory) *Executor {
	return &Executor{
		runtime:    runtime,
		resolver:   resolver,
		clients:    clients,
		maxNesting: steps.DefaultMaxNesting,
		logger:     log.WithModule("executor"),
	}
}

// WithMaxNesting overrides the child workflow depth limit.
func (e *Executor) WithMaxNesting(depth int) *Executor {
	e.maxNesting = depth

	return e
}

// Execute runs one workflow to completion and returns its report. The
// report is non-nil even on failure so callers can inspect captured values.
func (e *Executor) Execute(ctx context.Context, def *models.Workflow) (*models.Report, error) {
	return e.run(ctx, def, nil, 0)
}

// RunChild loads and runs a nested workflow. It implements the child-runner
// contract consumed by run_workflow steps.
func (e *Executor) RunChild(ctx context.Context, path string, seed models.DynamicValues, nesting int) (*steps.ChildOutcome, error) {
	def, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	timeout := def.WorkflowTimeout
	if timeout <= 0 {
		timeout = DefaultWorkflowTimeout
	}

	childCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	report, err := e.run(childCtx, def, seed, nesting)
	if err != nil {
		return &steps.ChildOutcome{Report: report, Values: capturedOf(report)}, err
	}

	return &steps.ChildOutcome{Report: report, Values: report.CapturedValues}, nil
}

func (e *Executor) run(ctx context.Context, def *models.Workflow, seed models.DynamicValues, nesting int) (*models.Report, error) {
	runID := uuid.NewString()
	logger := e.logger.With("workflow", def.Name, "run_id", runID)

	logger.Info("starting workflow", "steps", len(def.Steps), "nesting", nesting)

	state := steps.NewState()
	for k, v := range def.Variables {
		state.Values[k] = v
	}

	for k, v := range seed {
		state.Values[k] = v
		state.Scope.Global[k] = v
	}

	report := &models.Report{
		Nodes:          def.Nodes.NodeNames(),
		Endpoints:      map[string]string{},
		CapturedValues: state.Values,
	}

	env := &steps.Env{
		Runtime:    e.runtime,
		Resolver:   e.resolver,
		Clients:    e.clients,
		Children:   e,
		Template:   template.NewResolver(),
		Logger:     logger,
		Nesting:    nesting,
		MaxNesting: e.maxNesting,
		Defaults:   def.Nodes,
	}

	// Construct every step up front so an invalid config aborts the run
	// before any node is provisioned.
	built, err := e.buildSteps(def, env)
	if err != nil {
		return report, err
	}

	if err := e.prepareNodes(ctx, def, logger); err != nil {
		return report, err
	}

	runErr := e.runSteps(ctx, def, built, state, logger)

	// Exports written with the global: prefix live only in the workflow
	// scope; captured values must carry both stores so reports and parent
	// workflows see them.
	for k, v := range state.Scope.Global {
		state.Values[k] = v
	}

	if def.StopAllNodes && e.runtime != nil {
		if err := e.runtime.StopAll(ctx); err != nil {
			logger.Warn("failed to stop nodes after run", "error", err)
		}
	}

	e.collectEndpoints(ctx, report)

	if runErr != nil {
		logger.Error("workflow failed", "error", runErr)

		return report, runErr
	}

	report.Success = true
	logger.Info("workflow completed")

	return report, nil
}

// prepareNodes brings the workflow's local fleet up: optional image pull,
// optional restart, provisioning, and the readiness wait.
func (e *Executor) prepareNodes(ctx context.Context, def *models.Workflow, logger *slog.Logger) error {
	names := def.Nodes.NodeNames()
	if e.runtime == nil || len(names) == 0 {
		return nil
	}

	if def.ForcePullImage && def.Nodes.Image != "" {
		logger.Info("pulling node image", "image", def.Nodes.Image)

		if err := e.runtime.ForcePull(ctx, def.Nodes.Image); err != nil {
			return fmt.Errorf("pull image %s: %w", def.Nodes.Image, err)
		}
	}

	if def.Restart {
		for _, name := range names {
			if err := e.runtime.Stop(ctx, name); err != nil {
				return fmt.Errorf("restart node %s: %w", name, err)
			}
		}
	}

	for i, name := range names {
		logger.Info("provisioning node", "node", name)

		if err := e.runtime.Provision(ctx, def.Nodes.NodeSpec(i, name)); err != nil {
			return fmt.Errorf("provision node %s: %w", name, err)
		}
	}

	waitTimeout := def.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}

	for _, name := range names {
		if err := e.awaitReady(ctx, name, waitTimeout); err != nil {
			return err
		}

		logger.Info("node ready", "node", name)
	}

	return nil
}

// awaitReady polls the node's admin API at a constant interval until it
// answers or the budget runs out.
func (e *Executor) awaitReady(ctx context.Context, name string, timeoutSeconds int) error {
	deadline, cancel := context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
	defer cancel()

	policy := backoff.WithContext(backoff.NewConstantBackOff(time.Second), deadline)

	err := backoff.Retry(func() error {
		return e.runtime.VerifyAdminReachable(deadline, name)
	}, policy)
	if err != nil {
		return fmt.Errorf("node %s not ready after %ds: %w", name, timeoutSeconds, err)
	}

	return nil
}

func (e *Executor) buildSteps(def *models.Workflow, env *steps.Env) ([]steps.Step, error) {
	built := make([]steps.Step, 0, len(def.Steps))

	for _, spec := range def.Steps {
		step, err := steps.New(spec, env)
		if err != nil {
			return nil, err
		}

		built = append(built, step)
	}

	return built, nil
}

func (e *Executor) runSteps(ctx context.Context, def *models.Workflow, built []steps.Step, state *steps.State, logger *slog.Logger) error {
	for i, step := range built {
		spec := def.Steps[i]

		logger.Info("executing step", "index", i+1, "step", spec.DisplayName(), "type", spec.Type)

		if err := step.Execute(ctx, state); err != nil {
			return err
		}
	}

	return nil
}

func (e *Executor) collectEndpoints(ctx context.Context, report *models.Report) {
	if e.runtime == nil {
		return
	}

	for _, name := range report.Nodes {
		endpoint, err := e.runtime.RPCEndpoint(ctx, name)
		if err != nil {
			continue
		}

		report.Endpoints[name] = endpoint
	}
}

func capturedOf(report *models.Report) models.DynamicValues {
	if report == nil {
		return models.DynamicValues{}
	}

	return report.CapturedValues
}

var _ steps.ChildRunner = (*Executor)(nil)

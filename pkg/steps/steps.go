// Package steps implements the workflow step catalogue. Each step type is a
// small struct built from its raw YAML config, validated at construction,
// and executed against the shared run state.
package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/calimero-network/merobox/pkg/models"
	"github.com/calimero-network/merobox/pkg/protocol"
	"github.com/calimero-network/merobox/pkg/template"
)

// Step is one executable unit of a workflow. Execute mutates the run state
// it is handed; a returned error fails the workflow unless a composite step
// decides otherwise.
type Step interface {
	Name() string
	Kind() string
	Execute(ctx context.Context, state *State) error
}

// State is the mutable run state owned by one workflow execution. Parallel
// branches receive copies and the parent merges them back.
type State struct {
	Results models.WorkflowResults
	Values  models.DynamicValues
	Scope   *models.Scope
}

func NewState() *State {
	return &State{
		Results: models.WorkflowResults{},
		Values:  models.DynamicValues{},
		Scope:   models.NewScope(),
	}
}

// Branch returns an independent state for a concurrently-running branch.
// The scope is shared structurally but its maps are copied so branch-local
// writes stay invisible until merged.
func (s *State) Branch() *State {
	return &State{
		Results: s.Results.Copy(),
		Values:  s.Values.Copy(),
		Scope: &models.Scope{
			Global: s.Scope.Global.Copy(),
			Local:  s.Scope.Local.Copy(),
		},
	}
}

// ChildOutcome is what a nested workflow run hands back to the step that
// launched it.
type ChildOutcome struct {
	Report *models.Report
	Values models.DynamicValues
}

// ChildRunner launches a nested workflow from a file path. Implemented by
// the workflow executor; declared here so steps never import it.
type ChildRunner interface {
	RunChild(ctx context.Context, path string, seed models.DynamicValues, nesting int) (*ChildOutcome, error)
}

// Env carries the collaborators every step may need. It is built once per
// workflow run and shared by all steps of that run.
type Env struct {
	Runtime  protocol.NodeRuntime
	Resolver protocol.NodeResolver
	Clients  protocol.ClientFactory
	Children ChildRunner
	Template *template.Resolver
	Logger   *slog.Logger

	// Nesting is the current workflow nesting depth, zero for the root.
	Nesting    int
	MaxNesting int

	// Defaults are the node provisioning defaults of the current workflow,
	// used by start_node when the step omits them.
	Defaults models.NodesSpec
}

// DefaultMaxNesting bounds run_workflow recursion.
const DefaultMaxNesting = 5

// ErrMaxNestingDepth fails a run_workflow step that would exceed the
// configured nesting limit.
var ErrMaxNestingDepth = errors.New("maximum workflow nesting depth exceeded")

// ValidationError reports a step config that failed construction-time
// validation.
type ValidationError struct {
	Step       string
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("step %q: %s", e.Step, e.Constraint)
	}

	return fmt.Sprintf("step %q: field %q %s", e.Step, e.Field, e.Constraint)
}

// ExecutionError wraps a failure that happened while a step ran.
type ExecutionError struct {
	Step string
	Kind string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("step %q (%s) failed: %v", e.Step, e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

var validate = validator.New()

// decodeConfig decodes a raw step config into a typed config struct and
// applies its validate tags. Unknown keys are tolerated; outputs and other
// shared keys live beside the typed fields.
func decodeConfig(spec models.StepSpec, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "config",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("step %q: %w", spec.DisplayName(), err)
	}

	if err := dec.Decode(spec.Config); err != nil {
		return &ValidationError{Step: spec.DisplayName(), Constraint: err.Error()}
	}

	if err := validate.Struct(out); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return &ValidationError{
				Step:       spec.DisplayName(),
				Field:      fieldErrs[0].Field(),
				Constraint: "failed constraint " + fieldErrs[0].Tag(),
			}
		}

		return &ValidationError{Step: spec.DisplayName(), Constraint: err.Error()}
	}

	return nil
}

// base carries what every concrete step shares.
type base struct {
	spec models.StepSpec
	env  *Env
}

func (b *base) Name() string {
	return b.spec.DisplayName()
}

func (b *base) Kind() string {
	return b.spec.Type
}

func (b *base) logger() *slog.Logger {
	return b.env.Logger.With("step", b.spec.DisplayName(), "type", b.spec.Type)
}

// resolve renders placeholders in an arbitrary config value against the
// current state.
func (b *base) resolve(state *State, v any) any {
	return b.env.Template.Resolve(v, state.Results, state.Values, state.Scope)
}

// resolveString renders placeholders and stringifies the outcome.
func (b *base) resolveString(state *State, s string) string {
	return fmt.Sprintf("%v", b.env.Template.ResolveString(s, state.Results, state.Values, state.Scope))
}

// clientFor resolves a node reference and returns a client plus the
// resolved node, for steps that talk to a node's admin API.
func (b *base) clientFor(ctx context.Context, state *State, nodeRef string) (protocol.Client, protocol.ResolvedNode, error) {
	ref := b.resolveString(state, nodeRef)

	node, err := b.env.Resolver.Resolve(ctx, ref)
	if err != nil {
		return nil, protocol.ResolvedNode{}, fmt.Errorf("resolve node %q: %w", ref, err)
	}

	return b.env.Clients.ClientFor(node), node, nil
}

// failed reports whether a normalized response payload carries a node-side
// error. A payload with an "error" member fails the step.
func failed(payload map[string]any) error {
	if payload == nil {
		return nil
	}

	errVal, ok := payload["error"]
	if !ok || errVal == nil {
		return nil
	}

	if m, ok := errVal.(map[string]any); ok {
		return fmt.Errorf("node error: %v: %v", m["type"], m["data"])
	}

	return fmt.Errorf("node error: %v", errVal)
}

// dumpNodeLogs prints recent node output when a step against a local node
// fails. Failures here never mask the step error.
func (b *base) dumpNodeLogs(ctx context.Context, state *State, nodeRef string) {
	if nodeRef == "" || b.env.Runtime == nil {
		return
	}

	name := b.resolveString(state, nodeRef)
	if b.env.Resolver != nil && b.env.Resolver.IsRemote(name) {
		return
	}

	logs, err := b.env.Runtime.Logs(ctx, name, 50)
	if err != nil || logs == "" {
		return
	}

	b.logger().Info("recent node logs", "node", name, "logs", logs)
}

package steps

import (
	"fmt"

	"github.com/calimero-network/merobox/pkg/models"
)

// New constructs the step for a spec's type tag. The catalogue is a closed
// set: adding a step type means adding a case here, and an unknown tag is a
// validation error rather than a lookup miss.
func New(spec models.StepSpec, env *Env) (Step, error) {
	switch spec.Type {
	case "install_application":
		return NewInstallStep(spec, env)
	case "create_context":
		return NewCreateContextStep(spec, env)
	case "create_identity":
		return NewCreateIdentityStep(spec, env)
	case "invite_identity":
		return NewInviteIdentityStep(spec, env)
	case "join_context":
		return NewJoinContextStep(spec, env)
	case "invite_open":
		return NewInviteOpenStep(spec, env)
	case "join_open":
		return NewJoinOpenStep(spec, env)
	case "call":
		return NewCallStep(spec, env)
	case "wait":
		return NewWaitStep(spec, env)
	case "repeat":
		return NewRepeatStep(spec, env)
	case "parallel":
		return NewParallelStep(spec, env)
	case "script":
		return NewScriptStep(spec, env)
	case "assert":
		return NewAssertStep(spec, env)
	case "json_assert":
		return NewJSONAssertStep(spec, env)
	case "get_proposal":
		return NewGetProposalStep(spec, env)
	case "list_proposals":
		return NewListProposalsStep(spec, env)
	case "get_proposal_approvers":
		return NewGetProposalApproversStep(spec, env)
	case "run_workflow":
		return NewRunWorkflowStep(spec, env)
	case "run_workflows":
		return NewRunWorkflowsStep(spec, env)
	case "start_node":
		return NewStartNodeStep(spec, env)
	case "stop_node":
		return NewStopNodeStep(spec, env)
	default:
		return nil, &ValidationError{
			Step:       spec.DisplayName(),
			Field:      "type",
			Constraint: fmt.Sprintf("unknown step type %q", spec.Type),
		}
	}
}

// Types lists every step type the catalogue accepts, for validation output.
func Types() []string {
	return []string{
		"install_application", "create_context", "create_identity",
		"invite_identity", "join_context", "invite_open", "join_open",
		"call", "wait", "repeat", "parallel", "script", "assert",
		"json_assert", "get_proposal", "list_proposals",
		"get_proposal_approvers", "run_workflow", "run_workflows",
		"start_node", "stop_node",
	}
}

package steps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/calimero-network/merobox/pkg/models"
)

// Failure modes for parallel group execution.
const (
	FailFast        = "fail-fast"
	FailSlow        = "fail-slow"
	ContinueOnError = "continue-on-error"
)

// ParallelStep runs groups of nested steps concurrently, one goroutine per
// group. Each group works on a branched copy of the run state; the parent
// merges branches back in group-index order once every group has reported,
// so duplicate exports resolve deterministically (last group wins).
type ParallelStep struct {
	base
	config parallelConfig
	groups []parallelGroup
}

type parallelConfig struct {
	Groups      []map[string]any `config:"groups" validate:"required,min=1"`
	Mode        string           `config:"mode"`
	FailureMode string           `config:"failure_mode" validate:"omitempty,oneof=fail-fast fail-slow continue-on-error"`
}

type parallelGroup struct {
	Index int
	Name  string
	Count int
	Steps []models.StepSpec
}

// GroupResult is the outcome of one group. Cancelled marks groups stopped
// by fail-fast before finishing; they count as failures but are reported
// separately.
type GroupResult struct {
	Index     int
	Name      string
	Success   bool
	Cancelled bool
	Duration  time.Duration
	Err       error

	branch *State
}

func (r GroupResult) displayName() string {
	if r.Name != "" {
		return r.Name
	}

	return fmt.Sprintf("group %d", r.Index+1)
}

func NewParallelStep(spec models.StepSpec, env *Env) (*ParallelStep, error) {
	s := &ParallelStep{base: base{spec: spec, env: env}}
	if err := decodeConfig(spec, &s.config); err != nil {
		return nil, err
	}

	if s.config.FailureMode == "" {
		s.config.FailureMode = FailSlow
	}

	for i, raw := range s.config.Groups {
		group := parallelGroup{Index: i, Count: 1}

		if name, ok := raw["name"].(string); ok {
			group.Name = name
		}

		if count, ok := raw["count"].(int); ok && count > 0 {
			group.Count = count
		}

		rawSteps, ok := raw["steps"].([]any)
		if !ok || len(rawSteps) == 0 {
			return nil, &ValidationError{Step: spec.DisplayName(), Field: "groups", Constraint: fmt.Sprintf("group %d has no steps", i+1)}
		}

		for _, rawStep := range rawSteps {
			m, ok := rawStep.(map[string]any)
			if !ok {
				return nil, &ValidationError{Step: spec.DisplayName(), Field: "groups", Constraint: fmt.Sprintf("group %d has a malformed step", i+1)}
			}

			nested := specFromMap(m)
			if _, err := New(nested, env); err != nil {
				return nil, err
			}

			group.Steps = append(group.Steps, nested)
		}

		s.groups = append(s.groups, group)
	}

	return s, nil
}

func (s *ParallelStep) Execute(ctx context.Context, state *State) error {
	if s.config.Mode != "" && s.config.Mode != "burst" {
		s.logger().Warn("execution mode not implemented, using burst", "mode", s.config.Mode)
	}

	state.Values["group_count"] = len(s.groups)

	s.logger().Info("executing groups in parallel", "groups", len(s.groups), "failure_mode", s.config.FailureMode)

	started := time.Now()
	results := s.run(ctx, state)
	overall := time.Since(started)

	exportDuration(state, "overall", overall)

	successes, failures := 0, 0

	for _, r := range results {
		exportDuration(state, fmt.Sprintf("group_%d", r.Index), r.Duration)
		if r.Name != "" {
			exportDuration(state, r.Name, r.Duration)
		}

		switch {
		case r.Cancelled:
			s.logger().Warn("group cancelled by fail-fast", "group", r.displayName())

			failures++
		case !r.Success:
			s.logger().Error("group failed", "group", r.displayName(), "error", r.Err)

			failures++
		default:
			successes++
		}
	}

	s.merge(state, results)

	state.Values["parallel_success_count"] = successes
	state.Values["parallel_failure_count"] = failures

	metrics := state.Values.Copy()
	s.exportOutputs(state, map[string]any(metrics), "", nil)

	if s.config.FailureMode == ContinueOnError {
		if successes == 0 {
			return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: fmt.Errorf("all %d groups failed", len(s.groups))}
		}

		return nil
	}

	if failures > 0 {
		return &ExecutionError{Step: s.Name(), Kind: s.Kind(), Err: fmt.Errorf("%d of %d groups failed", failures, len(s.groups))}
	}

	return nil
}

// run launches every group and collects all results. Under fail-fast, the
// first failure cancels the shared context, but every result already sitting
// in the channel is drained first so simultaneous completions are never
// misreported as cancelled.
func (s *ParallelStep) run(ctx context.Context, state *State) []GroupResult {
	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultCh := make(chan GroupResult, len(s.groups))

	for _, group := range s.groups {
		branch := state.Branch()

		go func(group parallelGroup, branch *State) {
			resultCh <- s.runGroup(groupCtx, branch, group)
		}(group, branch)
	}

	results := make([]GroupResult, len(s.groups))
	received := 0
	cancelled := false

	for received < len(s.groups) {
		batch := []GroupResult{<-resultCh}

	drain:
		for {
			select {
			case r := <-resultCh:
				batch = append(batch, r)
			default:
				break drain
			}
		}

		for _, r := range batch {
			results[r.Index] = r
			received++

			if !r.Success && !cancelled && s.config.FailureMode == FailFast {
				s.logger().Warn("fail-fast triggered, cancelling remaining groups", "group", r.displayName())
				cancel()

				cancelled = true
			}
		}
	}

	return results
}

// runGroup executes one group's step list count times sequentially on its
// branched state.
func (s *ParallelStep) runGroup(ctx context.Context, branch *State, group parallelGroup) GroupResult {
	result := GroupResult{Index: group.Index, Name: group.Name, branch: branch}
	started := time.Now()

	defer func() {
		result.Duration = time.Since(started)
	}()

	for iteration := range group.Count {
		branch.Scope.Local["iteration"] = iteration + 1
		branch.Scope.Local["iteration_index"] = iteration
		branch.Scope.Local["group_index"] = group.Index
		branch.Scope.Local["group_name"] = result.displayName()

		for idx, nested := range group.Steps {
			if err := ctx.Err(); err != nil {
				result.Cancelled = true
				result.Err = err

				return result
			}

			branch.Scope.Local["current_step"] = nested.DisplayName()
			branch.Scope.Local["current_step_index"] = idx + 1

			applyInlineVariables(s.env, branch, nested)

			step, err := New(nested, s.env)
			if err != nil {
				result.Err = err

				return result
			}

			if err := step.Execute(ctx, branch); err != nil {
				if errors.Is(err, context.Canceled) {
					result.Cancelled = true
				}

				result.Err = err

				return result
			}
		}
	}

	result.Success = true

	return result
}

// merge folds completed branches back into the parent in group-index order.
// A later group overwriting an earlier group's export is legal but logged.
func (s *ParallelStep) merge(state *State, results []GroupResult) {
	written := make(map[string]int)

	for _, r := range results {
		if r.branch == nil || r.Cancelled {
			continue
		}

		for key, payload := range r.branch.Results {
			if _, exists := state.Results[key]; !exists {
				state.Results[key] = payload
			}
		}

		for key, value := range r.branch.Values {
			if prev, ok := state.Values[key]; ok && equalValues(prev, value) {
				continue
			}

			if earlier, ok := written[key]; ok {
				s.logger().Warn("parallel export overwritten by later group",
					"key", key, "earlier_group", earlier, "group", r.Index)
			}

			state.Values[key] = value
			written[key] = r.Index
		}

		for key, value := range r.branch.Scope.Global {
			state.Scope.Global[key] = value
		}
	}
}

func equalValues(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// exportDuration writes the three duration encodings one timing metric gets.
func exportDuration(state *State, prefix string, d time.Duration) {
	seconds := d.Seconds()
	state.Values[prefix+"_duration_seconds"] = math.Round(seconds*1e6) / 1e6
	state.Values[prefix+"_duration_ms"] = math.Round(seconds*1e3*1e3) / 1e3
	state.Values[prefix+"_duration_ns"] = d.Nanoseconds()
}

var _ Step = (*ParallelStep)(nil)

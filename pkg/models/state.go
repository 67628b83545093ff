package models

import "maps"

// WorkflowResults is the raw archive of every executed step's full response
// payload, keyed by a step-derived key such as "install_node1" or
// "call_node1_set". Append-only during a run.
type WorkflowResults map[string]any

func (r WorkflowResults) Store(key string, payload any) {
	r[key] = payload
}

func (r WorkflowResults) Lookup(key string) (any, bool) {
	v, ok := r[key]

	return v, ok
}

// Copy returns an independent shallow copy for a concurrently-running branch.
func (r WorkflowResults) Copy() WorkflowResults {
	out := make(WorkflowResults, len(r))
	maps.Copy(out, r)

	return out
}

// DynamicValues is the flat export table steps write to and placeholders read
// from. Values keep their native types.
type DynamicValues map[string]any

func (d DynamicValues) Copy() DynamicValues {
	out := make(DynamicValues, len(d))
	maps.Copy(out, d)

	return out
}

// Scope is the variable visibility boundary used by repeat iterations and
// child workflow invocations. Local names are discarded when the iteration
// ends; Global names propagate to the parent immediately.
type Scope struct {
	Global DynamicValues
	Local  DynamicValues
}

func NewScope() *Scope {
	return &Scope{Global: DynamicValues{}, Local: DynamicValues{}}
}

// Lookup checks the local scope first, then the global scope.
func (s *Scope) Lookup(name string) (any, bool) {
	if s == nil {
		return nil, false
	}

	if v, ok := s.Local[name]; ok {
		return v, true
	}

	if v, ok := s.Global[name]; ok {
		return v, true
	}

	return nil, false
}

// Report is what a workflow run hands back to the caller, success or not.
type Report struct {
	Success        bool              `json:"success"`
	Nodes          []string          `json:"nodes"`
	Endpoints      map[string]string `json:"endpoints"`
	CapturedValues DynamicValues     `json:"captured_values"`
}

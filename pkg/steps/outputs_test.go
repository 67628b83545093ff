package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newOutputsBase(outputs map[string]any) *base {
	return &base{
		spec: stepSpec("call", "exports", map[string]any{"outputs": outputs}),
		env:  testEnv(),
	}
}

func TestExportOutputsPlainField(t *testing.T) {
	state := NewState()
	b := newOutputsBase(map[string]any{"app_id": "applicationId"})

	b.exportOutputs(state, map[string]any{
		"data": map[string]any{"applicationId": "app-1"},
	}, "node1", nil)

	assert.Equal(t, "app-1", state.Values["app_id"])
}

func TestExportOutputsDottedPath(t *testing.T) {
	state := NewState()
	b := newOutputsBase(map[string]any{"deep": "outer.inner.value"})

	b.exportOutputs(state, map[string]any{
		"data": map[string]any{"outer": `{"inner": {"value": 42}}`},
	}, "node1", nil)

	assert.Equal(t, float64(42), state.Values["deep"])
}

func TestExportOutputsMappingRule(t *testing.T) {
	state := NewState()
	b := newOutputsBase(map[string]any{
		"ignored": map[string]any{
			"field":  "payload",
			"json":   true,
			"path":   "k",
			"target": "k_{node_name}",
		},
	})

	b.exportOutputs(state, map[string]any{
		"data": map[string]any{"payload": `{"k": 2}`},
	}, "node1", nil)

	assert.Equal(t, float64(2), state.Values["k_node1"])
	assert.NotContains(t, state.Values, "ignored")
}

func TestExportOutputsScopePrefixes(t *testing.T) {
	state := NewState()
	b := newOutputsBase(map[string]any{
		"local:tmp":    "id",
		"global:saved": "id",
	})

	b.exportOutputs(state, map[string]any{"data": map[string]any{"id": "x"}}, "node1", nil)

	assert.Equal(t, "x", state.Scope.Local["tmp"])
	assert.Equal(t, "x", state.Scope.Global["saved"])
	assert.NotContains(t, state.Values, "tmp")
}

func TestExportOutputsProtectedKeysSkipped(t *testing.T) {
	state := NewState()
	state.Values["iteration"] = 3
	b := newOutputsBase(map[string]any{"iteration": "id"})

	b.exportOutputs(state, map[string]any{"data": map[string]any{"id": "x"}},
		"node1", map[string]struct{}{"iteration": {}})

	assert.Equal(t, 3, state.Values["iteration"])
}

func TestExportOutputsMissingFieldSkipped(t *testing.T) {
	state := NewState()
	b := newOutputsBase(map[string]any{"gone": "missing"})

	b.exportOutputs(state, map[string]any{"data": map[string]any{"id": "x"}}, "node1", nil)

	assert.NotContains(t, state.Values, "gone")
}

func TestOutputDataKeepsErrorDiagnostics(t *testing.T) {
	payload := map[string]any{
		"success":       false,
		"error_code":    float64(404),
		"error_message": "not found",
		"data":          map[string]any{"partial": true},
	}

	out, ok := outputData(payload).(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "not found", out["error_message"])
}

func TestOutputDataUnwrapsEnvelope(t *testing.T) {
	out := outputData(map[string]any{"data": map[string]any{"id": "x"}})

	assert.Equal(t, map[string]any{"id": "x"}, out)
}

package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONAssert(t *testing.T, config map[string]any) *JSONAssertStep {
	t.Helper()

	step, err := NewJSONAssertStep(stepSpec("json_assert", "compare", config), testEnv())
	require.NoError(t, err)

	return step
}

func TestJSONAssertStructuralEquality(t *testing.T) {
	state := NewState()
	state.Values["result"] = `{"count": 2, "items": ["a", "b"]}`

	step := newJSONAssert(t, map[string]any{
		"actual":   "{{result}}",
		"expected": `{"items": ["a", "b"], "count": 2}`,
	})

	assert.NoError(t, step.Execute(context.Background(), state))
}

func TestJSONAssertNumericCoercion(t *testing.T) {
	state := NewState()
	state.Values["result"] = map[string]any{"count": 2}

	step := newJSONAssert(t, map[string]any{
		"actual":   "{{result}}",
		"expected": `{"count": 2}`,
	})

	assert.NoError(t, step.Execute(context.Background(), state))
}

func TestJSONAssertIgnoreFields(t *testing.T) {
	state := NewState()
	state.Values["result"] = `{"id": "x", "meta": {"timestamp": 123}}`

	step := newJSONAssert(t, map[string]any{
		"actual":        "{{result}}",
		"expected":      `{"id": "x", "meta": {}}`,
		"ignore_fields": []any{"meta.timestamp"},
	})

	assert.NoError(t, step.Execute(context.Background(), state))
}

func TestJSONAssertMismatch(t *testing.T) {
	state := NewState()
	state.Values["result"] = `{"id": "x"}`

	step := newJSONAssert(t, map[string]any{
		"actual":   "{{result}}",
		"expected": `{"id": "y"}`,
	})

	err := step.Execute(context.Background(), state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json assertion failed")
}

func TestJSONAssertPythonFlavoredPayload(t *testing.T) {
	state := NewState()
	state.Values["result"] = `{'ok': True, 'value': None}`

	step := newJSONAssert(t, map[string]any{
		"actual":   "{{result}}",
		"expected": `{"ok": true, "value": null}`,
	})

	assert.NoError(t, step.Execute(context.Background(), state))
}

package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssert(t *testing.T, statements ...any) *AssertStep {
	t.Helper()

	step, err := NewAssertStep(stepSpec("assert", "check", map[string]any{"statements": statements}), testEnv())
	require.NoError(t, err)

	return step
}

func TestAssertEquality(t *testing.T) {
	state := NewState()
	state.Values["count"] = 5

	step := newAssert(t, "{{count}} == 5", "5 == 5.0", "'5' == 5")
	assert.NoError(t, step.Execute(context.Background(), state))

	step = newAssert(t, "{{count}} == 6")
	assert.Error(t, step.Execute(context.Background(), state))
}

func TestAssertInequalityAndContains(t *testing.T) {
	state := NewState()
	state.Values["status"] = "context created"

	step := newAssert(t, "{{status}} != failed", "{{status}} contains created")
	assert.NoError(t, step.Execute(context.Background(), state))

	step = newAssert(t, "{{status}} contains missing")
	assert.Error(t, step.Execute(context.Background(), state))
}

func TestAssertIsSet(t *testing.T) {
	state := NewState()
	state.Values["ctx"] = "ctx-1"

	step := newAssert(t, "{{ctx}} is_set")
	assert.NoError(t, step.Execute(context.Background(), state))

	step = newAssert(t, "{{missing}} is_set")
	assert.Error(t, step.Execute(context.Background(), state))
}

func TestAssertInvalidStatement(t *testing.T) {
	state := NewState()

	step := newAssert(t, "just some words")
	err := step.Execute(context.Background(), state)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid assertion")
}

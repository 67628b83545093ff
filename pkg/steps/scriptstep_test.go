package steps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptStepReadsVarsAndExports(t *testing.T) {
	step, err := NewScriptStep(stepSpec("script", "derive", map[string]any{
		"script": `
			setOutput("doubled", vars.count * 2);
			setOutput("global:flag", "on");
			setOutput("local:scratch", 1);
		`,
	}), testEnv())
	require.NoError(t, err)

	state := NewState()
	state.Values["count"] = 21

	require.NoError(t, step.Execute(context.Background(), state))

	assert.Equal(t, int64(42), state.Values["doubled"])
	assert.Equal(t, "on", state.Scope.Global["flag"])
	assert.Equal(t, int64(1), state.Scope.Local["scratch"])
}

func TestScriptStepFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "derive.js")
	require.NoError(t, os.WriteFile(path, []byte(`setOutput("from_file", true);`), 0o600))

	step, err := NewScriptStep(stepSpec("script", "file", map[string]any{"file": path}), testEnv())
	require.NoError(t, err)

	state := NewState()
	require.NoError(t, step.Execute(context.Background(), state))
	assert.Equal(t, true, state.Values["from_file"])
}

func TestScriptStepRequiresSource(t *testing.T) {
	_, err := NewScriptStep(stepSpec("script", "empty", map[string]any{}), testEnv())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestScriptStepScriptErrorFailsStep(t *testing.T) {
	step, err := NewScriptStep(stepSpec("script", "broken", map[string]any{
		"script": `throw new Error("boom");`,
	}), testEnv())
	require.NoError(t, err)

	err = step.Execute(context.Background(), NewState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

package steps

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/calimero-network/merobox/pkg/mocks"
)

func TestCallStepResolvesArgsAndArchivesResult(t *testing.T) {
	client := &mocks.MockClient{}
	client.On("Execute", mock.Anything, "ctx-1", "set", mock.MatchedBy(func(args []byte) bool {
		var decoded map[string]any
		if err := json.Unmarshal(args, &decoded); err != nil {
			return false
		}

		return decoded["key"] == "color" && decoded["value"] == "blue"
	}), "pk-1").Return(map[string]any{"data": map[string]any{"output": "ok"}}, nil)

	step, err := NewCallStep(stepSpec("call", "set value", map[string]any{
		"node":                "node1",
		"context_id":          "{{ctx}}",
		"method":              "set",
		"executor_public_key": "pk-1",
		"args":                map[string]any{"key": "color", "value": "{{val}}"},
		"outputs":             map[string]any{"set_result": "output"},
	}), clientEnv(t, client, "node1"))
	require.NoError(t, err)

	state := NewState()
	state.Values["ctx"] = "ctx-1"
	state.Values["val"] = "blue"

	require.NoError(t, step.Execute(context.Background(), state))

	_, ok := state.Results.Lookup("call_node1_set")
	assert.True(t, ok)
	assert.Equal(t, "ok", state.Values["set_result"])

	client.AssertExpectations(t)
}

func TestCallStepStringArgsPassThroughRaw(t *testing.T) {
	client := &mocks.MockClient{}
	client.On("Execute", mock.Anything, "ctx-1", "get", []byte(`{"key": "color"}`), "pk-1").
		Return(map[string]any{"data": "blue"}, nil)

	step, err := NewCallStep(stepSpec("call", "get value", map[string]any{
		"node":                "node1",
		"context_id":          "ctx-1",
		"method":              "get",
		"executor_public_key": "pk-1",
		"args":                `{"key": "color"}`,
	}), clientEnv(t, client, "node1"))
	require.NoError(t, err)

	require.NoError(t, step.Execute(context.Background(), NewState()))
	client.AssertExpectations(t)
}

func TestCallStepFailsOnRPCError(t *testing.T) {
	client := &mocks.MockClient{}
	client.On("Execute", mock.Anything, "ctx-1", "boom", mock.Anything, "pk-1").
		Return(map[string]any{"error": map[string]any{"type": "FunctionCallError", "data": "panic"}}, nil)

	step, err := NewCallStep(stepSpec("call", "boom", map[string]any{
		"node":                "node1",
		"context_id":          "ctx-1",
		"method":              "boom",
		"executor_public_key": "pk-1",
	}), clientEnv(t, client, "node1"))
	require.NoError(t, err)

	err = step.Execute(context.Background(), NewState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FunctionCallError")
}

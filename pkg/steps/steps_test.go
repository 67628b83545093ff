package steps

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calimero-network/merobox/pkg/models"
	"github.com/calimero-network/merobox/pkg/template"
)

func testEnv() *Env {
	return &Env{
		Template:   template.NewResolver(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxNesting: DefaultMaxNesting,
	}
}

func stepSpec(typ, name string, config map[string]any) models.StepSpec {
	if config == nil {
		config = map[string]any{}
	}

	return models.StepSpec{Type: typ, Name: name, Config: config}
}

func TestCatalogueRejectsUnknownType(t *testing.T) {
	_, err := New(stepSpec("teleport", "nope", nil), testEnv())

	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "teleport")
}

func TestCatalogueCoversEveryType(t *testing.T) {
	assert.Len(t, Types(), 21)
}

func TestDecodeConfigValidation(t *testing.T) {
	_, err := NewWaitStep(stepSpec("wait", "pause", map[string]any{}), testEnv())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Seconds", verr.Field)
}

func TestFailedDetectsErrorPayload(t *testing.T) {
	assert.NoError(t, failed(nil))
	assert.NoError(t, failed(map[string]any{"data": "ok"}))
	assert.NoError(t, failed(map[string]any{"error": nil}))

	err := failed(map[string]any{"error": map[string]any{"type": "FunctionCallError", "data": "panic"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FunctionCallError")
}

func TestBranchIsolatesWrites(t *testing.T) {
	state := NewState()
	state.Values["seed"] = 1
	state.Scope.Global["g"] = "parent"

	branch := state.Branch()
	branch.Values["seed"] = 2
	branch.Scope.Global["g"] = "child"
	branch.Results.Store("install_node1", "x")

	assert.Equal(t, 1, state.Values["seed"])
	assert.Equal(t, "parent", state.Scope.Global["g"])
	_, ok := state.Results.Lookup("install_node1")
	assert.False(t, ok)
}

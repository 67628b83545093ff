package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/calimero-network/merobox/pkg/models"
)

func newState() (models.WorkflowResults, models.DynamicValues, *models.Scope) {
	return models.WorkflowResults{}, models.DynamicValues{}, models.NewScope()
}

func TestResolveStringPlainPassThrough(t *testing.T) {
	r := NewResolver()
	results, values, scope := newState()

	assert.Equal(t, "no placeholders here", r.ResolveString("no placeholders here", results, values, scope))
}

func TestResolveStringQuotedLiteral(t *testing.T) {
	r := NewResolver()
	results, values, scope := newState()

	assert.Equal(t, "42", r.ResolveString(`"42"`, results, values, scope))
	assert.Equal(t, "hello", r.ResolveString("'hello'", results, values, scope))
}

func TestResolveStringWholePlaceholderKeepsType(t *testing.T) {
	r := NewResolver()
	results, values, scope := newState()
	values["count"] = 3

	assert.Equal(t, 3, r.ResolveString("{{count}}", results, values, scope))
}

func TestResolveStringEmbeddedPlaceholderStringifies(t *testing.T) {
	r := NewResolver()
	results, values, scope := newState()
	values["count"] = 3
	values["name"] = "alpha"

	assert.Equal(t, "run alpha has 3 steps", r.ResolveString("run {{name}} has {{count}} steps", results, values, scope))
}

func TestResolveStringUnresolvedKeepsLiteral(t *testing.T) {
	r := NewResolver()
	results, values, scope := newState()

	assert.Equal(t, "{{missing}}", r.ResolveString("{{missing}}", results, values, scope))
	assert.Equal(t, "x {{missing}} y", r.ResolveString("x {{missing}} y", results, values, scope))
}

func TestResolveLocalScopeWinsOverGlobal(t *testing.T) {
	r := NewResolver()
	results, values, scope := newState()
	scope.Global["iteration"] = 99
	scope.Local["iteration"] = 2
	values["iteration"] = 7

	assert.Equal(t, 2, r.ResolveString("{{iteration}}", results, values, scope))
}

func TestResolveInstallPrefersExportedValue(t *testing.T) {
	r := NewResolver()
	results, values, scope := newState()
	values["app_id_node1"] = "app-exported"
	results.Store("install_node1", map[string]any{"id": "app-raw"})

	assert.Equal(t, "app-exported", r.ResolveString("{{install.node1}}", results, values, scope))
}

func TestResolveInstallFallsBackToResultFields(t *testing.T) {
	r := NewResolver()
	results, values, scope := newState()
	results.Store("install_node1", map[string]any{"applicationId": "app-123"})

	assert.Equal(t, "app-123", r.ResolveString("{{install.node1}}", results, values, scope))
}

func TestResolveContextUnwrapsDataEnvelope(t *testing.T) {
	r := NewResolver()
	results, values, scope := newState()
	results.Store("context_node1", map[string]any{
		"data": map[string]any{"contextId": "ctx-1", "memberPublicKey": "pk-1"},
	})

	assert.Equal(t, "ctx-1", r.ResolveString("{{context.node1}}", results, values, scope))
	assert.Equal(t, "pk-1", r.ResolveString("{{context.node1.memberPublicKey}}", results, values, scope))
}

func TestResolveIdentity(t *testing.T) {
	r := NewResolver()
	results, values, scope := newState()
	results.Store("identity_node2", map[string]any{"data": map[string]any{"publicKey": "ed25519:abc"}})

	assert.Equal(t, "ed25519:abc", r.ResolveString("{{identity.node2}}", results, values, scope))
}

func TestResolveInviteChainsThroughIdentity(t *testing.T) {
	r := NewResolver()
	results, values, scope := newState()
	results.Store("identity_node2", map[string]any{"publicKey": "pk-2"})
	results.Store("invite_node1_pk-2", map[string]any{"data": map[string]any{"invitation": "payload-xyz"}})

	assert.Equal(t, "payload-xyz", r.ResolveString("{{invite.node1_identity.node2}}", results, values, scope))
}

func TestResolveWalksNestedStructures(t *testing.T) {
	r := NewResolver()
	results, values, scope := newState()
	values["ctx"] = "ctx-9"
	values["n"] = 1

	out := r.Resolve(map[string]any{
		"context_id": "{{ctx}}",
		"args":       []any{"{{n}}", "literal"},
		"key_{{n}}":  "v",
	}, results, values, scope)

	m, ok := out.(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "ctx-9", m["context_id"])
	assert.Equal(t, []any{1, "literal"}, m["args"])
	assert.Contains(t, m, "key_1")
}

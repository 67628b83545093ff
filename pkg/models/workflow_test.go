package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNodeNamesFromCount(t *testing.T) {
	spec := NodesSpec{Count: 3}

	assert.Equal(t, []string{"calimero-node-1", "calimero-node-2", "calimero-node-3"}, spec.NodeNames())

	spec.Prefix = "edge"
	assert.Equal(t, []string{"edge-1", "edge-2", "edge-3"}, spec.NodeNames())
}

func TestNodeNamesExplicitList(t *testing.T) {
	spec := NodesSpec{Names: []string{"alpha", "beta"}}

	assert.Equal(t, []string{"alpha", "beta"}, spec.NodeNames())
	assert.Empty(t, NodesSpec{}.NodeNames())
}

func TestNodeSpecDefaultsAndPortOffsets(t *testing.T) {
	spec := NodesSpec{Count: 2}

	first := spec.NodeSpec(0, "calimero-node-1")
	second := spec.NodeSpec(1, "calimero-node-2")

	assert.Equal(t, DefaultChainID, first.ChainID)
	assert.Equal(t, DefaultBasePort, first.P2PPort)
	assert.Equal(t, DefaultBaseRPCPort, first.RPCPort)
	assert.Equal(t, DefaultBasePort+1, second.P2PPort)
	assert.Equal(t, DefaultBaseRPCPort+1, second.RPCPort)
}

func TestStepSpecYAML(t *testing.T) {
	doc := `
type: call
name: set value
node: node1
method: set
args:
  key: color
`

	var spec StepSpec
	require.NoError(t, yaml.Unmarshal([]byte(doc), &spec))

	assert.Equal(t, "call", spec.Type)
	assert.Equal(t, "set value", spec.Name)
	assert.Equal(t, "node1", spec.Config["node"])
	assert.NotContains(t, spec.Config, "type")

	out, err := yaml.Marshal(spec)
	require.NoError(t, err)

	var back StepSpec
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, spec.Type, back.Type)
	assert.Equal(t, spec.Name, back.Name)
	assert.Equal(t, "set", back.Config["method"])
}

func TestStepSpecDisplayName(t *testing.T) {
	assert.Equal(t, "install app", StepSpec{Type: "install_application", Name: "install app"}.DisplayName())
	assert.Equal(t, "unnamed wait step", StepSpec{Type: "wait"}.DisplayName())
	assert.Equal(t, "unnamed step", StepSpec{}.DisplayName())
}

func TestScopeLookupOrder(t *testing.T) {
	scope := NewScope()
	scope.Global["x"] = "global"

	v, ok := scope.Lookup("x")
	assert.True(t, ok)
	assert.Equal(t, "global", v)

	scope.Local["x"] = "local"
	v, _ = scope.Lookup("x")
	assert.Equal(t, "local", v)

	_, ok = scope.Lookup("missing")
	assert.False(t, ok)

	var nilScope *Scope
	_, ok = nilScope.Lookup("x")
	assert.False(t, ok)
}

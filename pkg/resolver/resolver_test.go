package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/calimero-network/merobox/pkg/mocks"
	"github.com/calimero-network/merobox/pkg/models"
)

func TestResolvePrefersRemoteTable(t *testing.T) {
	r := New(nil, map[string]models.RemoteNode{
		"staging": {URL: "https://staging.example.com/", Auth: &models.RemoteAuth{Username: "admin"}},
	})

	node, err := r.Resolve(context.Background(), "staging")
	require.NoError(t, err)

	assert.Equal(t, "https://staging.example.com", node.URL)
	assert.Equal(t, "staging", node.StableName)
	assert.True(t, node.AuthRequired)
}

func TestResolveRawURLKeepsRegisteredName(t *testing.T) {
	r := New(nil, map[string]models.RemoteNode{
		"staging": {URL: "https://staging.example.com"},
	})

	node, err := r.Resolve(context.Background(), "https://staging.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "staging", node.StableName)
}

func TestResolveUnregisteredURL(t *testing.T) {
	r := New(nil, nil)

	node, err := r.Resolve(context.Background(), "http://node.example.com:2528")
	require.NoError(t, err)

	assert.Equal(t, "http://node.example.com:2528", node.URL)
	assert.Equal(t, "url_node_example_com_2528", node.StableName)
	assert.False(t, node.AuthRequired)
}

func TestResolveFallsBackToLocalRuntime(t *testing.T) {
	runtime := &mocks.MockRuntime{}
	runtime.On("RPCEndpoint", mock.Anything, "calimero-node-1").
		Return("http://localhost:2528", nil)

	r := New(runtime, nil)

	node, err := r.Resolve(context.Background(), "calimero-node-1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:2528", node.URL)
	assert.Equal(t, "calimero-node-1", node.StableName)
}

func TestResolveUnknownReference(t *testing.T) {
	r := New(nil, nil)

	_, err := r.Resolve(context.Background(), "ghost-node")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost-node")
}

func TestIsRemote(t *testing.T) {
	r := New(nil, map[string]models.RemoteNode{"staging": {URL: "https://x"}})

	assert.True(t, r.IsRemote("staging"))
	assert.True(t, r.IsRemote("https://anywhere.example.com"))
	assert.False(t, r.IsRemote("calimero-node-1"))
}

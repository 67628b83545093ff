package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calimero-network/merobox/pkg/protocol"
)

type staticTokens string

func (s staticTokens) TokenFor(context.Context, protocol.ResolvedNode) (string, error) {
	return string(s), nil
}

func newTestClient(server *httptest.Server, tokens TokenSource) *HTTPClient {
	return NewHTTPClient(protocol.ResolvedNode{URL: server.URL, StableName: "node1"}, tokens)
}

func TestInstallApplicationPostsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin-api/install-application", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://example.com/app.wasm", body["url"])

		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"applicationId": "app-1"}})
	}))
	defer server.Close()

	payload, err := newTestClient(server, nil).InstallApplication(context.Background(), "", "https://example.com/app.wasm", nil)
	require.NoError(t, err)

	data, ok := payload["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "app-1", data["applicationId"])
}

func TestBearerTokenAttached(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	}))
	defer server.Close()

	_, err := newTestClient(server, staticTokens("tok-123")).CreateIdentity(context.Background())
	require.NoError(t, err)
}

func TestServerErrorsAreRetried(t *testing.T) {
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	}))
	defer server.Close()

	_, err := newTestClient(server, nil).CreateIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++

		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestClient(server, nil).CreateIdentity(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Contains(t, err.Error(), "400")
}

func TestExecuteNormalizesJSONRPCResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jsonrpc", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2.0", body["jsonrpc"])
		assert.Equal(t, "execute", body["method"])

		params, ok := body["params"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "ctx-1", params["contextId"])
		assert.Equal(t, "get", params["method"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      body["id"],
			"result":  map[string]any{"output": "blue"},
		})
	}))
	defer server.Close()

	payload, err := newTestClient(server, nil).Execute(context.Background(), "ctx-1", "get", []byte(`{"key":"color"}`), "pk-1")
	require.NoError(t, err)

	data, ok := payload["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "blue", data["output"])
	assert.NotContains(t, payload, "error")
}

func TestExecuteNormalizesJSONRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"error":   map[string]any{"type": "FunctionCallError", "data": "panic"},
		})
	}))
	defer server.Close()

	payload, err := newTestClient(server, nil).Execute(context.Background(), "ctx-1", "boom", []byte(`{}`), "pk-1")
	require.NoError(t, err)
	assert.Contains(t, payload, "error")
}

func TestFactoryReusesClientPerStableName(t *testing.T) {
	factory := NewFactory(nil)

	node := protocol.ResolvedNode{URL: "http://localhost:2528", StableName: "node1"}
	first := factory.ClientFor(node)
	second := factory.ClientFor(node)
	assert.Same(t, first, second)

	// An endpoint change for the same stable name gets a fresh client.
	moved := factory.ClientFor(protocol.ResolvedNode{URL: "http://localhost:2628", StableName: "node1"})
	assert.NotSame(t, first, moved)

	other := factory.ClientFor(protocol.ResolvedNode{URL: "http://localhost:2528", StableName: "node2"})
	assert.NotSame(t, first, other)
}

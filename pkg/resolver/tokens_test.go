package resolver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calimero-network/merobox/pkg/models"
	"github.com/calimero-network/merobox/pkg/protocol"
)

func testToken(t *testing.T, exp time.Time) string {
	t.Helper()

	claims, err := json.Marshal(map[string]any{"exp": exp.Unix()})
	require.NoError(t, err)

	return fmt.Sprintf("h.%s.sig", base64.RawURLEncoding.EncodeToString(claims))
}

func newTestCache(t *testing.T, remotes map[string]models.RemoteNode) *TokenCache {
	t.Helper()

	cache := NewTokenCache(remotes)
	cache.path = filepath.Join(t.TempDir(), "tokens.json")

	return cache
}

func TestTokenForUnauthenticatedNode(t *testing.T) {
	cache := newTestCache(t, nil)

	token, err := cache.TokenFor(context.Background(), protocol.ResolvedNode{StableName: "node1"})
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTokenForAuthenticatesAndCaches(t *testing.T) {
	issued := testToken(t, time.Now().Add(time.Hour))
	requests := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++

		assert.Equal(t, "/auth/token", r.URL.Path)

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "user_password", payload["auth_method"])
		assert.Equal(t, "admin", payload["public_key"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"access_token": issued},
		})
	}))
	defer server.Close()

	cache := newTestCache(t, map[string]models.RemoteNode{
		"staging": {URL: server.URL, Auth: &models.RemoteAuth{Username: "admin", Password: "hunter2"}},
	})

	node := protocol.ResolvedNode{URL: server.URL, StableName: "staging", AuthRequired: true}

	token, err := cache.TokenFor(context.Background(), node)
	require.NoError(t, err)
	assert.Equal(t, issued, token)

	// Second lookup is served from the cache.
	token, err = cache.TokenFor(context.Background(), node)
	require.NoError(t, err)
	assert.Equal(t, issued, token)
	assert.Equal(t, 1, requests)
}

func TestTokenForExpiredTokenReauthenticates(t *testing.T) {
	requests := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": testToken(t, time.Now().Add(time.Hour)),
		})
	}))
	defer server.Close()

	cache := newTestCache(t, map[string]models.RemoteNode{
		"staging": {URL: server.URL, Auth: &models.RemoteAuth{Username: "admin", Password: "pw"}},
	})

	cache.tokens["staging"] = cachedToken{
		AccessToken: "stale",
		ExpiresAt:   time.Now().Add(-time.Minute).Unix(),
	}
	cache.loaded = true

	token, err := cache.TokenFor(context.Background(), protocol.ResolvedNode{
		URL: server.URL, StableName: "staging", AuthRequired: true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "stale", token)
	assert.Equal(t, 1, requests)
}

func TestTokenForMissingCredentials(t *testing.T) {
	cache := newTestCache(t, nil)

	_, err := cache.TokenFor(context.Background(), protocol.ResolvedNode{
		URL: "http://example.com", StableName: "mystery", AuthRequired: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestTokenCachePersistsAcrossInstances(t *testing.T) {
	issued := testToken(t, time.Now().Add(time.Hour))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": issued})
	}))
	defer server.Close()

	remotes := map[string]models.RemoteNode{
		"staging": {URL: server.URL, Auth: &models.RemoteAuth{Username: "admin", Password: "pw"}},
	}

	first := newTestCache(t, remotes)
	node := protocol.ResolvedNode{URL: server.URL, StableName: "staging", AuthRequired: true}

	_, err := first.TokenFor(context.Background(), node)
	require.NoError(t, err)

	second := NewTokenCache(remotes)
	second.path = first.path
	server.Close()

	token, err := second.TokenFor(context.Background(), node)
	require.NoError(t, err)
	assert.Equal(t, issued, token)
}

func TestJWTExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	assert.Equal(t, exp.Unix(), jwtExpiry(testToken(t, exp)))
	assert.Zero(t, jwtExpiry("not-a-jwt"))
	assert.Zero(t, jwtExpiry("a.%%%.c"))
}

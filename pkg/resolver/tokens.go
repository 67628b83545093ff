package resolver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/calimero-network/merobox/pkg/log"
	"github.com/calimero-network/merobox/pkg/models"
	"github.com/calimero-network/merobox/pkg/protocol"
)

const (
	authTokenPath = "/auth/token"

	authMethodUserPassword = "user_password"
	authMethodAPIKey       = "api_key"

	// Tokens are refreshed this long before their recorded expiry.
	tokenExpiryBuffer = 60 * time.Second
)

const (
	envUsername = "MEROBOX_USERNAME"
	envPassword = "MEROBOX_PASSWORD"
	envAPIKey   = "MEROBOX_API_KEY"
)

type cachedToken struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at,omitempty"`
}

func (t cachedToken) expired() bool {
	if t.ExpiresAt == 0 {
		return true
	}

	return time.Now().Add(tokenExpiryBuffer).Unix() >= t.ExpiresAt
}

// TokenCache issues and caches bearer tokens for authenticated nodes,
// keyed by the node's stable name. Tokens persist on disk across runs.
type TokenCache struct {
	path    string
	remotes map[string]models.RemoteNode
	http    *http.Client
	logger  *slog.Logger

	mu     sync.Mutex
	tokens map[string]cachedToken
	loaded bool
}

// NewTokenCache stores tokens under ~/.merobox/tokens.json. The remotes
// table supplies credentials for registered nodes; environment variables
// override it.
func NewTokenCache(remotes map[string]models.RemoteNode) *TokenCache {
	path := "tokens.json"
	if home, err := os.UserHomeDir(); err == nil {
		path = filepath.Join(home, ".merobox", "tokens.json")
	}

	return &TokenCache{
		path:    path,
		remotes: remotes,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  log.WithModule("auth"),
		tokens:  make(map[string]cachedToken),
	}
}

func (c *TokenCache) TokenFor(ctx context.Context, node protocol.ResolvedNode) (string, error) {
	if !node.AuthRequired {
		return "", nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.loadOnce()

	if token, ok := c.tokens[node.StableName]; ok && !token.expired() {
		return token.AccessToken, nil
	}

	token, err := c.authenticate(ctx, node)
	if err != nil {
		return "", err
	}

	c.tokens[node.StableName] = token
	c.persist()

	return token.AccessToken, nil
}

func (c *TokenCache) authenticate(ctx context.Context, node protocol.ResolvedNode) (cachedToken, error) {
	auth := c.credentialsFor(node.StableName)
	if auth.Username == "" && auth.APIKey == "" {
		return cachedToken{}, fmt.Errorf("node %s requires authentication but no credentials are configured", node.StableName)
	}

	payload := map[string]any{
		"client_name": node.URL,
		"timestamp":   time.Now().Unix(),
	}

	if auth.APIKey != "" {
		payload["auth_method"] = authMethodAPIKey
		payload["provider_data"] = map[string]any{"api_key": auth.APIKey}
	} else {
		payload["auth_method"] = authMethodUserPassword
		payload["public_key"] = auth.Username
		payload["provider_data"] = map[string]any{
			"username": auth.Username,
			"password": auth.Password,
		}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return cachedToken{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, node.URL+authTokenPath, bytes.NewReader(encoded))
	if err != nil {
		return cachedToken{}, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return cachedToken{}, fmt.Errorf("authenticate with %s: %w", node.StableName, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return cachedToken{}, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return cachedToken{}, fmt.Errorf("invalid credentials for node %s", node.StableName)
	case resp.StatusCode != http.StatusOK:
		return cachedToken{}, fmt.Errorf("authentication with %s failed with status %d: %s", node.StableName, resp.StatusCode, raw)
	}

	access := extractAccessToken(raw)
	if access == "" {
		return cachedToken{}, fmt.Errorf("auth response from %s carries no access token", node.StableName)
	}

	c.logger.Info("authenticated with node", "node", node.StableName)

	return cachedToken{AccessToken: access, ExpiresAt: jwtExpiry(access)}, nil
}

// credentialsFor merges the registered remote's credentials with the
// environment overrides.
func (c *TokenCache) credentialsFor(name string) models.RemoteAuth {
	var auth models.RemoteAuth

	if entry, ok := c.remotes[name]; ok && entry.Auth != nil {
		auth = *entry.Auth
	}

	if v := os.Getenv(envUsername); v != "" {
		auth.Username = v
	}

	if v := os.Getenv(envPassword); v != "" {
		auth.Password = v
	}

	if v := os.Getenv(envAPIKey); v != "" {
		auth.APIKey = v
	}

	return auth
}

// extractAccessToken accepts both a flat token response and one nested
// under a data envelope.
func extractAccessToken(raw []byte) string {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}

	if nested, ok := doc["data"].(map[string]any); ok {
		doc = nested
	}

	token, _ := doc["access_token"].(string)

	return token
}

// jwtExpiry reads the exp claim out of a JWT without verifying it. A
// malformed token yields 0, which the cache treats as already expired.
func jwtExpiry(token string) int64 {
	parts := bytes.Split([]byte(token), []byte("."))
	if len(parts) != 3 {
		return 0
	}

	payload, err := base64.RawURLEncoding.DecodeString(string(parts[1]))
	if err != nil {
		return 0
	}

	var claims struct {
		Exp int64 `json:"exp"`
	}

	if err := json.Unmarshal(payload, &claims); err != nil {
		return 0
	}

	return claims.Exp
}

func (c *TokenCache) loadOnce() {
	if c.loaded {
		return
	}

	c.loaded = true

	raw, err := os.ReadFile(c.path)
	if err != nil {
		return
	}

	if err := json.Unmarshal(raw, &c.tokens); err != nil {
		c.logger.Warn("token cache unreadable, starting fresh", "path", c.path, "error", err)
		c.tokens = make(map[string]cachedToken)
	}
}

func (c *TokenCache) persist() {
	raw, err := json.MarshalIndent(c.tokens, "", "  ")
	if err != nil {
		return
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		c.logger.Warn("cannot create token cache directory", "error", err)

		return
	}

	if err := os.WriteFile(c.path, raw, 0o600); err != nil {
		c.logger.Warn("cannot persist token cache", "error", err)
	}
}

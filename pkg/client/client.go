// Package client implements the node admin API over HTTP, with a JSON-RPC
// transport for application method execution.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/calimero-network/merobox/pkg/log"
	"github.com/calimero-network/merobox/pkg/protocol"
)

const (
	defaultTimeout  = 30 * time.Second
	maxRetryElapsed = 20 * time.Second
)

// TokenSource supplies a bearer token for one node, or "" when the node's
// admin API is unauthenticated.
type TokenSource interface {
	TokenFor(ctx context.Context, node protocol.ResolvedNode) (string, error)
}

// HTTPClient talks to one node's admin API. Requests that fail at the
// transport level are retried with exponential backoff; node-side errors
// are returned to the caller unretried.
type HTTPClient struct {
	node   protocol.ResolvedNode
	http   *http.Client
	tokens TokenSource
	logger *slog.Logger
}

func NewHTTPClient(node protocol.ResolvedNode, tokens TokenSource) *HTTPClient {
	return &HTTPClient{
		node:   node,
		http:   &http.Client{Timeout: defaultTimeout},
		tokens: tokens,
		logger: log.WithModule("client").With("node", node.StableName),
	}
}

func (c *HTTPClient) InstallApplication(ctx context.Context, path, url string, metadata []byte) (map[string]any, error) {
	body := map[string]any{}
	if url != "" {
		body["url"] = url
	} else {
		body["path"] = path
	}

	if len(metadata) > 0 {
		body["metadata"] = metadata
	}

	return c.post(ctx, "/admin-api/install-application", body)
}

func (c *HTTPClient) CreateContext(ctx context.Context, applicationID, protocolName string, initParams []byte) (map[string]any, error) {
	body := map[string]any{
		"applicationId": applicationID,
		"protocol":      protocolName,
	}

	if len(initParams) > 0 {
		body["initializationParams"] = initParams
	}

	return c.post(ctx, "/admin-api/contexts", body)
}

func (c *HTTPClient) CreateIdentity(ctx context.Context) (map[string]any, error) {
	return c.post(ctx, "/admin-api/identity/context", map[string]any{})
}

func (c *HTTPClient) InviteIdentity(ctx context.Context, contextID, granterID, granteeID string) (map[string]any, error) {
	return c.post(ctx, "/admin-api/contexts/invite", map[string]any{
		"contextId": contextID,
		"inviterId": granterID,
		"inviteeId": granteeID,
	})
}

func (c *HTTPClient) JoinContext(ctx context.Context, inviteeID, invitation string) (map[string]any, error) {
	return c.post(ctx, "/admin-api/contexts/join", map[string]any{
		"privateKey":        inviteeID,
		"invitationPayload": invitation,
	})
}

func (c *HTTPClient) InviteToContextOpen(ctx context.Context, contextID, granterID string) (map[string]any, error) {
	return c.post(ctx, "/admin-api/contexts/invite-open", map[string]any{
		"contextId": contextID,
		"inviterId": granterID,
	})
}

func (c *HTTPClient) JoinContextOpen(ctx context.Context, contextID, inviteeID, invitation string) (map[string]any, error) {
	return c.post(ctx, "/admin-api/contexts/join-open", map[string]any{
		"contextId":         contextID,
		"inviteeId":         inviteeID,
		"invitationPayload": invitation,
	})
}

func (c *HTTPClient) Execute(ctx context.Context, contextID, method string, args []byte, executorID string) (map[string]any, error) {
	return c.rpc(ctx, "execute", map[string]any{
		"contextId":         contextID,
		"method":            method,
		"argsJson":          json.RawMessage(args),
		"executorPublicKey": executorID,
	})
}

func (c *HTTPClient) GetProposal(ctx context.Context, contextID, proposalID string) (map[string]any, error) {
	return c.get(ctx, fmt.Sprintf("/admin-api/contexts/%s/proposals/%s", contextID, proposalID))
}

func (c *HTTPClient) ListProposals(ctx context.Context, contextID string, args map[string]any) (map[string]any, error) {
	if args == nil {
		args = map[string]any{}
	}

	return c.post(ctx, fmt.Sprintf("/admin-api/contexts/%s/proposals", contextID), args)
}

func (c *HTTPClient) GetProposalApprovers(ctx context.Context, contextID, proposalID string) (map[string]any, error) {
	return c.get(ctx, fmt.Sprintf("/admin-api/contexts/%s/proposals/%s/approvals/users", contextID, proposalID))
}

func (c *HTTPClient) get(ctx context.Context, path string) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *HTTPClient) post(ctx context.Context, path string, body map[string]any) (map[string]any, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, encoded)
}

// rpc issues one JSON-RPC 2.0 call and normalizes the response to the
// data-or-error payload shape the steps expect.
func (c *HTTPClient) rpc(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	encoded, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      uuid.NewString(),
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, fmt.Errorf("encode rpc request: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/jsonrpc", encoded)
	if err != nil {
		return nil, err
	}

	out := map[string]any{}
	if result, ok := raw["result"]; ok {
		out["data"] = result
	}

	if rpcErr, ok := raw["error"]; ok && rpcErr != nil {
		out["error"] = rpcErr
	}

	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) (map[string]any, error) {
	url := strings.TrimRight(c.node.URL, "/") + path

	var payload map[string]any

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}

		req.Header.Set("Content-Type", "application/json")

		if c.tokens != nil {
			token, err := c.tokens.TokenFor(ctx, c.node)
			if err != nil {
				return backoff.Permanent(fmt.Errorf("fetch auth token: %w", err))
			}

			if token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Debug("request failed, retrying", "method", method, "path", path, "error", err)

			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("node returned %d: %s", resp.StatusCode, raw)
		}

		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("node returned %d: %s", resp.StatusCode, raw))
		}

		payload = map[string]any{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
		}

		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = maxRetryElapsed

	if err := backoff.Retry(operation, backoff.WithContext(expo, ctx)); err != nil {
		return nil, err
	}

	return payload, nil
}

var _ protocol.Client = (*HTTPClient)(nil)

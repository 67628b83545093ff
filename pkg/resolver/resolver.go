// Package resolver maps node references from workflow steps to reachable
// endpoints. A reference is tried against the workflow's remote_nodes table
// first, then as a raw URL, and finally as a local runtime node.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/calimero-network/merobox/pkg/log"
	"github.com/calimero-network/merobox/pkg/models"
	"github.com/calimero-network/merobox/pkg/protocol"
)

type Resolver struct {
	runtime protocol.NodeRuntime
	remotes map[string]models.RemoteNode
	logger  *slog.Logger
}

func New(runtime protocol.NodeRuntime, remotes map[string]models.RemoteNode) *Resolver {
	return &Resolver{
		runtime: runtime,
		remotes: remotes,
		logger:  log.WithModule("resolver"),
	}
}

func (r *Resolver) Resolve(ctx context.Context, ref string) (protocol.ResolvedNode, error) {
	if entry, ok := r.remotes[ref]; ok {
		return protocol.ResolvedNode{
			URL:          strings.TrimRight(entry.URL, "/"),
			StableName:   ref,
			AuthRequired: entry.Auth != nil,
		}, nil
	}

	if IsURL(ref) {
		normalized := strings.TrimRight(ref, "/")

		// A raw URL that matches a registered remote keeps the registered
		// name, so its cached token survives.
		for name, entry := range r.remotes {
			if strings.TrimRight(entry.URL, "/") == normalized {
				return protocol.ResolvedNode{
					URL:          normalized,
					StableName:   name,
					AuthRequired: entry.Auth != nil,
				}, nil
			}
		}

		return protocol.ResolvedNode{
			URL:        normalized,
			StableName: stableNameForURL(normalized),
		}, nil
	}

	if r.runtime != nil {
		endpoint, err := r.runtime.RPCEndpoint(ctx, ref)
		if err == nil {
			return protocol.ResolvedNode{URL: endpoint, StableName: ref}, nil
		}

		r.logger.Debug("local runtime lookup failed", "node", ref, "error", err)
	}

	return protocol.ResolvedNode{}, fmt.Errorf(
		"node %q not found: not a declared remote node, a URL, or a running local node", ref)
}

// IsRemote reports whether the reference points outside the local runtime,
// where operations like log retrieval are unavailable.
func (r *Resolver) IsRemote(ref string) bool {
	if _, ok := r.remotes[ref]; ok {
		return true
	}

	return IsURL(ref)
}

func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// stableNameForURL derives a cache key for an unregistered URL from its
// host and port, so the same endpoint maps to the same token entry.
func stableNameForURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}

	name := strings.NewReplacer(".", "_", ":", "_").Replace(parsed.Host)

	return "url_" + name
}

var _ protocol.NodeResolver = (*Resolver)(nil)

package client

import (
	"sync"

	"github.com/calimero-network/merobox/pkg/protocol"
)

// Factory hands out one HTTPClient per resolved node, keyed by stable name
// so token and connection reuse survives endpoint changes.
type Factory struct {
	tokens TokenSource

	mu      sync.Mutex
	clients map[string]*HTTPClient
}

func NewFactory(tokens TokenSource) *Factory {
	return &Factory{
		tokens:  tokens,
		clients: make(map[string]*HTTPClient),
	}
}

func (f *Factory) ClientFor(node protocol.ResolvedNode) protocol.Client {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[node.StableName]; ok && c.node.URL == node.URL {
		return c
	}

	c := NewHTTPClient(node, f.tokens)
	f.clients[node.StableName] = c

	return c
}

var _ protocol.ClientFactory = (*Factory)(nil)

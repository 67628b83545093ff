package protocol

import "context"

// ResolvedNode is the outcome of resolving a node reference: where to reach
// it and how to key cached credentials for it.
type ResolvedNode struct {
	// URL is the node's admin API base URL.
	URL string

	// StableName keys the token cache. For remote nodes it is the declared
	// name, never the URL, so rotating endpoints keep their tokens.
	StableName string

	// AuthRequired marks nodes whose admin API sits behind the auth layer.
	AuthRequired bool
}

// NodeResolver maps a node reference from a workflow step to a reachable
// endpoint. References may be local node names, names declared under
// remote_nodes, or raw URLs.
type NodeResolver interface {
	Resolve(ctx context.Context, ref string) (ResolvedNode, error)

	// IsRemote reports whether the reference names a remote node or URL,
	// for which local-runtime operations like log retrieval are unavailable.
	IsRemote(ref string) bool
}

package protocol

import "context"

// Client is the admin API of one node. Every call returns the response
// payload as decoded JSON with the transport envelope already stripped: the
// map is the "data" object on success, or carries an "error" member when the
// node reported a JSON-RPC or admin-API error. A non-nil error means the
// request itself failed (network, auth, malformed response).
type Client interface {
	// InstallApplication installs a WASM application from a local path or a
	// URL and returns its application record.
	InstallApplication(ctx context.Context, path, url string, metadata []byte) (map[string]any, error)

	// CreateContext creates a context for an installed application on the
	// given protocol and returns the context record.
	CreateContext(ctx context.Context, applicationID, protocol string, initParams []byte) (map[string]any, error)

	// CreateIdentity generates a fresh identity keypair on the node.
	CreateIdentity(ctx context.Context) (map[string]any, error)

	// InviteIdentity invites a grantee identity into a context on behalf of
	// the granting identity and returns the invitation payload.
	InviteIdentity(ctx context.Context, contextID, granterID, granteeID string) (map[string]any, error)

	// JoinContext redeems an invitation for the invitee identity.
	JoinContext(ctx context.Context, inviteeID, invitation string) (map[string]any, error)

	// InviteToContextOpen creates an open invitation anyone can redeem.
	InviteToContextOpen(ctx context.Context, contextID, granterID string) (map[string]any, error)

	// JoinContextOpen redeems an open invitation.
	JoinContextOpen(ctx context.Context, contextID, inviteeID, invitation string) (map[string]any, error)

	// Execute calls an application method in a context as the executor
	// identity. Args are already-encoded JSON.
	Execute(ctx context.Context, contextID, method string, args []byte, executorID string) (map[string]any, error)

	// GetProposal fetches one governance proposal in a context.
	GetProposal(ctx context.Context, contextID, proposalID string) (map[string]any, error)

	// ListProposals lists proposals in a context, with pagination args.
	ListProposals(ctx context.Context, contextID string, args map[string]any) (map[string]any, error)

	// GetProposalApprovers lists the identities that approved a proposal.
	GetProposalApprovers(ctx context.Context, contextID, proposalID string) (map[string]any, error)
}

// ClientFactory hands out a Client for a resolved node. Implementations may
// cache clients and auth tokens per stable name.
type ClientFactory interface {
	ClientFor(node ResolvedNode) Client
}

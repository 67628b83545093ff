package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/calimero-network/merobox/pkg/protocol"
)

// MockClient is a mock implementation of protocol.Client interface.
type MockClient struct {
	mock.Mock
}

func payloadOf(args mock.Arguments) (map[string]any, error) {
	payload, _ := args.Get(0).(map[string]any)

	return payload, args.Error(1)
}

func (m *MockClient) InstallApplication(ctx context.Context, path, url string, metadata []byte) (map[string]any, error) {
	return payloadOf(m.Called(ctx, path, url, metadata))
}

func (m *MockClient) CreateContext(ctx context.Context, applicationID, protocolName string, initParams []byte) (map[string]any, error) {
	return payloadOf(m.Called(ctx, applicationID, protocolName, initParams))
}

func (m *MockClient) CreateIdentity(ctx context.Context) (map[string]any, error) {
	return payloadOf(m.Called(ctx))
}

func (m *MockClient) InviteIdentity(ctx context.Context, contextID, granterID, granteeID string) (map[string]any, error) {
	return payloadOf(m.Called(ctx, contextID, granterID, granteeID))
}

func (m *MockClient) JoinContext(ctx context.Context, inviteeID, invitation string) (map[string]any, error) {
	return payloadOf(m.Called(ctx, inviteeID, invitation))
}

func (m *MockClient) InviteToContextOpen(ctx context.Context, contextID, granterID string) (map[string]any, error) {
	return payloadOf(m.Called(ctx, contextID, granterID))
}

func (m *MockClient) JoinContextOpen(ctx context.Context, contextID, inviteeID, invitation string) (map[string]any, error) {
	return payloadOf(m.Called(ctx, contextID, inviteeID, invitation))
}

func (m *MockClient) Execute(ctx context.Context, contextID, method string, args []byte, executorID string) (map[string]any, error) {
	return payloadOf(m.Called(ctx, contextID, method, args, executorID))
}

func (m *MockClient) GetProposal(ctx context.Context, contextID, proposalID string) (map[string]any, error) {
	return payloadOf(m.Called(ctx, contextID, proposalID))
}

func (m *MockClient) ListProposals(ctx context.Context, contextID string, args map[string]any) (map[string]any, error) {
	return payloadOf(m.Called(ctx, contextID, args))
}

func (m *MockClient) GetProposalApprovers(ctx context.Context, contextID, proposalID string) (map[string]any, error) {
	return payloadOf(m.Called(ctx, contextID, proposalID))
}

var _ protocol.Client = (*MockClient)(nil)

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/calimero-network/merobox/pkg/models"
	"github.com/calimero-network/merobox/pkg/protocol"
)

// MockRuntime is a mock implementation of protocol.NodeRuntime interface.
type MockRuntime struct {
	mock.Mock
}

func (m *MockRuntime) Provision(ctx context.Context, spec models.NodeSpec) error {
	return m.Called(ctx, spec).Error(0)
}

func (m *MockRuntime) IsRunning(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)

	return args.Bool(0), args.Error(1)
}

func (m *MockRuntime) Stop(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockRuntime) StopAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockRuntime) RPCEndpoint(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)

	return args.String(0), args.Error(1)
}

func (m *MockRuntime) Logs(ctx context.Context, name string, tail int) (string, error) {
	args := m.Called(ctx, name, tail)

	return args.String(0), args.Error(1)
}

func (m *MockRuntime) VerifyAdminReachable(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockRuntime) ForcePull(ctx context.Context, image string) error {
	return m.Called(ctx, image).Error(0)
}

var _ protocol.NodeRuntime = (*MockRuntime)(nil)

// MockResolver is a mock implementation of protocol.NodeResolver interface.
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, ref string) (protocol.ResolvedNode, error) {
	args := m.Called(ctx, ref)

	node, _ := args.Get(0).(protocol.ResolvedNode)

	return node, args.Error(1)
}

func (m *MockResolver) IsRemote(ref string) bool {
	return m.Called(ref).Bool(0)
}

var _ protocol.NodeResolver = (*MockResolver)(nil)

// StaticClients is a ClientFactory that hands every caller the same client.
type StaticClients struct {
	Client protocol.Client
}

func (s StaticClients) ClientFor(protocol.ResolvedNode) protocol.Client {
	return s.Client
}

var _ protocol.ClientFactory = StaticClients{}

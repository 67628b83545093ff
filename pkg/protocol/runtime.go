// Package protocol defines the contracts between the workflow engine and its
// collaborators: the node runtime, node resolution, and the node admin API.
package protocol

import (
	"context"

	"github.com/calimero-network/merobox/pkg/models"
)

// NodeRuntime provisions and controls local nodes. Implementations own the
// container or process lifecycle; the engine only sequences calls.
type NodeRuntime interface {
	// Provision ensures a node exists and is started, reusing a stopped or
	// running instance unless the caller stopped it first.
	Provision(ctx context.Context, spec models.NodeSpec) error

	// IsRunning reports whether the named node is currently up.
	IsRunning(ctx context.Context, name string) (bool, error)

	// Stop stops one node. Stopping an absent node is not an error.
	Stop(ctx context.Context, name string) error

	// StopAll stops every node this runtime manages.
	StopAll(ctx context.Context) error

	// RPCEndpoint returns the base URL of a node's admin/RPC interface.
	RPCEndpoint(ctx context.Context, name string) (string, error)

	// Logs returns up to tail lines of recent node output for diagnostics.
	Logs(ctx context.Context, name string, tail int) (string, error)

	// VerifyAdminReachable checks that the node's admin API answers, used
	// during the readiness wait after provisioning.
	VerifyAdminReachable(ctx context.Context, name string) error

	// ForcePull refreshes the node image before provisioning.
	ForcePull(ctx context.Context, image string) error
}

// Package docker runs workflow nodes as Docker containers.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/calimero-network/merobox/pkg/log"
	"github.com/calimero-network/merobox/pkg/models"
	"github.com/calimero-network/merobox/pkg/protocol"
)

// DefaultImage is the node image used when a workflow does not pin one.
const DefaultImage = "ghcr.io/calimero-network/merod:prerelease"

const (
	labelManaged  = "calimero.node"
	labelNodeName = "node.name"
	labelChainID  = "chain.id"

	containerP2PPort = "2428/tcp"
	containerRPCPort = "2528/tcp"
)

// Runtime provisions nodes as containers on the local Docker daemon.
// Containers are labeled so StopAll only ever touches nodes this tool
// created.
type Runtime struct {
	docker *client.Client
	http   *http.Client
	logger *slog.Logger

	mu       sync.Mutex
	rpcPorts map[string]int
}

func NewRuntime() (*Runtime, error) {
	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect to docker: %w", err)
	}

	return &Runtime{
		docker:   docker,
		http:     &http.Client{Timeout: 5 * time.Second},
		logger:   log.WithModule("docker"),
		rpcPorts: make(map[string]int),
	}, nil
}

func (r *Runtime) Provision(ctx context.Context, spec models.NodeSpec) error {
	img := spec.Image
	if img == "" {
		img = DefaultImage
	}

	existing, err := r.findContainer(ctx, spec.Name)
	if err != nil {
		return err
	}

	if existing != nil {
		if existing.State == "running" {
			r.logger.Info("reusing running node", "node", spec.Name)
			r.trackPort(spec.Name, existing)

			return nil
		}

		r.logger.Info("starting existing node container", "node", spec.Name)

		if err := r.docker.ContainerStart(ctx, existing.ID, container.StartOptions{}); err != nil {
			return fmt.Errorf("start container %s: %w", spec.Name, err)
		}

		r.trackPort(spec.Name, existing)

		return nil
	}

	if err := r.ensureImage(ctx, img); err != nil {
		return err
	}

	logLevel := spec.LogLevel
	if logLevel == "" {
		logLevel = "info"
	}

	portSet := nat.PortSet{
		containerP2PPort: struct{}{},
		containerRPCPort: struct{}{},
	}

	portMap := nat.PortMap{
		containerP2PPort: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: fmt.Sprintf("%d", spec.P2PPort)}},
		containerRPCPort: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: fmt.Sprintf("%d", spec.RPCPort)}},
	}

	created, err := r.docker.ContainerCreate(ctx,
		&container.Config{
			Image: img,
			Env: []string{
				"CALIMERO_HOME=/app/data",
				"NODE_NAME=" + spec.Name,
				"RUST_LOG=" + logLevel,
			},
			Cmd: []string{
				"--node-name", spec.Name,
				"--home", "/app/data",
			},
			ExposedPorts: portSet,
			Labels: map[string]string{
				labelManaged:  "true",
				labelNodeName: spec.Name,
				labelChainID:  spec.ChainID,
			},
		},
		&container.HostConfig{
			PortBindings: portMap,
			CapAdd:       []string{"CHOWN", "DAC_OVERRIDE", "FOWNER", "SETGID", "SETUID"},
		},
		nil, nil, spec.Name,
	)
	if err != nil {
		return fmt.Errorf("create container %s: %w", spec.Name, err)
	}

	if err := r.docker.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %s: %w", spec.Name, err)
	}

	r.mu.Lock()
	r.rpcPorts[spec.Name] = spec.RPCPort
	r.mu.Unlock()

	r.logger.Info("node container started", "node", spec.Name, "rpc_port", spec.RPCPort)

	return nil
}

func (r *Runtime) IsRunning(ctx context.Context, name string) (bool, error) {
	c, err := r.findContainer(ctx, name)
	if err != nil {
		return false, err
	}

	return c != nil && c.State == "running", nil
}

func (r *Runtime) Stop(ctx context.Context, name string) error {
	c, err := r.findContainer(ctx, name)
	if err != nil || c == nil {
		return err
	}

	timeout := 10
	if err := r.docker.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("stop container %s: %w", name, err)
	}

	r.logger.Info("node stopped", "node", name)

	return nil
}

func (r *Runtime) StopAll(ctx context.Context) error {
	list, err := r.docker.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", labelManaged+"=true")),
	})
	if err != nil {
		return fmt.Errorf("list node containers: %w", err)
	}

	timeout := 10
	for _, c := range list {
		if c.State != "running" {
			continue
		}

		if err := r.docker.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout}); err != nil {
			return fmt.Errorf("stop container %s: %w", c.Labels[labelNodeName], err)
		}
	}

	r.logger.Info("all nodes stopped", "count", len(list))

	return nil
}

func (r *Runtime) RPCEndpoint(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	port, ok := r.rpcPorts[name]
	r.mu.Unlock()

	if !ok {
		c, err := r.findContainer(ctx, name)
		if err != nil {
			return "", err
		}

		if c == nil {
			return "", fmt.Errorf("node %s has no container", name)
		}

		for _, p := range c.Ports {
			if fmt.Sprintf("%d/%s", p.PrivatePort, p.Type) == containerRPCPort {
				port = int(p.PublicPort)

				break
			}
		}

		if port == 0 {
			return "", fmt.Errorf("node %s has no published RPC port", name)
		}

		r.mu.Lock()
		r.rpcPorts[name] = port
		r.mu.Unlock()
	}

	return fmt.Sprintf("http://localhost:%d", port), nil
}

func (r *Runtime) Logs(ctx context.Context, name string, tail int) (string, error) {
	c, err := r.findContainer(ctx, name)
	if err != nil {
		return "", err
	}

	if c == nil {
		return "", fmt.Errorf("node %s has no container", name)
	}

	reader, err := r.docker.ContainerLogs(ctx, c.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
		Tail:       fmt.Sprintf("%d", tail),
	})
	if err != nil {
		return "", fmt.Errorf("fetch logs for %s: %w", name, err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

// VerifyAdminReachable probes the node's admin API health endpoint.
func (r *Runtime) VerifyAdminReachable(ctx context.Context, name string) error {
	endpoint, err := r.RPCEndpoint(ctx, name)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/admin-api/health", nil)
	if err != nil {
		return err
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("admin api not reachable for %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("admin api for %s returned %d", name, resp.StatusCode)
	}

	return nil
}

func (r *Runtime) ForcePull(ctx context.Context, img string) error {
	r.logger.Info("pulling image", "image", img)

	reader, err := r.docker.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()

	// The pull completes only once the response stream is drained.
	_, err = io.Copy(io.Discard, reader)

	return err
}

// ensureImage pulls remote images that are not present locally.
func (r *Runtime) ensureImage(ctx context.Context, img string) error {
	_, err := r.docker.ImageInspect(ctx, img)
	if err == nil {
		return nil
	}

	if !strings.Contains(img, "/") {
		return fmt.Errorf("image %s not found locally", img)
	}

	return r.ForcePull(ctx, img)
}

func (r *Runtime) findContainer(ctx context.Context, name string) (*container.Summary, error) {
	list, err := r.docker.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", "^/"+name+"$")),
	})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	if len(list) == 0 {
		return nil, nil
	}

	return &list[0], nil
}

func (r *Runtime) trackPort(name string, c *container.Summary) {
	for _, p := range c.Ports {
		if fmt.Sprintf("%d/%s", p.PrivatePort, p.Type) == containerRPCPort && p.PublicPort > 0 {
			r.mu.Lock()
			r.rpcPorts[name] = int(p.PublicPort)
			r.mu.Unlock()

			return
		}
	}
}

var _ protocol.NodeRuntime = (*Runtime)(nil)

// Package models defines the core domain models for declarative node workflows.
package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Workflow is a parsed workflow document. It is immutable once execution
// starts; the executor owns all mutable run state separately.
type Workflow struct {
	Name        string                `yaml:"name"         validate:"required"`
	Description string                `yaml:"description"`
	Nodes       NodesSpec             `yaml:"nodes"`
	RemoteNodes map[string]RemoteNode `yaml:"remote_nodes"`
	Steps       []StepSpec            `yaml:"steps"`
	Variables   map[string]any        `yaml:"variables"`

	Restart         bool `yaml:"restart"`
	StopAllNodes    bool `yaml:"stop_all_nodes"`
	ForcePullImage  bool `yaml:"force_pull_image"`
	WaitTimeout     int  `yaml:"wait_timeout"`     // seconds, node readiness
	WorkflowTimeout int  `yaml:"workflow_timeout"` // seconds, whole run (child workflows)
}

// NodesSpec describes the nodes a workflow provisions: either a count with a
// shared prefix, or an explicit list of names.
type NodesSpec struct {
	Count       int      `yaml:"count"`
	Prefix      string   `yaml:"prefix"`
	Names       []string `yaml:"names"`
	Image       string   `yaml:"image"`
	ChainID     string   `yaml:"chain_id"`
	BasePort    int      `yaml:"base_port"`
	BaseRPCPort int      `yaml:"base_rpc_port"`
	LogLevel    string   `yaml:"log_level"`
}

const (
	DefaultNodePrefix  = "calimero-node"
	DefaultChainID     = "testnet-1"
	DefaultBasePort    = 2428
	DefaultBaseRPCPort = 2528
)

// NodeNames expands the spec into the concrete node names, in order.
func (n NodesSpec) NodeNames() []string {
	if n.Count > 0 {
		prefix := n.Prefix
		if prefix == "" {
			prefix = DefaultNodePrefix
		}

		names := make([]string, 0, n.Count)
		for i := range n.Count {
			names = append(names, fmt.Sprintf("%s-%d", prefix, i+1))
		}

		return names
	}

	return n.Names
}

// NodeSpec carries the per-node settings handed to the node runtime when a
// single node is provisioned.
func (n NodesSpec) NodeSpec(index int, name string) NodeSpec {
	chainID := n.ChainID
	if chainID == "" {
		chainID = DefaultChainID
	}

	basePort := n.BasePort
	if basePort == 0 {
		basePort = DefaultBasePort
	}

	baseRPC := n.BaseRPCPort
	if baseRPC == 0 {
		baseRPC = DefaultBaseRPCPort
	}

	return NodeSpec{
		Name:     name,
		Image:    n.Image,
		ChainID:  chainID,
		P2PPort:  basePort + index,
		RPCPort:  baseRPC + index,
		LogLevel: n.LogLevel,
	}
}

// NodeSpec is the provisioning request for one node.
type NodeSpec struct {
	Name     string
	Image    string
	ChainID  string
	P2PPort  int
	RPCPort  int
	LogLevel string
}

// RemoteNode is an already-running node reachable over the network, with
// optional credentials for its auth layer.
type RemoteNode struct {
	URL  string      `yaml:"url" validate:"required"`
	Auth *RemoteAuth `yaml:"auth"`
}

type RemoteAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	APIKey   string `yaml:"api_key"`
}

// StepSpec is one tagged step record from a workflow document. The type tag
// selects the concrete step; everything else stays in Config for the step
// constructor to decode and validate.
type StepSpec struct {
	Type   string
	Name   string
	Config map[string]any
}

func (s *StepSpec) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]any
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if t, ok := raw["type"].(string); ok {
		s.Type = t
	}

	if n, ok := raw["name"].(string); ok {
		s.Name = n
	}

	delete(raw, "type")
	delete(raw, "name")
	s.Config = raw

	return nil
}

func (s StepSpec) MarshalYAML() (any, error) {
	out := make(map[string]any, len(s.Config)+2)
	for k, v := range s.Config {
		out[k] = v
	}

	out["type"] = s.Type
	if s.Name != "" {
		out["name"] = s.Name
	}

	return out, nil
}

// DisplayName is the name used in logs and errors: the declared name, or a
// default derived from the type.
func (s StepSpec) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}

	if s.Type != "" {
		return "unnamed " + s.Type + " step"
	}

	return "unnamed step"
}

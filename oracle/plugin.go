package oracle

import (
	"context"
	"fmt"
	"net/rpc"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	plugin "github.com/hashicorp/go-plugin"

	"github.com/kadirpekel/hector-pml/workflow"
)

// pluginHandshake mirrors pkg/plugins/grpc/loader.go's handshakeConfig
// shape with a PML-specific magic cookie, so a PML oracle plugin can never
// be accidentally dispensed by a hector plugin host or vice versa.
var pluginHandshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "PML_ORACLE_PLUGIN",
	MagicCookieValue: "pml_oracle_v1",
}

// oraclePluginName is the key the plugin map and Dispense call agree on.
const oraclePluginName = "oracle"

// CapabilityOraclePlugin is the go-plugin plugin.Plugin implementation
// shared by host and guest. Unlike pkg/plugins/grpc's adapters (which
// proxy generated protobuf services), this one uses go-plugin's simpler
// net/rpc transport: there is no .proto for a capability oracle in this
// repository to regenerate stubs from, and net/rpc needs none.
type CapabilityOraclePlugin struct {
	Impl workflow.CapabilityOracle
}

func (p *CapabilityOraclePlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &oracleRPCServer{impl: p.Impl}, nil
}

func (p *CapabilityOraclePlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &oracleRPCClient{client: c}, nil
}

// oracleRPCServer runs in the plugin subprocess, dispatching net/rpc calls
// to the real workflow.CapabilityOracle implementation.
type oracleRPCServer struct {
	impl workflow.CapabilityOracle
}

type findCandidatesArgs struct {
	Intent  string
	Context map[string]any
}

func (s *oracleRPCServer) FindCandidates(args findCandidatesArgs, resp *[]string) error {
	ids, err := s.impl.FindCandidates(context.Background(), args.Intent, args.Context)
	*resp = ids
	return err
}

type augmentDAGArgs struct {
	Current        workflow.DAG
	Completed      []string
	NewRequirement string
	Context        map[string]any
}

func (s *oracleRPCServer) AugmentDAG(args augmentDAGArgs, resp *workflow.DAG) error {
	dag, err := s.impl.AugmentDAG(context.Background(), args.Current, args.Completed, args.NewRequirement, args.Context)
	*resp = dag
	return err
}

func (s *oracleRPCServer) NextCapabilities(summary string, resp *[]string) error {
	ids, err := s.impl.NextCapabilities(context.Background(), summary)
	*resp = ids
	return err
}

// oracleRPCClient runs in the host process and implements
// workflow.CapabilityOracle by forwarding each call over net/rpc.
type oracleRPCClient struct {
	client *rpc.Client
}

func (c *oracleRPCClient) FindCandidates(_ context.Context, intent string, workflowContext map[string]any) ([]string, error) {
	var resp []string
	err := c.client.Call("Plugin.FindCandidates", findCandidatesArgs{Intent: intent, Context: workflowContext}, &resp)
	return resp, err
}

func (c *oracleRPCClient) AugmentDAG(_ context.Context, current workflow.DAG, completed []string, newRequirement string, workflowContext map[string]any) (workflow.DAG, error) {
	var resp workflow.DAG
	err := c.client.Call("Plugin.AugmentDAG", augmentDAGArgs{Current: current, Completed: completed, NewRequirement: newRequirement, Context: workflowContext}, &resp)
	return resp, err
}

func (c *oracleRPCClient) NextCapabilities(_ context.Context, workflowSummary string) ([]string, error) {
	var resp []string
	err := c.client.Call("Plugin.NextCapabilities", workflowSummary, &resp)
	return resp, err
}

var _ workflow.CapabilityOracle = (*oracleRPCClient)(nil)

// PluginOracle is a workflow.CapabilityOracle served by an out-of-process
// plugin binary, for deployments that want to swap oracle implementations
// (or language runtimes) without recompiling the host.
//
// Grounded on pkg/plugins/grpc/loader.go's launch/handshake/dispense
// sequence.
type PluginOracle struct {
	client *plugin.Client
	oracle workflow.CapabilityOracle
}

// NewPluginOracle launches the plugin binary at path and dispenses its
// CapabilityOracle implementation.
func NewPluginOracle(path string) (*PluginOracle, error) {
	logger := hclog.New(&hclog.LoggerOptions{Name: "pml-oracle-plugin", Level: hclog.Info})

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: pluginHandshake,
		Plugins:         map[string]plugin.Plugin{oraclePluginName: &CapabilityOraclePlugin{}},
		Cmd:             exec.Command(path),
		Logger:          logger,
		AllowedProtocols: []plugin.Protocol{
			plugin.ProtocolNetRPC,
		},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("[oracle:NewPluginOracle] getting rpc client: %w", err)
	}
	raw, err := rpcClient.Dispense(oraclePluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("[oracle:NewPluginOracle] dispensing plugin: %w", err)
	}
	impl, ok := raw.(workflow.CapabilityOracle)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("[oracle:NewPluginOracle] plugin does not implement CapabilityOracle")
	}
	return &PluginOracle{client: client, oracle: impl}, nil
}

func (p *PluginOracle) FindCandidates(ctx context.Context, intent string, workflowContext map[string]any) ([]string, error) {
	return p.oracle.FindCandidates(ctx, intent, workflowContext)
}

func (p *PluginOracle) AugmentDAG(ctx context.Context, current workflow.DAG, completed []string, newRequirement string, workflowContext map[string]any) (workflow.DAG, error) {
	return p.oracle.AugmentDAG(ctx, current, completed, newRequirement, workflowContext)
}

func (p *PluginOracle) NextCapabilities(ctx context.Context, workflowSummary string) ([]string, error) {
	return p.oracle.NextCapabilities(ctx, workflowSummary)
}

// Close terminates the plugin subprocess.
func (p *PluginOracle) Close() error {
	p.client.Kill()
	return nil
}

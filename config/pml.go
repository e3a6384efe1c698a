// Package config provides configuration types and utilities for the AI agent framework.
// This file contains the PML's own domain-specific configuration surface.
package config

import "fmt"

// ============================================================================
// PML CONFIGURATION
// ============================================================================

// PMLConfig is the top-level configuration for the DAG execution and
// speculation engine, following the same Validate/SetDefaults convention
// as the rest of this package's Config types.
type PMLConfig struct {
	Workspace   WorkspaceConfig   `yaml:"workspace,omitempty"`
	Controller  ControllerConfig  `yaml:"controller,omitempty"`
	Checkpoint  CheckpointConfig  `yaml:"checkpoint,omitempty"`
	Speculation SpeculationConfig `yaml:"speculation,omitempty"`
	Exploration ExplorationConfig `yaml:"exploration,omitempty"`
	Safety      SafetyConfig      `yaml:"safety,omitempty"`
	Transport   TransportConfig   `yaml:"transport,omitempty"`
	Oracle      OracleConfig      `yaml:"oracle,omitempty"`
	TraceStore  TraceStoreConfig  `yaml:"trace_store,omitempty"`
	Observability ObservabilityConfig `yaml:"observability,omitempty"`
}

func (c *PMLConfig) Validate() error {
	if err := c.Workspace.Validate(); err != nil {
		return fmt.Errorf("workspace config: %w", err)
	}
	if err := c.Checkpoint.Validate(); err != nil {
		return fmt.Errorf("checkpoint config: %w", err)
	}
	if err := c.Speculation.Validate(); err != nil {
		return fmt.Errorf("speculation config: %w", err)
	}
	if err := c.Exploration.Validate(); err != nil {
		return fmt.Errorf("exploration config: %w", err)
	}
	return nil
}

func (c *PMLConfig) SetDefaults() {
	c.Workspace.SetDefaults()
	if c.Controller.AILMode == "" {
		c.Controller.AILMode = "on_error"
	}
	if c.Controller.HILMode == "" {
		c.Controller.HILMode = "critical_only"
	}
	if c.Controller.AILTimeoutSeconds == 0 {
		c.Controller.AILTimeoutSeconds = 5
	}
	if c.Controller.HILTimeoutSeconds == 0 {
		c.Controller.HILTimeoutSeconds = 300
	}
	if c.Controller.MaxReplans == 0 {
		c.Controller.MaxReplans = 3
	}
	c.Checkpoint.SetDefaults()
	c.Speculation.SetDefaults()
	c.Exploration.SetDefaults()
}

// WorkspaceConfig bounds the filesystem root a sandboxed code_exec task
// may address; any path escaping Root is rejected (P8).
type WorkspaceConfig struct {
	Root string `yaml:"root,omitempty"`
}

func (c *WorkspaceConfig) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("workspace root cannot be empty")
	}
	return nil
}

func (c *WorkspaceConfig) SetDefaults() {
	if c.Root == "" {
		c.Root = "."
	}
}

// ControllerConfig configures C13's gate policy and concurrency. Mirrors
// workflow.ControllerConfig's fields with YAML tags so it can be loaded
// from a Config document; workflow.BuildController copies these across.
type ControllerConfig struct {
	AILMode           string `yaml:"ail_mode,omitempty"`
	AILTimeoutSeconds int    `yaml:"ail_timeout_seconds,omitempty"`
	HILMode           string `yaml:"hil_mode,omitempty"`
	HILTimeoutSeconds int    `yaml:"hil_timeout_seconds,omitempty"`
	MaxReplans        int    `yaml:"max_replans,omitempty"`
	MaxConcurrency    int    `yaml:"max_concurrency,omitempty"`
}

// CheckpointConfig selects and tunes the checkpoint backend (C5).
type CheckpointConfig struct {
	Backend      string `yaml:"backend,omitempty"` // "memory" | "etcd" | "zk"
	Endpoints    []string `yaml:"endpoints,omitempty"`
	KeyPrefix    string `yaml:"key_prefix,omitempty"`
	KeepLast     int    `yaml:"keep_last,omitempty"`
}

func (c *CheckpointConfig) Validate() error {
	switch c.Backend {
	case "", "memory", "etcd", "zk":
		return nil
	default:
		return fmt.Errorf("unsupported checkpoint backend %q", c.Backend)
	}
}

func (c *CheckpointConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "/pml/checkpoints"
	}
	if c.KeepLast == 0 {
		c.KeepLast = 5
	}
}

// SpeculationConfig tunes C10's cache (C10) and its TTL/sweep interval.
type SpeculationConfig struct {
	Backend           string `yaml:"backend,omitempty"` // "memory" | "etcd"
	TTLSeconds        int    `yaml:"ttl_seconds,omitempty"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds,omitempty"`
	Endpoints         []string `yaml:"endpoints,omitempty"`
}

func (c *SpeculationConfig) Validate() error {
	switch c.Backend {
	case "", "memory", "etcd":
		return nil
	default:
		return fmt.Errorf("unsupported speculation cache backend %q", c.Backend)
	}
}

func (c *SpeculationConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.TTLSeconds == 0 {
		c.TTLSeconds = 300
	}
	if c.SweepIntervalSeconds == 0 {
		c.SweepIntervalSeconds = 60
	}
}

// ExplorationConfig tunes C12's exploratory hybrid executor.
type ExplorationConfig struct {
	MaxDepth       int `yaml:"max_depth,omitempty"`
	MaxConcurrency int `yaml:"max_concurrency,omitempty"`
	PerPathTimeoutSeconds int `yaml:"per_path_timeout_seconds,omitempty"`
}

func (c *ExplorationConfig) Validate() error {
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth cannot be negative")
	}
	return nil
}

func (c *ExplorationConfig) SetDefaults() {
	if c.MaxDepth == 0 {
		c.MaxDepth = 3
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 4
	}
	if c.PerPathTimeoutSeconds == 0 {
		c.PerPathTimeoutSeconds = 10
	}
}

// SafetyConfig selects where C9 loads its tool-permissions table from.
type SafetyConfig struct {
	Source       string `yaml:"source,omitempty"` // "file" | "consul"
	Path         string `yaml:"path,omitempty"`
	ConsulPrefix string `yaml:"consul_prefix,omitempty"`
}

// TransportConfig names the ToolTransport a controller should resolve.
type TransportConfig struct {
	Name string `yaml:"name,omitempty"`
}

// OracleConfig names the CapabilityOracle backend a controller should resolve.
type OracleConfig struct {
	Backend string `yaml:"backend,omitempty"` // "chromem" | "qdrant" | "plugin"
}

// TraceStoreConfig selects C14's learning-signal sink.
type TraceStoreConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite3" | "postgres" | "mysql"
	DSN    string `yaml:"dsn,omitempty"`
}

// ObservabilityConfig tunes the ambient logging/metrics/tracing stack.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level,omitempty"`
	MetricsAddr    string `yaml:"metrics_addr,omitempty"`
	OTLPEndpoint   string `yaml:"otlp_endpoint,omitempty"`
}

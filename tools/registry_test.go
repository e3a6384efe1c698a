package tools

import (
	"context"
	"testing"

	"github.com/kadirpekel/hector-pml/config"
)

func TestToolRegistryRegisterAndExecute(t *testing.T) {
	reg := NewToolRegistry()
	local := NewLocalToolRepository("local")
	if err := local.RegisterTool(NewCommandTool(&config.CommandToolsConfig{
		AllowedCommands:  []string{"echo"},
		WorkingDirectory: ".",
		EnableSandboxing: true,
	})); err != nil {
		t.Fatalf("RegisterTool: %v", err)
	}
	if err := reg.RegisterRepository(local); err != nil {
		t.Fatalf("RegisterRepository: %v", err)
	}

	result, err := reg.ExecuteTool(context.Background(), "execute_command", map[string]interface{}{"command": "echo hi"})
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Error)
	}
}

func TestToolRegistryUnknownTool(t *testing.T) {
	reg := NewToolRegistry()
	_, err := reg.ExecuteTool(context.Background(), "does_not_exist", nil)
	if err == nil {
		t.Fatal("expected an error for an unregistered tool")
	}
}

func TestNewToolRegistryWithConfigRejectsNonLocalRepository(t *testing.T) {
	toolConfig := &config.ToolConfigs{
		Repositories: []config.ToolRepository{
			{Name: "remote", Type: "mcp"},
		},
	}
	_, err := NewToolRegistryWithConfig(toolConfig)
	if err == nil {
		t.Fatal("expected an error for a non-local repository type")
	}
}

func TestNewToolRegistryWithConfigBuildsLocalTools(t *testing.T) {
	toolConfig := &config.ToolConfigs{
		Repositories: []config.ToolRepository{
			{
				Name: "local",
				Type: "local",
				Tools: []config.ToolDefinition{
					{
						Name:    "execute_command",
						Type:    "command",
						Enabled: true,
						Config: map[string]interface{}{
							"allowed_commands":  []interface{}{"echo"},
							"working_directory": ".",
						},
					},
				},
			},
		},
	}

	reg, err := NewToolRegistryWithConfig(toolConfig)
	if err != nil {
		t.Fatalf("NewToolRegistryWithConfig: %v", err)
	}
	if _, err := reg.GetTool("execute_command"); err != nil {
		t.Fatalf("expected execute_command to be registered: %v", err)
	}
}

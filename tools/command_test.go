package tools

import (
	"context"
	"testing"

	"github.com/kadirpekel/hector-pml/config"
)

func TestCommandToolAllowedCommand(t *testing.T) {
	cmd := NewCommandTool(&config.CommandToolsConfig{
		AllowedCommands:  []string{"echo"},
		WorkingDirectory: ".",
		EnableSandboxing: true,
	})

	result, err := cmd.Execute(context.Background(), map[string]interface{}{"command": "echo hello"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
}

func TestCommandToolRejectsDisallowedCommand(t *testing.T) {
	cmd := NewCommandTool(&config.CommandToolsConfig{
		AllowedCommands:  []string{"echo"},
		WorkingDirectory: ".",
		EnableSandboxing: true,
	})

	result, err := cmd.Execute(context.Background(), map[string]interface{}{"command": "rm -rf /"})
	if err == nil {
		t.Fatal("expected an error for a disallowed command")
	}
	if result.Success {
		t.Fatal("expected result.Success == false")
	}
}

func TestCommandToolRequiresCommandParameter(t *testing.T) {
	cmd := NewCommandTool(nil)
	_, err := cmd.Execute(context.Background(), map[string]interface{}{})
	if err == nil {
		t.Fatal("expected an error when command is missing")
	}
}

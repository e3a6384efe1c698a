package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kadirpekel/hector-pml/config"
)

func TestFileWriterToolCreatesFile(t *testing.T) {
	dir := t.TempDir()
	fw := NewFileWriterTool(&config.FileWriterConfig{WorkingDirectory: dir})

	result, err := fw.Execute(context.Background(), map[string]interface{}{
		"path":    "notes.md",
		"content": "hello",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Error)
	}

	data, err := os.ReadFile(filepath.Join(dir, "notes.md"))
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestFileWriterToolBacksUpOnOverwrite(t *testing.T) {
	dir := t.TempDir()
	fw := NewFileWriterTool(&config.FileWriterConfig{WorkingDirectory: dir, BackupOnOverwrite: true})

	ctx := context.Background()
	if _, err := fw.Execute(ctx, map[string]interface{}{"path": "a.txt", "content": "v1"}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	result, err := fw.Execute(ctx, map[string]interface{}{"path": "a.txt", "content": "v2"})
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Error)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt.bak")); err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
}

func TestFileWriterToolRejectsDirectoryTraversal(t *testing.T) {
	dir := t.TempDir()
	fw := NewFileWriterTool(&config.FileWriterConfig{WorkingDirectory: dir})

	_, err := fw.Execute(context.Background(), map[string]interface{}{
		"path":    "../escape.txt",
		"content": "nope",
	})
	if err == nil {
		t.Fatal("expected directory traversal to be rejected")
	}
}

func TestFileWriterToolRejectsDisallowedExtension(t *testing.T) {
	dir := t.TempDir()
	fw := NewFileWriterTool(&config.FileWriterConfig{
		WorkingDirectory:  dir,
		AllowedExtensions: []string{".go"},
	})

	_, err := fw.Execute(context.Background(), map[string]interface{}{
		"path":    "notes.md",
		"content": "x",
	})
	if err == nil {
		t.Fatal("expected extension rejection")
	}
}

func TestNewFileWriterToolWithConfigFromToolDefinition(t *testing.T) {
	dir := t.TempDir()
	toolDef := config.ToolDefinition{
		Name: "write_file",
		Type: "file_writer",
		Config: map[string]interface{}{
			"working_directory":   dir,
			"allowed_extensions":  []interface{}{".txt"},
			"backup_on_overwrite": false,
		},
	}

	fw, err := NewFileWriterToolWithConfig(toolDef)
	if err != nil {
		t.Fatalf("NewFileWriterToolWithConfig: %v", err)
	}
	if fw.config.WorkingDirectory != dir {
		t.Fatalf("expected working directory %q, got %q", dir, fw.config.WorkingDirectory)
	}
	if len(fw.config.AllowedExtensions) != 1 || fw.config.AllowedExtensions[0] != ".txt" {
		t.Fatalf("unexpected allowed extensions: %v", fw.config.AllowedExtensions)
	}
}

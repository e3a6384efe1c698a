package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kadirpekel/hector-pml/config"
)

func TestSearchReplaceToolReplacesUniqueMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.go")
	if err := os.WriteFile(path, []byte("package main\n\nfunc old() {}\n"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	sr := NewSearchReplaceTool(&config.SearchReplaceConfig{WorkingDirectory: dir})
	result, err := sr.Execute(context.Background(), map[string]interface{}{
		"path":       "file.go",
		"old_string": "func old()",
		"new_string": "func renamed()",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Error)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if got := string(data); got != "package main\n\nfunc renamed() {}\n" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestSearchReplaceToolRejectsAmbiguousMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.go")
	if err := os.WriteFile(path, []byte("dup\ndup\n"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	sr := NewSearchReplaceTool(&config.SearchReplaceConfig{WorkingDirectory: dir})
	_, err := sr.Execute(context.Background(), map[string]interface{}{
		"path":       "file.go",
		"old_string": "dup",
		"new_string": "x",
	})
	if err == nil {
		t.Fatal("expected ambiguity error without replace_all")
	}
}

func TestSearchReplaceToolReplaceAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.go")
	if err := os.WriteFile(path, []byte("dup\ndup\n"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	sr := NewSearchReplaceTool(&config.SearchReplaceConfig{WorkingDirectory: dir})
	result, err := sr.Execute(context.Background(), map[string]interface{}{
		"path":        "file.go",
		"old_string":  "dup",
		"new_string":  "x",
		"replace_all": true,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Error)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "x\nx\n" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestSearchReplaceToolRejectsMissingOldString(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.go")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	sr := NewSearchReplaceTool(&config.SearchReplaceConfig{WorkingDirectory: dir})
	_, err := sr.Execute(context.Background(), map[string]interface{}{
		"path":       "file.go",
		"old_string": "not there",
		"new_string": "x",
	})
	if err == nil {
		t.Fatal("expected not-found error")
	}
}

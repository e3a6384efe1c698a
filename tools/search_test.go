package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kadirpekel/hector-pml/config"
)

func seedSearchTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"a.go":        "package a\n\nfunc Widget() {}\n",
		"b.go":        "package b\n\n// widget helper\nfunc helper() {}\n",
		"notes.txt":   "widget notes here\n",
		"sub/c.go":    "package sub\n\nfunc Gadget() {}\n",
	}
	for path, content := range files {
		full := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return dir
}

func TestSearchToolFindsMatches(t *testing.T) {
	dir := seedSearchTree(t)
	st := NewSearchTool(&config.SearchToolConfig{}, dir)

	result, err := st.Execute(context.Background(), map[string]interface{}{
		"query":       "widget",
		"ignore_case": true,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Error)
	}
	if result.Content == "" {
		t.Fatal("expected non-empty search response")
	}
}

func TestSearchToolRequiresQuery(t *testing.T) {
	dir := seedSearchTree(t)
	st := NewSearchTool(&config.SearchToolConfig{}, dir)

	_, err := st.Execute(context.Background(), map[string]interface{}{})
	if err == nil {
		t.Fatal("expected an error when query is missing")
	}
}

func TestSearchToolRespectsPathGlob(t *testing.T) {
	dir := seedSearchTree(t)
	st := NewSearchTool(&config.SearchToolConfig{}, dir)

	resp, err := st.performSearch(context.Background(), SearchRequest{
		Query:    "package",
		PathGlob: "*.txt",
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("performSearch: %v", err)
	}
	if resp == "" {
		t.Fatal("expected a response")
	}
	if !strings.Contains(resp, "\"total\": 0") {
		t.Fatalf("expected no matches outside *.txt, got: %s", resp)
	}
}

func TestSearchToolTruncatesAtLimit(t *testing.T) {
	dir := seedSearchTree(t)
	cfg := &config.SearchToolConfig{DefaultLimit: 1, MaxLimit: 1}
	st := NewSearchTool(cfg, dir)

	result, err := st.Execute(context.Background(), map[string]interface{}{"query": "widget", "ignore_case": true})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got: %s", result.Error)
	}
	if !strings.Contains(result.Content, "\"truncated\": true") {
		t.Fatalf("expected truncated response at limit 1, got: %s", result.Content)
	}
}

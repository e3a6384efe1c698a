package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kadirpekel/hector-pml/config"
)

// ============================================================================
// SEARCH - FILESYSTEM CONTENT SEARCH
// ============================================================================

// SearchTool searches file contents under a root directory, a local stand-in
// for the document-store-backed search the teacher's newer tool subpackages
// perform against an indexed vector store — this module has no embedder
// wired into the tools package, so search here works directly against the
// filesystem instead.
type SearchTool struct {
	config *config.SearchToolConfig
	root   string
}

// SearchRequest represents a search query.
type SearchRequest struct {
	Query      string `json:"query"`
	PathGlob   string `json:"path_glob"`   // optional filename glob filter, e.g. "*.go"
	Limit      int    `json:"limit"`       // max results, default 10
	IgnoreCase bool   `json:"ignore_case"` // case-insensitive match
}

// SearchResult is a single matching line.
type SearchResult struct {
	FilePath   string `json:"file_path"`
	LineNumber int    `json:"line_number"`
	Line       string `json:"line"`
}

// SearchResponse contains search results and metadata.
type SearchResponse struct {
	Results  []SearchResult `json:"results"`
	Total    int            `json:"total"`
	Query    string         `json:"query"`
	Duration time.Duration  `json:"duration"`
	Truncated bool          `json:"truncated"`
}

// NewSearchTool creates a new search tool rooted at root, searching file
// contents beneath it.
func NewSearchTool(searchConfig *config.SearchToolConfig, root string) *SearchTool {
	if searchConfig == nil {
		searchConfig = &config.SearchToolConfig{}
	}
	searchConfig.SetDefaults()
	if root == "" {
		root = "./"
	}
	return &SearchTool{config: searchConfig, root: root}
}

// NewSearchToolWithConfig creates a search tool from a ToolDefinition's
// generic config map. "root" isn't part of config.SearchToolConfig (it's a
// constructor argument, not a persisted setting), so it's read directly
// from the map rather than through decodeToolConfig.
func NewSearchToolWithConfig(toolDef config.ToolDefinition) (*SearchTool, error) {
	searchConfig := &config.SearchToolConfig{}
	root := "./"
	if toolDef.Config != nil {
		if err := decodeToolConfig(toolDef.Config, searchConfig); err != nil {
			return nil, fmt.Errorf("decoding search tool config: %w", err)
		}
		if r, ok := toolDef.Config["root"].(string); ok {
			root = r
		}
	}
	searchConfig.SetDefaults()
	return NewSearchTool(searchConfig, root), nil
}

// performSearch walks t.root, grepping every regular file's content for
// req.Query, applying req.PathGlob and req.Limit.
func (t *SearchTool) performSearch(_ context.Context, req SearchRequest) (string, error) {
	start := time.Now()

	if req.Limit == 0 {
		req.Limit = t.config.DefaultLimit
	}
	if req.Limit > t.config.MaxLimit {
		req.Limit = t.config.MaxLimit
	}

	pattern := regexp.QuoteMeta(req.Query)
	if req.IgnoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("[tools:SearchTool] compiling query: %w", err)
	}

	var results []SearchResult
	truncated := false

	walkErr := filepath.WalkDir(t.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort: skip unreadable entries
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if req.PathGlob != "" {
			if ok, _ := filepath.Match(req.PathGlob, d.Name()); !ok {
				return nil
			}
		}
		if len(results) >= req.Limit {
			truncated = true
			return nil
		}

		f, ferr := os.Open(path)
		if ferr != nil {
			return nil
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			if len(results) >= req.Limit {
				truncated = true
				break
			}
			line := scanner.Text()
			if re.MatchString(line) {
				results = append(results, SearchResult{FilePath: path, LineNumber: lineNo, Line: strings.TrimSpace(line)})
			}
		}
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("[tools:SearchTool] walking %s: %w", t.root, walkErr)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FilePath != results[j].FilePath {
			return results[i].FilePath < results[j].FilePath
		}
		return results[i].LineNumber < results[j].LineNumber
	})

	response := SearchResponse{
		Results:   results,
		Total:     len(results),
		Query:     req.Query,
		Duration:  time.Since(start),
		Truncated: truncated,
	}

	responseJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return "", fmt.Errorf("[tools:SearchTool] marshaling response: %w", err)
	}
	return string(responseJSON), nil
}

// Tool interface implementation

func (t *SearchTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "search",
		Description: "Search file contents under the working directory for a literal query string",
		Parameters: []ToolParameter{
			{Name: "query", Type: "string", Description: "Text to search for", Required: true},
			{Name: "path_glob", Type: "string", Description: "Filename glob filter, e.g. *.go", Required: false},
			{Name: "limit", Type: "number", Description: "Maximum number of results", Required: false, Default: 10},
			{Name: "ignore_case", Type: "boolean", Description: "Case-insensitive match", Required: false, Default: false},
		},
		ServerURL: "local",
	}
}

func (t *SearchTool) GetName() string { return "search" }

func (t *SearchTool) GetDescription() string {
	return "Search file contents under the working directory for a literal query string"
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	start := time.Now()

	query, _ := args["query"].(string)
	if query == "" {
		return ToolResult{Success: false, Error: "query parameter is required", ToolName: "search", ExecutionTime: time.Since(start)},
			fmt.Errorf("query parameter is required")
	}

	req := SearchRequest{
		Query:    query,
		PathGlob: getStringWithDefault(args, "path_glob", ""),
		Limit:    getIntWithDefault(args, "limit", 10),
	}
	if ic, ok := args["ignore_case"].(bool); ok {
		req.IgnoreCase = ic
	}

	content, err := t.performSearch(ctx, req)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error(), ToolName: "search", ExecutionTime: time.Since(start)}, err
	}

	return ToolResult{
		Success:       true,
		Content:       content,
		ToolName:      "search",
		ExecutionTime: time.Since(start),
		Metadata:      map[string]interface{}{"repository": "local", "tool_type": "search"},
	}, nil
}

// Helper functions for parameter extraction, shared with other local tools.

func getStringWithDefault(args map[string]interface{}, key, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

func getIntWithDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

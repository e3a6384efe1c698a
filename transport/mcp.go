package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPTransport is the default workflow.ToolTransport, holding one
// caller-constructed mcp-go client per named MCP server and dispatching a
// task's "server:name" tool id to the matching client's CallTool.
//
// Grounded on the teacher's own pkg/tools/mcp.go (MCPToolSource /
// MCPToolSourceBuilder), re-derived against mark3labs/mcp-go's real client
// instead of the teacher's hand-rolled JSON-RPC-over-HTTP transport. There
// is no builder and no lazy connect: RegisterServer takes a client the
// caller has already built and connected.
type MCPTransport struct {
	mu      sync.RWMutex
	clients map[string]client.MCPClient
}

// NewMCPTransport returns an MCPTransport with no servers registered yet;
// use RegisterServer to add one per tool-server name.
func NewMCPTransport() *MCPTransport {
	return &MCPTransport{clients: map[string]client.MCPClient{}}
}

// RegisterServer attaches an already-constructed mcp-go client under name,
// the value a task's "name:tool" addressing resolves against.
func (t *MCPTransport) RegisterServer(name string, c client.MCPClient) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clients[name] = c
}

// Call implements workflow.ToolTransport.
func (t *MCPTransport) Call(ctx context.Context, tool string, args map[string]any, deadline time.Time) (any, error) {
	server, name, err := splitToolName(tool)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	c, ok := t.clients[server]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no MCP server registered under name %q", server)
	}

	cctx, cancel := withDeadline(ctx, deadline)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := c.CallTool(cctx, req)
	if err != nil {
		return nil, err
	}
	if resp.IsError {
		return nil, &CallError{Tool: tool, Message: contentText(resp.Content), Rejected: true}
	}
	return contentText(resp.Content), nil
}

// contentText flattens an MCP response's content blocks into one string;
// callers that need structured output should have the tool return JSON
// text, which the PML's resolver then treats as an opaque string output
// (tools wanting richer structure can base64/JSON-encode and the sandbox
// or a downstream tool re-parses it).
func contentText(content []mcp.Content) string {
	out := ""
	for _, c := range content {
		if tc, ok := mcp.AsTextContent(c); ok {
			out += tc.Text
		}
	}
	return out
}

// Package mcpserver wires the Dispatcher and Public Surface into an MCP
// stdio server using github.com/mark3labs/mcp-go, the transport spec.md
// §6.1 names. The teacher only ever speaks MCP as a client
// (internal/mcp/client.go); this package is grounded instead on the
// server-side idiom shown by other_examples/41924616_Azure-
// containerization-assist__pkg-service-registrar-tools.go.go (mcp.Tool
// literals with an explicit ToolInputSchema, registered via
// server.AddTool) and other_examples/1159e16d_gavlooth-reasoning-tools__
// main.go.go (server.NewMCPServer + server.ServeStdio).
package mcpserver

import (
	"context"
	"encoding/json"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/zenmcp/zen/internal/dispatch"
	"github.com/zenmcp/zen/internal/surface"
	"github.com/zenmcp/zen/internal/toolspec"
)

// Server wraps the underlying mcp-go server with the registries it
// registers tools from.
type Server struct {
	mcp        *server.MCPServer
	dispatcher *dispatch.Dispatcher
	surface    *surface.Surface
}

// New builds a Server advertising every tool visible through the
// dispatcher's registry, plus the three utility tools from surface.
func New(name, version string, dispatcher *dispatch.Dispatcher, srf *surface.Surface) *Server {
	s := &Server{
		mcp:        server.NewMCPServer(name, version, server.WithToolCapabilities(true)),
		dispatcher: dispatcher,
		surface:    srf,
	}
	s.registerDomainTools()
	s.registerUtilityTools()
	return s
}

// ServeStdio blocks, serving MCP requests over stdin/stdout until the
// transport errors or stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerDomainTools() {
	for _, tool := range s.dispatcher.Registry.List() {
		tool := tool
		s.mcp.AddTool(toMCPTool(tool), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return s.handleDomainTool(ctx, tool.Name, req)
		})
	}
}

func (s *Server) handleDomainTool(ctx context.Context, name string, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}
	env := s.dispatcher.Dispatch(ctx, name, raw)
	body, err := json.Marshal(env)
	if err != nil {
		log.Printf("[MCPServer] WARNING: failed to marshal envelope for tool %s: %v", name, err)
		return mcp.NewToolResultError("internal error serializing response"), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) registerUtilityTools() {
	s.mcp.AddTool(mcp.Tool{
		Name:        "list_tools",
		Description: "Lists every enabled tool and its JSON schema.",
		InputSchema: mcp.ToolInputSchema{Type: "object"},
	}, func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(s.surface.ListTools())
	})

	s.mcp.AddTool(mcp.Tool{
		Name:        "version",
		Description: "Reports the server version, configured providers, and enabled tools.",
		InputSchema: mcp.ToolInputSchema{Type: "object"},
	}, func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(s.surface.Version())
	})

	s.mcp.AddTool(mcp.Tool{
		Name:        "listmodels",
		Description: "Lists the model catalogue filtered by current restrictions.",
		InputSchema: mcp.ToolInputSchema{Type: "object"},
	}, func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(s.surface.ListModels())
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// toMCPTool converts a toolspec.Tool's JSON-schema-object raw bytes into an
// mcp.Tool's ToolInputSchema representation.
func toMCPTool(t toolspec.Tool) mcp.Tool {
	schema := mcp.ToolInputSchema{Type: "object"}
	if len(t.Schema) > 0 {
		var decoded struct {
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		}
		if err := json.Unmarshal(t.Schema, &decoded); err == nil {
			schema.Properties = decoded.Properties
			schema.Required = decoded.Required
		}
	}
	return mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

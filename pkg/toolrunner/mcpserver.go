package toolrunner

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/makercode/maker/pkg/engine/config"
)

// NewMCPServer exposes every configured ToolDefinition as an MCP tool,
// in the teacher's registerXTool/mcp.AddTool pattern (pkg/cli/mcp_server.go),
// so an external MCP-speaking agent can invoke the same tools the engine
// itself dispatches through Runner.Execute.
func NewMCPServer(runner *Runner, tools []config.ToolDefinition, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "maker",
		Version: version,
	}, &mcp.ServerOptions{
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	})

	for _, def := range tools {
		registerTool(server, runner, def)
	}
	return server
}

// toolArgs is the loose argument bag every registered tool accepts; each
// ToolDefinition's CommandTemplate decides which keys it actually uses.
type toolArgs struct {
	Path    string `json:"path,omitempty" jsonschema:"Target file or directory path"`
	Content string `json:"content,omitempty" jsonschema:"Content for tools that write"`
	Extra   string `json:"extra,omitempty" jsonschema:"Additional free-form argument"`
}

func registerTool(server *mcp.Server, runner *Runner, def config.ToolDefinition) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        def.Name,
		Description: def.Description,
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint:    !def.RequiresApproval,
			DestructiveHint: boolPtr(def.RequiresApproval),
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args toolArgs) (*mcp.CallToolResult, any, error) {
		arguments := map[string]string{
			"path":    args.Path,
			"content": args.Content,
			"extra":   args.Extra,
		}
		stdout, err := runner.Execute(ctx, def, arguments, ".", "")
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: stdout}},
		}, nil, nil
	})
}

func boolPtr(b bool) *bool { return &b }

// Package mcpserver exposes the question flow as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ServerName    = "chatdb"
	ServerVersion = "1.0.0"

	schemaResourceURI = "chatdb://schema"
)

type Asker interface {
	Ask(ctx context.Context, question string) string
}

type Consultant interface {
	Answer(ctx context.Context, prompt string) (string, error)
}

type TableExporter interface {
	TableJSON(ctx context.Context, table, where string) (string, error)
}

// Deps wires the tools. Consultant and Exporter are optional; their tools are
// only registered when set.
type Deps struct {
	Asker      Asker
	Consultant Consultant
	Exporter   TableExporter
	SchemaHint string
}

func New(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("chatdb answers natural-language questions about the tables described by the chatdb://schema resource."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_about_data",
			mcp.WithDescription("Answer a natural-language question using read-only SQL against the configured database."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
		),
		askAboutData(deps),
	)

	if deps.Consultant != nil {
		s.AddTool(
			mcp.NewTool("consult_table",
				mcp.WithDescription("Ask the consultant persona a question about the configured table."),
				mcp.WithString("prompt", mcp.Description("The prompt for the consultant"), mcp.Required()),
			),
			consultTable(deps),
		)
	}

	if deps.Exporter != nil {
		s.AddTool(
			mcp.NewTool("export_table",
				mcp.WithDescription("Return a whole table as a JSON array of row objects."),
				mcp.WithString("table", mcp.Description("Table name, optionally schema-qualified"), mcp.Required()),
			),
			exportTable(deps),
		)
	}

	s.AddResource(
		mcp.NewResource(
			schemaResourceURI,
			"Queryable schema",
			mcp.WithResourceDescription("Tables and columns the question flow may query"),
			mcp.WithMIMEType("text/plain"),
		),
		schemaResource(deps),
	)

	return s
}

func askAboutData(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return toolError("question is required"), nil
		}
		if deps.Asker == nil {
			return toolError("question answering is not configured"), nil
		}
		return toolText(deps.Asker.Ask(ctx, question)), nil
	}
}

func consultTable(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return toolError("prompt is required"), nil
		}
		answer, err := deps.Consultant.Answer(ctx, prompt)
		if err != nil {
			return toolError(fmt.Sprintf("consultant failed: %v", err)), nil
		}
		return toolText(answer), nil
	}
}

func exportTable(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return toolError("table is required"), nil
		}
		// Tool arguments come from a model; nothing here reaches a WHERE clause.
		payload, err := deps.Exporter.TableJSON(ctx, table, "")
		if err != nil {
			return toolError(fmt.Sprintf("export failed: %v", err)), nil
		}
		return toolText(payload), nil
	}
}

func schemaResource(deps Deps) server.ResourceHandlerFunc {
	return func(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     deps.SchemaHint,
			},
		}, nil
	}
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

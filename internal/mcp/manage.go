package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/pgmcp/internal/paramschema"
	"github.com/hazyhaar/pgmcp/internal/response"
	"github.com/hazyhaar/pgmcp/pkg/audit"
	"github.com/hazyhaar/pgmcp/pkg/mcprt"
)

// --- save_query ---

func registerSaveQuery(srv *server.MCPServer, reg *mcprt.Registry, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tool_name": map[string]string{
				"type":        "string",
				"description": "Name for the new tool: lowercase snake_case, starting with a letter",
			},
			"description": map[string]string{
				"type":        "string",
				"description": "Human-facing description of what the query does",
			},
			"sql_query": map[string]string{
				"type":        "string",
				"description": "SQL template with :name placeholders",
			},
			"parameter_schema": map[string]any{
				"type":        "object",
				"description": "JSON Schema describing the named parameters (types, required, defaults)",
			},
			"overwrite": map[string]any{
				"type":        "boolean",
				"description": "Replace an existing tool of the same name",
				"default":     false,
			},
		},
		"required": []string{"tool_name", "description", "sql_query"},
	})
	tool := mcp.NewToolWithRawSchema("save_query",
		"Save a parameterized query as a durable, independently callable tool", schema)

	srv.AddTool(tool, response.Handler("save_query", auditLog, saveQueryBody(reg)))
}

func saveQueryBody(reg *mcprt.Registry) response.Body {
	return func(ctx context.Context, op *response.Op, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		// A supplied schema must be structurally valid, whatever JSON shape it
		// arrived as. Checked here because an explicit null decodes to nil and
		// would otherwise be indistinguishable from an omitted schema.
		paramSchema, present := args["parameter_schema"]
		if present && !paramschema.IsValidSchema(paramSchema) {
			return nil, fmt.Errorf("parameter_schema is not a structurally valid schema object")
		}

		def, created, err := reg.Save(ctx, mcprt.SaveRequest{
			Name:            stringArg(args, "tool_name"),
			Description:     stringArg(args, "description"),
			SQLTemplate:     stringArg(args, "sql_query"),
			ParameterSchema: paramSchema,
			Overwrite:       boolArg(args, "overwrite"),
		}, op.Stage)
		if err != nil {
			return nil, err
		}

		verb := "Updated"
		if created {
			verb = "Created"
		}
		if len(def.ParameterOrder) == 0 {
			return response.Text("%s tool %q (no parameters).", verb, def.Name), nil
		}
		return response.Text("%s tool %q (%d parameters: %s).",
			verb, def.Name, len(def.ParameterOrder), strings.Join(def.ParameterOrder, ", ")), nil
	}
}

// --- delete_saved_query ---

func registerDeleteSavedQuery(srv *server.MCPServer, reg *mcprt.Registry, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tool_name": map[string]string{"type": "string", "description": "Saved tool to delete"},
		},
		"required": []string{"tool_name"},
	})
	tool := mcp.NewToolWithRawSchema("delete_saved_query", "Delete a saved query tool", schema)

	srv.AddTool(tool, response.Handler("delete_saved_query", auditLog,
		func(ctx context.Context, op *response.Op, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name := stringArg(req.GetArguments(), "tool_name")
			if name == "" {
				return nil, fmt.Errorf("tool_name is required")
			}
			op.Stage("removing tool")
			if err := reg.Delete(name); err != nil {
				return nil, err
			}
			return response.Text("Deleted tool %q.", name), nil
		}))
}

// --- list_saved_queries ---

func registerListSavedQueries(srv *server.MCPServer, reg *mcprt.Registry, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{"type": "object", "properties": map[string]any{}})
	tool := mcp.NewToolWithRawSchema("list_saved_queries", "List all saved query tools", schema)

	srv.AddTool(tool, response.Handler("list_saved_queries", auditLog,
		func(ctx context.Context, op *response.Op, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			defs := reg.List()
			if len(defs) == 0 {
				return response.Text("No saved queries found."), nil
			}
			var b strings.Builder
			for _, def := range defs {
				fmt.Fprintf(&b, "%s: %s\n", def.Name, def.Description)
			}
			return response.Text("%s", b.String()), nil
		}))
}

// --- show_saved_query ---

func registerShowSavedQuery(srv *server.MCPServer, reg *mcprt.Registry, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tool_name": map[string]string{"type": "string", "description": "Saved tool to show"},
		},
		"required": []string{"tool_name"},
	})
	tool := mcp.NewToolWithRawSchema("show_saved_query",
		"Show the full persisted definition of a saved query tool", schema)

	srv.AddTool(tool, response.Handler("show_saved_query", auditLog,
		func(ctx context.Context, op *response.Op, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name := stringArg(req.GetArguments(), "tool_name")
			if name == "" {
				return nil, fmt.Errorf("tool_name is required")
			}
			def, ok := reg.Get(name)
			if !ok {
				return nil, fmt.Errorf("%w: %s", mcprt.ErrNotFound, name)
			}
			return response.JSON(def)
		}))
}

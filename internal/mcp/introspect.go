package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/pgmcp/internal/response"
	"github.com/hazyhaar/pgmcp/pkg/audit"
)

func schemaOnlyInput() json.RawMessage {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"schema": map[string]string{
				"type":        "string",
				"description": "Schema name (defaults to public)",
			},
		},
	})
	return schema
}

// --- list_schemas ---

func registerListSchemas(srv *server.MCPServer, meta Introspector, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{"type": "object", "properties": map[string]any{}})
	tool := mcp.NewToolWithRawSchema("list_schemas", "List all database schemas", schema)

	srv.AddTool(tool, response.Handler("list_schemas", auditLog,
		func(ctx context.Context, op *response.Op, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			op.Stage("querying catalog")
			schemas, err := meta.ListSchemas(ctx)
			if err != nil {
				return nil, err
			}
			return response.JSON(map[string]any{"schemas": schemas, "count": len(schemas)})
		}))
}

// --- list_tables ---

func registerListTables(srv *server.MCPServer, meta Introspector, auditLog audit.Logger) {
	tool := mcp.NewToolWithRawSchema("list_tables", "List tables in a schema", schemaOnlyInput())

	srv.AddTool(tool, response.Handler("list_tables", auditLog,
		func(ctx context.Context, op *response.Op, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			schema := schemaArg(req.GetArguments())
			op.Stage("querying catalog")
			tables, err := meta.ListTables(ctx, schema)
			if err != nil {
				return nil, err
			}
			return response.JSON(map[string]any{"schema": schema, "tables": tables, "count": len(tables)})
		}))
}

// --- describe_table ---

func registerDescribeTable(srv *server.MCPServer, meta Introspector, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"table": map[string]string{"type": "string", "description": "Table to describe"},
			"schema": map[string]string{
				"type":        "string",
				"description": "Schema name (defaults to public)",
			},
		},
		"required": []string{"table"},
	})
	tool := mcp.NewToolWithRawSchema("describe_table",
		"Describe the columns of a table", schema)

	srv.AddTool(tool, response.Handler("describe_table", auditLog,
		func(ctx context.Context, op *response.Op, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			table := stringArg(args, "table")
			if table == "" {
				return nil, fmt.Errorf("table is required")
			}
			op.Stage("querying catalog")
			desc, err := meta.DescribeTable(ctx, schemaArg(args), table)
			if err != nil {
				return nil, err
			}
			return response.JSON(desc)
		}))
}

// --- list_views ---

func registerListViews(srv *server.MCPServer, meta Introspector, auditLog audit.Logger) {
	tool := mcp.NewToolWithRawSchema("list_views", "List views in a schema", schemaOnlyInput())

	srv.AddTool(tool, response.Handler("list_views", auditLog,
		func(ctx context.Context, op *response.Op, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			schema := schemaArg(req.GetArguments())
			op.Stage("querying catalog")
			views, err := meta.ListViews(ctx, schema)
			if err != nil {
				return nil, err
			}
			return response.JSON(map[string]any{"schema": schema, "views": views, "count": len(views)})
		}))
}

// --- describe_view ---

func registerDescribeView(srv *server.MCPServer, meta Introspector, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"view": map[string]string{"type": "string", "description": "View to describe"},
			"schema": map[string]string{
				"type":        "string",
				"description": "Schema name (defaults to public)",
			},
		},
		"required": []string{"view"},
	})
	tool := mcp.NewToolWithRawSchema("describe_view",
		"Describe the columns and definition of a view", schema)

	srv.AddTool(tool, response.Handler("describe_view", auditLog,
		func(ctx context.Context, op *response.Op, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			view := stringArg(args, "view")
			if view == "" {
				return nil, fmt.Errorf("view is required")
			}
			op.Stage("querying catalog")
			desc, err := meta.DescribeView(ctx, schemaArg(args), view)
			if err != nil {
				return nil, err
			}
			return response.JSON(desc)
		}))
}

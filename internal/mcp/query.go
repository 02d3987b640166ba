package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/pgmcp/internal/response"
	"github.com/hazyhaar/pgmcp/internal/sqlparams"
	"github.com/hazyhaar/pgmcp/pkg/audit"
	"github.com/hazyhaar/pgmcp/pkg/mcprt"
)

// --- execute_query ---

func registerExecuteQuery(srv *server.MCPServer, exec mcprt.Executor, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]string{
				"type":        "string",
				"description": "SQL to execute. Use :name placeholders for parameters; ::type casts pass through untouched.",
			},
			"params": map[string]any{
				"type":        "object",
				"description": "Values for the :name placeholders, keyed by name",
			},
		},
		"required": []string{"query"},
	})
	tool := mcp.NewToolWithRawSchema("execute_query",
		"Run an ad-hoc SQL query with optional named parameters", schema)

	srv.AddTool(tool, response.Handler("execute_query", auditLog, executeQueryBody(exec)))
}

// executeQueryBody synthesizes a definition from the request text and runs it
// through the same handler path as any saved tool. No parameter schema is
// declared, so values pass through unvalidated and absent names bind as NULL.
func executeQueryBody(exec mcprt.Executor) response.Body {
	return func(ctx context.Context, op *response.Op, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		query := stringArg(args, "query")
		if query == "" {
			return nil, fmt.Errorf("query is required")
		}
		params, _ := args["params"].(map[string]any)

		op.Stage("deriving positional SQL")
		prepared, order := sqlparams.Parse(query)
		def := &mcprt.ToolDefinition{
			Name:           "execute_query",
			SQLTemplate:    query,
			SQLPrepared:    prepared,
			ParameterOrder: order,
		}

		result, err := mcprt.NewHandler(exec, def)(ctx, params, op.Stage)
		if err != nil {
			return nil, err
		}
		return response.JSON(result)
	}
}

// Package mcp registers the built-in pgmcp tools on an MCP server: ad-hoc
// query execution, catalog introspection, and the saved-query management
// surface.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/pgmcp/internal/config"
	"github.com/hazyhaar/pgmcp/internal/db"
	"github.com/hazyhaar/pgmcp/pkg/audit"
	"github.com/hazyhaar/pgmcp/pkg/mcprt"
)

// ProtectedTools are the built-in tool names that save and delete lifecycle
// operations must always refuse to touch, regardless of toolset selection.
var ProtectedTools = []string{
	"execute_query",
	"save_query",
	"delete_saved_query",
	"list_saved_queries",
	"show_saved_query",
	"list_schemas",
	"list_tables",
	"describe_table",
	"list_views",
	"describe_view",
}

// Instructions is the server-level guidance sent to connecting clients.
const Instructions = "This MCP server exposes a PostgreSQL database. Run ad-hoc SQL with " +
	"execute_query using :name placeholders for parameters, explore the catalog with the " +
	"list/describe tools, and turn a parameterized query into a durable tool of its own " +
	"with save_query. Saved tools appear in the tool list immediately and survive restarts."

// Introspector answers catalog metadata queries. *db.DB implements it; tests
// substitute fakes.
type Introspector interface {
	ListSchemas(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, schema string) ([]string, error)
	DescribeTable(ctx context.Context, schema, table string) (*db.TableDescription, error)
	ListViews(ctx context.Context, schema string) ([]string, error)
	DescribeView(ctx context.Context, schema, view string) (*db.ViewDescription, error)
}

// RegisterTools installs the built-in tool groups selected by toolsets:
// everything for "all", introspection plus execute_query for "readonly",
// nothing for "none". Dynamic tools are the registry's business and register
// regardless of this switch.
func RegisterTools(srv *server.MCPServer, exec mcprt.Executor, meta Introspector, reg *mcprt.Registry, auditLog audit.Logger, toolsets string) {
	if toolsets == config.ToolsetNone {
		return
	}

	registerExecuteQuery(srv, exec, auditLog)
	registerListSchemas(srv, meta, auditLog)
	registerListTables(srv, meta, auditLog)
	registerDescribeTable(srv, meta, auditLog)
	registerListViews(srv, meta, auditLog)
	registerDescribeView(srv, meta, auditLog)

	if toolsets != config.ToolsetAll {
		return
	}

	registerSaveQuery(srv, reg, auditLog)
	registerDeleteSavedQuery(srv, reg, auditLog)
	registerListSavedQueries(srv, reg, auditLog)
	registerShowSavedQuery(srv, reg, auditLog)
}

// --- helpers ---

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// schemaArg returns the schema argument or the catalog default.
func schemaArg(args map[string]any) string {
	if s := stringArg(args, "schema"); s != "" {
		return s
	}
	return db.DefaultSchema
}

package mcprt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/pgmcp/internal/paramschema"
	"github.com/hazyhaar/pgmcp/internal/response"
	"github.com/hazyhaar/pgmcp/internal/sqlparams"
	"github.com/hazyhaar/pgmcp/pkg/audit"
)

// liveHandle is the opaque live registration of one tool on the MCP server.
// Update replaces tool and handler in place, preserving the protocol-level
// identity of the original registration; Remove deregisters it.
type liveHandle struct {
	srv  *server.MCPServer
	name string
}

func (h *liveHandle) Update(tool mcp.Tool, fn server.ToolHandlerFunc) {
	h.srv.AddTool(tool, fn)
}

func (h *liveHandle) Remove() {
	h.srv.DeleteTools(h.name)
}

type entry struct {
	def    *ToolDefinition
	handle *liveHandle
}

// Registry owns the set of currently callable dynamic tools. It is the
// authority for liveness: lifecycle operations consult the registry, never
// the store, to decide whether a name exists. Lifecycle mutations serialize
// on mu so the derive-persist-register sequence never interleaves; reads
// observe the map between mutations.
type Registry struct {
	srv       *server.MCPServer
	store     *Store
	exec      Executor
	auditLog  audit.Logger
	protected map[string]bool

	mu    sync.Mutex
	tools map[string]*entry
}

// NewRegistry creates a registry over an MCP server, a definition store, and
// a query executor. protected names can never be saved over or deleted.
func NewRegistry(srv *server.MCPServer, store *Store, exec Executor, auditLog audit.Logger, protected []string) *Registry {
	p := make(map[string]bool, len(protected))
	for _, name := range protected {
		p[name] = true
	}
	return &Registry{
		srv:       srv,
		store:     store,
		exec:      exec,
		auditLog:  auditLog,
		protected: p,
		tools:     make(map[string]*entry),
	}
}

// SaveRequest is the caller-supplied half of a definition; the derived half
// (prepared SQL, parameter order) is computed on every save. ParameterSchema
// is any so a malformed value (bare string, number, array) reaches structural
// validation instead of being lost to a type assertion upstream; nil means no
// schema was supplied.
type SaveRequest struct {
	Name            string
	Description     string
	SQLTemplate     string
	ParameterSchema any
	Overwrite       bool
}

// Save creates or fully replaces a tool: validate, derive, persist, register,
// in that order. Persist-before-register is deliberate: a definition that
// persisted but failed to register still exists for a later retry, which
// beats a live tool with no durable backing. If persistence fails, nothing is
// registered. Returns the stored definition and whether it was newly created.
func (r *Registry) Save(ctx context.Context, req SaveRequest, stage StageFunc) (*ToolDefinition, bool, error) {
	report := func(s string) {
		if stage != nil {
			stage(s)
		}
	}

	if !ValidToolName(req.Name) {
		return nil, false, fmt.Errorf("invalid tool name %q: must be lowercase snake_case starting with a letter", req.Name)
	}
	if r.protected[req.Name] {
		return nil, false, fmt.Errorf("%w: %s is a built-in tool", ErrProtected, req.Name)
	}
	if strings.TrimSpace(req.SQLTemplate) == "" {
		return nil, false, fmt.Errorf("sql_query must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.tools[req.Name]
	if exists && !req.Overwrite {
		return nil, false, fmt.Errorf("%w: %s (pass overwrite=true to replace it)", ErrExists, req.Name)
	}

	report("validating parameter schema")
	var schema map[string]any
	if req.ParameterSchema != nil {
		if !paramschema.IsValidSchema(req.ParameterSchema) {
			return nil, false, fmt.Errorf("parameter_schema is not a structurally valid schema object")
		}
		schema = req.ParameterSchema.(map[string]any)
	}

	report("deriving positional SQL")
	prepared, order := sqlparams.Parse(req.SQLTemplate)

	def := &ToolDefinition{
		Name:            req.Name,
		Description:     req.Description,
		SQLTemplate:     req.SQLTemplate,
		SQLPrepared:     prepared,
		ParameterSchema: schema,
		ParameterOrder:  order,
	}

	report("persisting definition")
	if err := r.store.Save(def); err != nil {
		return nil, false, err
	}

	report("registering tool")
	r.register(def)

	slog.Info("dynamic tool saved", "tool", def.Name, "params", len(order), "created", !exists)
	return def, !exists, nil
}

// Delete removes a tool. Protected names always refuse before anything is
// touched. Deregistration happens before file deletion: if the file cleanup
// fails, the tool is already uncallable and the error names the stale file
// instead of being swallowed.
func (r *Registry) Delete(name string) error {
	if r.protected[name] {
		return fmt.Errorf("%w: %s", ErrProtected, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.tools[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	e.handle.Remove()
	delete(r.tools, name)

	if err := r.store.Delete(name); err != nil {
		return fmt.Errorf("tool %s deregistered, but its backing file could not be removed (retry delete to clean up): %w", name, err)
	}

	slog.Info("dynamic tool deleted", "tool", name)
	return nil
}

// Get returns the live definition for name, if registered.
func (r *Registry) Get(name string) (*ToolDefinition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return e.def, true
}

// List returns every live definition, sorted by name.
func (r *Registry) List() []*ToolDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ToolDefinition, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadPersisted loads every stored definition at startup and registers it.
// Prepared SQL and parameter order are re-derived from the template; a record
// whose derived fields drifted is rewritten so the on-disk invariant holds
// without manual repair.
func (r *Registry) LoadPersisted(ctx context.Context) error {
	defs, err := r.store.LoadAll()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		def := defs[name]
		prepared, order := sqlparams.Parse(def.SQLTemplate)
		if prepared != def.SQLPrepared || !slices.Equal(order, def.ParameterOrder) {
			slog.Warn("re-deriving stale prepared SQL", "tool", name)
			def.SQLPrepared = prepared
			def.ParameterOrder = order
			if err := r.store.Save(def); err != nil {
				return err
			}
		}
		r.register(def)
	}

	slog.Info("persisted tools loaded", "count", len(defs))
	return nil
}

// register builds the live MCP tool and handler for def and installs it,
// replacing any previous registration of the same name in place. Callers hold
// r.mu. An invocation already in flight keeps the handler it captured at
// dispatch; only invocations starting after the update see the new behavior.
func (r *Registry) register(def *ToolDefinition) {
	tool := mcp.NewToolWithRawSchema(def.Name, def.Description, rawSchema(def.ParameterSchema))
	handler := NewHandler(r.exec, def)

	fn := response.Handler(def.Name, r.auditLog, func(ctx context.Context, op *response.Op, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := handler(ctx, req.GetArguments(), op.Stage)
		if err != nil {
			return nil, err
		}
		return response.JSON(result)
	})

	h := &liveHandle{srv: r.srv, name: def.Name}
	h.Update(tool, fn)
	r.tools[def.Name] = &entry{def: def, handle: h}
}

func rawSchema(schema map[string]any) json.RawMessage {
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return data
}

// Package response builds the uniform MCP response envelope: every tool
// handler runs under a wrapper that logs start/finish markers, tracks the
// operation's current stage, formats any failure as an error result annotated
// with that stage, and emits an audit entry. No error ever escapes a tool
// boundary unformatted.
package response

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/pgmcp/pkg/audit"
)

// Op tracks one in-flight tool invocation. Bodies report progress via Stage;
// the last reported stage is folded into the error envelope, so "failed at
// resolving type names" is distinguishable from "failed at executing query".
type Op struct {
	Tool  string
	stage string
}

// Stage records the operation's current stage.
func (o *Op) Stage(stage string) {
	o.stage = stage
	slog.Debug("tool stage", "tool", o.Tool, "stage", stage)
}

// Body is a tool handler body running under the envelope.
type Body func(ctx context.Context, op *Op, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Handler wraps body into a ToolHandlerFunc carrying the envelope. A body
// error becomes an error result naming the tool, the last stage, and the
// cause; it is never propagated as a protocol error.
func Handler(tool string, auditLog audit.Logger, body Body) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		op := &Op{Tool: tool}
		start := time.Now()
		slog.Info("tool call started", "tool", tool)

		res, err := body(ctx, op, req)
		if err != nil {
			res = failure(op, err)
		}
		if res == nil {
			res = failure(op, fmt.Errorf("handler produced no result"))
		}

		status := "success"
		errText := ""
		if res.IsError {
			errText = resultText(res)
			status = "error"
		}
		slog.Info("tool call finished",
			"tool", tool,
			"status", status,
			"duration", time.Since(start),
		)

		if auditLog != nil {
			entry := &audit.Entry{
				Action:     tool,
				DurationMs: time.Since(start).Milliseconds(),
				Status:     status,
				Error:      errText,
			}
			if args := req.GetArguments(); len(args) > 0 {
				if data, err := json.Marshal(args); err == nil {
					entry.Parameters = string(data)
				}
			}
			auditLog.LogAsync(entry)
		}

		return res, nil
	}
}

func failure(op *Op, err error) *mcp.CallToolResult {
	if op.stage != "" {
		return mcp.NewToolResultError(fmt.Sprintf("%s failed at %s: %v", op.Tool, op.stage, err))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", op.Tool, err))
}

// JSON renders data as an indented-JSON text result.
func JSON(data any) (*mcp.CallToolResult, error) {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(content)), nil
}

// Text renders a plain text result.
func Text(format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultText(fmt.Sprintf(format, args...))
}

func resultText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if t, ok := c.(mcp.TextContent); ok {
			return t.Text
		}
	}
	return ""
}

// Package audit records every tool invocation to an append-only JSON Lines
// trail. Logging is asynchronous and lossy under pressure: an operation is
// never blocked or failed by its audit entry.
package audit

import "context"

// Entry records a single tool invocation for the audit trail.
type Entry struct {
	EntryID    string `json:"entry_id"`
	Timestamp  int64  `json:"timestamp"`
	Action     string `json:"action"`
	Parameters string `json:"parameters,omitempty"`
	Error      string `json:"error_message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Status     string `json:"status"` // "success" or "error"
}

// Logger writes audit entries to storage.
type Logger interface {
	Log(ctx context.Context, entry *Entry) error
	LogAsync(entry *Entry)
	Close() error
}

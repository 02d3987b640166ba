package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileLogger appends audit entries to a JSON Lines file asynchronously.
type FileLogger struct {
	f    *os.File
	w    *bufio.Writer
	mu   sync.Mutex
	ch   chan *Entry
	done chan struct{}
	once sync.Once

	// closedMu guards sends on ch against Close closing it mid-send.
	closedMu sync.RWMutex
	closed   bool
}

// NewFileLogger opens (or creates) the trail file at path and starts the
// flush loop.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	l := &FileLogger{
		f:    f,
		w:    bufio.NewWriter(f),
		ch:   make(chan *Entry, 256),
		done: make(chan struct{}),
	}
	go l.flushLoop()
	return l, nil
}

// Log writes an entry synchronously.
func (l *FileLogger) Log(_ context.Context, entry *Entry) error {
	l.fillDefaults(entry)
	return l.write(entry, true)
}

// LogAsync queues an entry for the flush loop. When the buffer is full the
// entry is dropped rather than blocking the operation that produced it.
// Entries arriving after Close are dropped silently.
func (l *FileLogger) LogAsync(entry *Entry) {
	l.fillDefaults(entry)
	l.closedMu.RLock()
	defer l.closedMu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.ch <- entry:
	default:
		slog.Warn("audit buffer full, dropping entry", "action", entry.Action)
	}
}

// Close drains pending entries and closes the file.
func (l *FileLogger) Close() error {
	l.once.Do(func() {
		l.closedMu.Lock()
		l.closed = true
		l.closedMu.Unlock()
		close(l.ch)
		<-l.done
	})
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	return l.f.Close()
}

func (l *FileLogger) fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = "aud_" + uuid.NewString()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().Unix()
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
}

func (l *FileLogger) flushLoop() {
	defer close(l.done)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-l.ch:
			if !ok {
				return
			}
			if err := l.write(entry, false); err != nil {
				slog.Error("audit write failed", "error", err, "action", entry.Action)
			}
		case <-ticker.C:
			l.mu.Lock()
			l.w.Flush()
			l.mu.Unlock()
		}
	}
}

func (l *FileLogger) write(e *Entry, flush bool) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(append(data, '\n')); err != nil {
		return err
	}
	if flush {
		return l.w.Flush()
	}
	return nil
}

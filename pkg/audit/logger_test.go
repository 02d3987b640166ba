package audit

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestFileLoggerSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	require.NoError(t, logger.Log(context.Background(), &Entry{
		Action:     "execute_query",
		Parameters: `{"query":"SELECT 1"}`,
		DurationMs: 12,
	}))
	require.NoError(t, logger.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"action":"execute_query"`)
	assert.Contains(t, lines[0], `"status":"success"`)
	assert.Contains(t, lines[0], `"entry_id":"aud_`)
}

func TestFileLoggerAsyncDrainsOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		logger.LogAsync(&Entry{Action: "save_query"})
	}
	require.NoError(t, logger.Close())

	lines := readLines(t, path)
	assert.Len(t, lines, 10)
}

func TestFileLoggerAsyncAfterCloseIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	logger.LogAsync(&Entry{Action: "execute_query"})
	require.NoError(t, logger.Close())

	// A straggler after shutdown is dropped, not a panic.
	logger.LogAsync(&Entry{Action: "late"})

	lines := readLines(t, path)
	assert.Len(t, lines, 1)
}

func TestFileLoggerConcurrentLogAndClose(t *testing.T) {
	logger, err := NewFileLogger(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				logger.LogAsync(&Entry{Action: "save_query"})
			}
		}()
	}
	require.NoError(t, logger.Close())
	wg.Wait()
}

func TestFileLoggerErrorStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	require.NoError(t, logger.Log(context.Background(), &Entry{
		Action: "execute_query",
		Error:  "relation does not exist",
	}))
	require.NoError(t, logger.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"status":"error"`)
	assert.Contains(t, lines[0], `"error_message":"relation does not exist"`)
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	for i := 0; i < 2; i++ {
		logger, err := NewFileLogger(path)
		require.NoError(t, err)
		require.NoError(t, logger.Log(context.Background(), &Entry{Action: "delete_saved_query"}))
		require.NoError(t, logger.Close())
	}

	lines := readLines(t, path)
	assert.Len(t, lines, 2)

	// Entry IDs are unique across sessions.
	assert.False(t, strings.Contains(lines[0], extractID(lines[1])))
}

func extractID(line string) string {
	const marker = `"entry_id":"`
	i := strings.Index(line, marker)
	j := strings.Index(line[i+len(marker):], `"`)
	return line[i+len(marker) : i+len(marker)+j]
}

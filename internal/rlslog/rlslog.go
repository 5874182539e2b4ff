// Package rlslog is a small file-based, component-tagged logger. Grounded
// on the internal/debug package, which exists for exactly the reason this
// server needs it: stdout/stdin already carry a framed wire protocol (MCP
// there, LSP here), so any log output that leaked onto stdio would
// corrupt the next Content-Length frame. Logging here always goes to a
// file or an explicitly configured writer, never to stdout.
package rlslog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	mu     sync.Mutex
	output io.Writer
	file   *os.File
)

// InitLogFile opens a timestamped log file under dir (or os.TempDir() if
// dir is empty) and directs all subsequent log output to it. Returns the
// path of the file that was opened.
func InitLogFile(dir string) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	if dir == "" {
		dir = filepath.Join(os.TempDir(), "rls-core-logs")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("rls-%s.log", time.Now().Format("2006-01-02T150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}
	file = f
	output = f
	return path, nil
}

// SetOutput directs log output to an arbitrary writer (used by tests to
// capture output, or to disable logging entirely by passing io.Discard).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Close closes the log file opened by InitLogFile, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		err := file.Close()
		file = nil
		output = nil
		return err
	}
	return nil
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

func logf(component, format string, args ...interface{}) {
	w := writer()
	if w == nil {
		return
	}
	ts := time.Now().Format(time.RFC3339Nano)
	fmt.Fprintf(w, "[%s][%s] "+format+"\n", append([]interface{}{ts, component}, args...)...)
}

func VFS(format string, args ...interface{})      { logf("VFS", format, args...) }
func Analysis(format string, args ...interface{}) { logf("ANALYSIS", format, args...) }
func Build(format string, args ...interface{})    { logf("BUILD", format, args...) }
func LSP(format string, args ...interface{})      { logf("LSP", format, args...) }
func Racer(format string, args ...interface{})    { logf("RACER", format, args...) }

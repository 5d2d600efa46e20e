package optionchain

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrorLog is the append-only per-run log of rejected records and failed
// days. It is shared by all day tasks; writes are serialized.
type ErrorLog struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	count  atomic.Int64
}

func NewErrorLog(w io.Writer) *ErrorLog {
	if w == nil {
		w = io.Discard
	}
	return &ErrorLog{w: w}
}

// OpenErrorLog creates (or appends to) the log file at path and stamps the run.
func OpenErrorLog(path string, runID string) (*ErrorLog, error) {
	if path == "" {
		return NewErrorLog(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create error log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}
	l := &ErrorLog{w: f, closer: f}
	if _, err := fmt.Fprintf(f, "# run %s started %s\n", runID, time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write error log: %w", err)
	}
	return l, nil
}

// Record writes one line: file, row number, reason and the raw record.
func (l *ErrorLog) Record(file string, line int, reason string, raw string) {
	if l == nil {
		return
	}
	raw = strings.TrimRight(raw, "\r\n")
	msg := fmt.Sprintf("*Error* file %s, line %d: %s", file, line, reason)
	if raw != "" {
		msg += " | " + raw
	}
	l.count.Add(1)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := io.WriteString(l.w, msg+"\n"); err != nil {
		log.Errorf("error log write failed: %v", err)
	}
}

func (l *ErrorLog) Count() int64 {
	if l == nil {
		return 0
	}
	return l.count.Load()
}

func (l *ErrorLog) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closer.Close()
}

package optionchain

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// JSONLSink appends one JSON object per quote.
type JSONLSink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
}

func NewJSONLSink(path string) (*JSONLSink, error) {
	if path == "" {
		path = "data/quotes.jsonl"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create jsonl dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open jsonl: %w", err)
	}
	return &JSONLSink{w: bufio.NewWriter(f), closer: f}, nil
}

func NewJSONLWriterSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: bufio.NewWriter(w)}
}

func (s *JSONLSink) SaveQuote(_ context.Context, q *Quote) error {
	b, err := json.Marshal(newQuoteRecord(q))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write quote line %d: %w", q.Line, err)
	}
	return nil
}

func (s *JSONLSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

func (s *JSONLSink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

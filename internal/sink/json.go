// Package sink persists crawled items as a JSON array.
package sink

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/askfmi/fmicrawl/internal/item"
)

// ErrClosed is returned by Write after Close or Abort
var ErrClosed = errors.New("sink: closed")

// outputMode is the permission of the committed output. Temp files are
// created 0600.
const outputMode os.FileMode = 0644

// JSONSink streams items into a JSON array. Items go to a temporary file
// next to the target which replaces the target on Close, so readers never
// see a partial array. Safe for concurrent use.
type JSONSink struct {
	mu     sync.Mutex
	path   string
	tmp    *os.File
	w      *bufio.Writer
	count  int
	closed bool
}

// NewJSONSink opens a sink that will write to path
func NewJSONSink(path string) (*JSONSink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("sink: create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("sink: create temp file: %w", err)
	}

	s := &JSONSink{path: path, tmp: tmp, w: bufio.NewWriter(tmp)}
	if _, err := s.w.WriteString("[\n"); err != nil {
		s.discard()
		return nil, fmt.Errorf("sink: write: %w", err)
	}
	return s, nil
}

// Write appends one item
func (s *JSONSink) Write(it *item.Item) error {
	if it == nil {
		return nil
	}

	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("sink: encode item %s: %w", it.Metadata.URL, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.count > 0 {
		if _, err := s.w.WriteString(",\n"); err != nil {
			return fmt.Errorf("sink: write: %w", err)
		}
	}
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("sink: write: %w", err)
	}
	s.count++
	return nil
}

// Count returns the number of items written so far
func (s *JSONSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Path returns the final output path
func (s *JSONSink) Path() string {
	return s.path
}

// Close terminates the array and moves the file into place
func (s *JSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	tail := "]\n"
	if s.count > 0 {
		tail = "\n]\n"
	}
	if _, err := s.w.WriteString(tail); err != nil {
		s.discard()
		return fmt.Errorf("sink: write: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		s.discard()
		return fmt.Errorf("sink: flush: %w", err)
	}
	if err := s.tmp.Sync(); err != nil {
		s.discard()
		return fmt.Errorf("sink: sync: %w", err)
	}
	if err := s.tmp.Chmod(outputMode); err != nil {
		s.discard()
		return fmt.Errorf("sink: chmod: %w", err)
	}
	if err := s.tmp.Close(); err != nil {
		_ = os.Remove(s.tmp.Name())
		return fmt.Errorf("sink: close: %w", err)
	}
	if err := os.Rename(s.tmp.Name(), s.path); err != nil {
		_ = os.Remove(s.tmp.Name())
		return fmt.Errorf("sink: rename: %w", err)
	}
	return nil
}

// Abort drops everything written and leaves any existing output untouched
func (s *JSONSink) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.discard()
}

func (s *JSONSink) discard() {
	_ = s.tmp.Close()
	_ = os.Remove(s.tmp.Name())
}

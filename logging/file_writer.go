package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// fileWriter opens its target on first write, creating parent
// directories, and reopens it after Close.
type fileWriter struct {
	mu     sync.Mutex
	path   string
	writer io.WriteCloser
}

func newFileWriter(path string) *fileWriter {
	return &fileWriter{path: path}
}

// Write implements the io.Writer interface.
func (w *fileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer == nil {
		if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
			return 0, fmt.Errorf("creating log directory: %w", err)
		}
		file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return 0, fmt.Errorf("opening log file: %w", err)
		}
		w.writer = file
	}
	return w.writer.Write(p)
}

// Close implements the io.Closer interface.
func (w *fileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer == nil {
		return nil
	}
	err := w.writer.Close()
	w.writer = nil
	return err
}
